// Package pdf renders an issued quote as a printable A4 document.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/cristal-orion/superagente/internal/chart"
	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/format"
)

const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 20.0
	contentWidth = pageWidth - marginLeft - marginRight
)

// pdfText converts UTF-8 text to the cp1252 encoding the core fonts expect.
// The euro sign is the only symbol we use outside ASCII; accented vowels in
// the Italian labels map to single cp1252 bytes as well.
func pdfText(s string) string {
	replacer := strings.NewReplacer(
		"€", "\x80",
		"—", "\x97",
		"à", "\xe0",
		"è", "\xe8",
		"é", "\xe9",
		"ì", "\xec",
		"ò", "\xf2",
		"ù", "\xf9",
	)
	return replacer.Replace(s)
}

// formatEUR renders an amount in the Italian convention (dot for thousands,
// comma for decimals, euro sign trailing), transcoded for the core fonts.
func formatEUR(amount float64) string {
	return pdfText(format.EuroMonthly(amount))
}

func formatKWh(amount float64) string {
	return pdfText(format.KWh(amount))
}

// hexToRGB parses a #rrggbb color. Bad input falls back to mid grey so a
// malformed palette never breaks document generation.
func hexToRGB(hexColor string) (int, int, int) {
	trimmed := strings.TrimPrefix(hexColor, "#")
	if len(trimmed) != 6 {
		return 128, 128, 128
	}
	r, err1 := strconv.ParseInt(trimmed[0:2], 16, 32)
	g, err2 := strconv.ParseInt(trimmed[2:4], 16, 32)
	b, err3 := strconv.ParseInt(trimmed[4:6], 16, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return 128, 128, 128
	}
	return int(r), int(g), int(b)
}

type quoteDocument struct {
	pdf    *fpdf.Fpdf
	record domain.QuoteRecord
}

// Render produces the quote document: cover, offer and financing details,
// the annual economic picture, the 25-year projection table and a signature
// page.
func Render(record domain.QuoteRecord) ([]byte, error) {
	doc := &quoteDocument{
		pdf:    fpdf.New("P", "mm", "A4", ""),
		record: record,
	}
	doc.pdf.SetMargins(marginLeft, marginTop, marginRight)
	doc.pdf.SetAutoPageBreak(true, marginBottom)

	doc.addCoverPage()
	doc.addOfferPage()
	doc.addProjectionPage()
	doc.addClosingPage()

	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *quoteDocument) addCoverPage() {
	d.pdf.AddPage()

	d.pdf.SetFont("Arial", "B", 28)
	d.pdf.SetTextColor(0, 90, 60)
	d.pdf.Ln(45)
	d.pdf.CellFormat(contentWidth, 15, pdfText("Proposta Fotovoltaico"), "", 1, "C", false, 0, "")

	subtitle := "Analisi economica personalizzata"
	if d.record.OfferLabel != "" {
		subtitle = d.record.OfferLabel
	}
	d.pdf.SetFont("Arial", "", 14)
	d.pdf.SetTextColor(80, 80, 80)
	d.pdf.Ln(8)
	d.pdf.CellFormat(contentWidth, 10, pdfText(subtitle), "", 1, "C", false, 0, "")

	d.pdf.SetFont("Arial", "I", 11)
	d.pdf.Ln(12)
	issued := d.record.CreatedAt.Format("02/01/2006")
	d.pdf.CellFormat(contentWidth, 8, pdfText("Preventivo del "+issued), "", 1, "C", false, 0, "")

	d.pdf.Ln(20)
	d.pdf.SetFillColor(243, 248, 245)
	d.pdf.SetDrawColor(200, 210, 205)

	d.pdf.SetFont("Arial", "B", 12)
	d.pdf.SetTextColor(0, 90, 60)
	d.pdf.CellFormat(contentWidth, 8, pdfText("Intestatario"), "1", 1, "C", true, 0, "")

	d.pdf.SetFont("Arial", "", 11)
	d.pdf.SetTextColor(50, 50, 50)
	customer := d.record.Customer
	rows := []string{customer.Name}
	if customer.Address != "" {
		rows = append(rows, customer.Address)
	}
	contact := strings.TrimSpace(strings.Join([]string{customer.Phone, customer.Email}, "  "))
	if contact != "" {
		rows = append(rows, contact)
	}
	for _, row := range rows {
		d.pdf.CellFormat(contentWidth, 7, pdfText(row), "LR", 1, "C", true, 0, "")
	}
	d.pdf.CellFormat(contentWidth, 1, "", "LRB", 1, "C", true, 0, "")

	d.pdf.Ln(25)
	d.pdf.SetFont("Arial", "I", 9)
	d.pdf.SetTextColor(120, 120, 120)
	d.pdf.MultiCell(contentWidth, 4.5,
		pdfText("Documento a scopo informativo, non costituisce offerta contrattuale. "+
			"Le stime si basano sui dati forniti e sui parametri indicati; i risultati reali possono variare."),
		"", "C", false)
}

func (d *quoteDocument) addOfferPage() {
	d.pdf.AddPage()
	d.drawSectionHeader("Impianto e finanziamento")

	req := d.record.Request

	offerRows := [][2]string{
		{"Costo impianto", formatEUR(req.SystemCostEUR)},
	}
	if d.record.OfferLabel != "" {
		offerRows = append([][2]string{{"Soluzione", pdfText(d.record.OfferLabel)}}, offerRows...)
	}
	if req.FinancedAmountEUR != nil {
		offerRows = append(offerRows, [2]string{"Importo finanziato", formatEUR(*req.FinancedAmountEUR)})
	}
	if d.record.TermMonths > 0 {
		offerRows = append(offerRows, [2]string{"Durata finanziamento", fmt.Sprintf("%d mesi", d.record.TermMonths)})
	} else {
		offerRows = append(offerRows, [2]string{"Durata finanziamento", fmt.Sprintf("%d anni", req.FinancingYears)})
	}
	if !req.UseFlatRate && req.APRPercent > 0 {
		offerRows = append(offerRows, [2]string{"TAEG", pdfText(fmt.Sprintf("%.2f%%", req.APRPercent))})
	}
	offerRows = append(offerRows,
		[2]string{"Produzione annua stimata", formatKWh(req.AnnualProductionKWh)},
		[2]string{"Autoconsumo stimato", fmt.Sprintf("%.0f%%", req.SelfConsumptionPercent)},
		[2]string{pdfText("Detrazione fiscale"), fmt.Sprintf("%.0f%% in %d anni", req.DeductionPercent, req.DeductionYears)},
	)

	d.drawKeyValueTable(offerRows)
	d.pdf.Ln(8)

	d.drawSectionHeader("Quadro economico annuo")

	resp := d.record.Response
	economicRows := [][2]string{
		{"Spesa annua attuale", formatEUR(resp.CurrentAnnualSpendEUR)},
		{"Rata annua impianto", formatEUR(resp.AnnualInstallmentEUR)},
		{"Detrazione annua", formatEUR(resp.AnnualDeductionEUR)},
		{"Risparmio in bolletta", formatEUR(resp.BillSavingsEUR)},
		{"Ricavo immissione in rete", formatEUR(resp.GridRevenueEUR)},
		{"Costo netto annuo", formatEUR(resp.NetAnnualCostEUR)},
	}
	d.drawKeyValueTable(economicRows)
	d.pdf.Ln(6)

	// breakdown legend, same palette as the on-screen donut
	segments := chart.BreakdownSegments(resp)
	if len(segments) > 0 {
		d.pdf.SetFont("Arial", "B", 11)
		d.pdf.SetTextColor(0, 90, 60)
		d.pdf.CellFormat(contentWidth, 7, pdfText("Composizione del costo netto"), "", 1, "L", false, 0, "")

		d.pdf.SetFont("Arial", "", 10)
		for _, segment := range segments {
			r, g, b := hexToRGB(segment.Color)
			d.pdf.SetFillColor(r, g, b)
			d.pdf.CellFormat(6, 5, "", "1", 0, "L", true, 0, "")
			d.pdf.SetTextColor(50, 50, 50)
			d.pdf.CellFormat(4, 5, "", "", 0, "L", false, 0, "")
			d.pdf.CellFormat(90, 5, pdfText(segment.Name), "", 0, "L", false, 0, "")
			d.pdf.CellFormat(40, 5, formatEUR(segment.Value), "", 1, "R", false, 0, "")
		}
	}

	d.pdf.Ln(6)
	d.pdf.SetFont("Arial", "B", 12)
	if resp.DeltaVsCurrentEUR <= 0 {
		d.pdf.SetTextColor(0, 134, 78)
	} else {
		d.pdf.SetTextColor(180, 100, 0)
	}
	d.pdf.MultiCell(contentWidth, 6, pdfText(resp.Message), "", "L", false)
}

func (d *quoteDocument) addProjectionPage() {
	d.pdf.AddPage()
	d.drawSectionHeader("Proiezione a 25 anni")

	d.pdf.SetFont("Arial", "", 10)
	d.pdf.SetTextColor(50, 50, 50)
	d.pdf.MultiCell(contentWidth, 5,
		pdfText("Costo netto stimato anno per anno. La rata si azzera a fine finanziamento, "+
			"la detrazione al termine del periodo fiscale."),
		"", "L", false)
	d.pdf.Ln(3)

	d.drawCashflowChart(d.record.Response.CashflowYears)

	colWidths := []float64{25, 65, 25, 65}
	d.pdf.SetFillColor(0, 90, 60)
	d.pdf.SetTextColor(255, 255, 255)
	d.pdf.SetFont("Arial", "B", 9)
	for i := 0; i < 2; i++ {
		d.pdf.CellFormat(colWidths[0], 6, "Anno", "1", 0, "L", true, 0, "")
		d.pdf.CellFormat(colWidths[1], 6, "Costo netto", "1", 0, "R", true, 0, "")
	}
	d.pdf.Ln(-1)

	years := d.record.Response.CashflowYears
	half := (len(years) + 1) / 2
	d.pdf.SetFont("Arial", "", 9)
	for i := 0; i < half; i++ {
		if i%2 == 0 {
			d.pdf.SetFillColor(248, 250, 249)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		d.pdf.SetTextColor(50, 50, 50)

		left := years[i]
		d.pdf.CellFormat(colWidths[0], 5, strconv.Itoa(left.Year), "1", 0, "L", true, 0, "")
		d.pdf.CellFormat(colWidths[1], 5, formatEUR(left.NetCostEUR), "1", 0, "R", true, 0, "")

		if i+half < len(years) {
			right := years[i+half]
			d.pdf.CellFormat(colWidths[2], 5, strconv.Itoa(right.Year), "1", 0, "L", true, 0, "")
			d.pdf.CellFormat(colWidths[3], 5, formatEUR(right.NetCostEUR), "1", 1, "R", true, 0, "")
		} else {
			d.pdf.CellFormat(colWidths[2], 5, "", "1", 0, "L", true, 0, "")
			d.pdf.CellFormat(colWidths[3], 5, "", "1", 1, "R", true, 0, "")
		}
	}

	total := 0.0
	for _, year := range years {
		total += year.NetCostEUR
	}
	d.pdf.Ln(3)
	d.pdf.SetFont("Arial", "B", 10)
	d.pdf.SetTextColor(0, 90, 60)
	d.pdf.CellFormat(90, 6, pdfText("Costo netto cumulato (25 anni)"), "", 0, "L", false, 0, "")
	d.pdf.CellFormat(90, 6, formatEUR(total), "", 1, "R", false, 0, "")
}

// Chart geometry is computed in a virtual pixel space and scaled down onto
// the page so the PDF and the on-screen rendering share the same layout.
const (
	chartScale    = 0.5
	chartWidthPx  = contentWidth / chartScale
	chartHeightPx = 120.0
)

func (d *quoteDocument) drawCashflowChart(years []domain.CashflowYear) {
	layout := chart.CashflowBars(years, chartWidthPx, chartHeightPx, 1.0)
	if layout.Empty {
		return
	}

	originX := marginLeft
	originY := d.pdf.GetY()
	tx := func(v float64) float64 { return originX + v*chartScale }
	ty := func(v float64) float64 { return originY + v*chartScale }

	d.pdf.SetDrawColor(225, 228, 226)
	d.pdf.SetLineWidth(0.2)
	for _, line := range layout.GridLines {
		d.pdf.Line(tx(line.X1), ty(line.Y1), tx(line.X2), ty(line.Y2))
	}

	for _, bar := range layout.Bars {
		r, g, b := hexToRGB(bar.FillStart)
		d.pdf.SetFillColor(r, g, b)
		d.pdf.Rect(tx(bar.X), ty(bar.Y), bar.Width*chartScale, bar.Height*chartScale, "F")
		if bar.Highlight {
			hr, hg, hb := hexToRGB(layout.HighlightColor)
			d.pdf.SetDrawColor(hr, hg, hb)
			d.pdf.SetLineWidth(0.3)
			d.pdf.Rect(tx(bar.X), ty(bar.Y), bar.Width*chartScale, bar.Height*chartScale, "D")
		}
	}

	zero := layout.ZeroLine
	d.pdf.SetDrawColor(120, 120, 120)
	d.pdf.SetLineWidth(0.3)
	d.pdf.Line(tx(zero.X1), ty(zero.Y1), tx(zero.X2), ty(zero.Y2))

	d.pdf.SetFont("Arial", "", 7)
	d.pdf.SetTextColor(90, 90, 90)
	for _, label := range layout.YLabels {
		d.pdf.Text(tx(label.X)-8, ty(label.Y)+1, pdfText(label.Text))
	}
	for _, label := range layout.XLabels {
		d.pdf.Text(tx(label.X)-1.5, ty(label.Y), pdfText(label.Text))
	}

	d.pdf.SetY(originY + chartHeightPx*chartScale + 6)
	d.pdf.Ln(2)
}

func (d *quoteDocument) addClosingPage() {
	d.pdf.AddPage()
	d.drawSectionHeader("Condizioni e accettazione")

	d.pdf.SetFont("Arial", "", 10)
	d.pdf.SetTextColor(50, 50, 50)
	notes := []string{
		"La proposta ha validità di 30 giorni dalla data di emissione.",
		"Prezzi, rate e condizioni di finanziamento sono soggetti ad approvazione della finanziaria.",
		"La detrazione fiscale è subordinata ai requisiti di legge vigenti al momento dell'installazione.",
		"Produzione e autoconsumo sono stime basate sui consumi dichiarati dal cliente.",
	}
	for i, note := range notes {
		d.pdf.CellFormat(contentWidth, 6, pdfText(fmt.Sprintf("%d. %s", i+1, note)), "", 1, "L", false, 0, "")
	}

	d.pdf.Ln(25)
	d.pdf.SetFont("Arial", "", 10)
	lineY := d.pdf.GetY() + 12
	d.pdf.SetDrawColor(120, 120, 120)

	d.pdf.CellFormat(85, 6, pdfText("Il consulente"), "", 0, "L", false, 0, "")
	d.pdf.CellFormat(5, 6, "", "", 0, "L", false, 0, "")
	d.pdf.CellFormat(85, 6, pdfText("Il cliente"), "", 1, "L", false, 0, "")
	d.pdf.Line(marginLeft, lineY, marginLeft+80, lineY)
	d.pdf.Line(marginLeft+95, lineY, marginLeft+175, lineY)

	d.pdf.Ln(30)
	d.pdf.SetFont("Arial", "I", 8)
	d.pdf.SetTextColor(128, 128, 128)
	d.pdf.MultiCell(contentWidth, 4,
		pdfText("Documento generato automaticamente. Le proiezioni si basano sulle assunzioni indicate; "+
			"questo documento non costituisce consulenza finanziaria."),
		"", "C", false)
}

func (d *quoteDocument) drawSectionHeader(title string) {
	d.pdf.SetFont("Arial", "B", 16)
	d.pdf.SetTextColor(0, 90, 60)
	d.pdf.CellFormat(contentWidth, 10, pdfText(title), "", 1, "L", false, 0, "")
	d.pdf.SetDrawColor(0, 90, 60)
	d.pdf.Line(marginLeft, d.pdf.GetY(), marginLeft+contentWidth, d.pdf.GetY())
	d.pdf.Ln(5)
}

func (d *quoteDocument) drawKeyValueTable(rows [][2]string) {
	d.pdf.SetFont("Arial", "", 10)
	for i, row := range rows {
		if i%2 == 0 {
			d.pdf.SetFillColor(248, 250, 249)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		d.pdf.SetTextColor(50, 50, 50)
		d.pdf.CellFormat(90, 6, pdfText(row[0]), "1", 0, "L", true, 0, "")
		d.pdf.CellFormat(90, 6, row[1], "1", 1, "R", true, 0, "")
	}
}
