package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cristal-orion/superagente/internal/domain"
)

// catalogFileItem mirrors domain.CatalogItem with an optional active flag
// so that items without one default to published. Term maps are decoded
// with string keys because JSON documents quote them.
type catalogFileItem struct {
	ID            string             `yaml:"id"`
	Label         string             `yaml:"label"`
	Category      string             `yaml:"category"`
	PriceEUR      float64            `yaml:"prezzo_eur"`
	PowerKW       float64            `yaml:"potenza_kw"`
	StorageKWh    float64            `yaml:"accumulo_kwh"`
	MonthlyByTerm map[string]float64 `yaml:"rate_mensili_eur"`
	APRByTerm     map[string]float64 `yaml:"taeg_annuo_percent_by_term"`
	Active        *bool              `yaml:"active"`
}

type catalogFileDocument struct {
	Items []catalogFileItem `yaml:"items"`
}

// LoadCatalogFile reads a catalog document from disk. YAML is a superset of
// JSON, so both file shapes pass through the same decoder.
func LoadCatalogFile(path string) ([]domain.CatalogItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc catalogFileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("catalog file %s: %w: no items", path, ErrInvalidInput)
	}

	items := make([]domain.CatalogItem, 0, len(doc.Items))
	for i, entry := range doc.Items {
		if entry.ID == "" || entry.Label == "" || entry.PriceEUR <= 0 || entry.PowerKW <= 0 {
			return nil, fmt.Errorf("catalog file %s: item %d: %w", path, i, ErrInvalidInput)
		}
		monthly, err := termMap(entry.MonthlyByTerm)
		if err != nil {
			return nil, fmt.Errorf("catalog file %s: item %s: %w", path, entry.ID, err)
		}
		apr, err := termMap(entry.APRByTerm)
		if err != nil {
			return nil, fmt.Errorf("catalog file %s: item %s: %w", path, entry.ID, err)
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		items = append(items, domain.CatalogItem{
			ID:            entry.ID,
			Label:         entry.Label,
			Category:      entry.Category,
			PriceEUR:      entry.PriceEUR,
			PowerKW:       entry.PowerKW,
			StorageKWh:    entry.StorageKWh,
			MonthlyByTerm: monthly,
			APRByTerm:     apr,
			Active:        active,
		})
	}
	return items, nil
}

func termMap(src map[string]float64) (map[int]float64, error) {
	if len(src) == 0 {
		return nil, nil
	}
	result := make(map[int]float64, len(src))
	for key, value := range src {
		months, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || months < 1 {
			return nil, fmt.Errorf("term %q: %w", key, ErrInvalidInput)
		}
		result[months] = value
	}
	return result, nil
}
