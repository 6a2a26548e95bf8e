package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
)

// Client delegates the projection to an external pricing service over HTTP.
// The wire format matches the native engine's request/response exactly.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// errorBody is the upstream rejection shape: a detail that is either a
// plain string or a structured validation payload.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (c *Client) Calc(ctx context.Context, req domain.CalcRequest) (*domain.CalcResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode pricing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build pricing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		var resp domain.CalcResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
		return &resp, nil
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		var body errorBody
		detail := "request rejected"
		if err := json.NewDecoder(httpResp.Body).Decode(&body); err == nil && len(body.Detail) > 0 {
			detail = detailText(body.Detail)
		}
		return nil, &ValidationError{Detail: detail}
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, httpResp.StatusCode)
	}
}

func detailText(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}
