// Package matching consumes the external matching service contract. The
// engine treats its output purely as an ordering hint for the first slot
// query; it is never on the correctness-critical path.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type RankedConsultant struct {
	ConsultantID uuid.UUID          `json:"consultant_id"`
	Score        float64            `json:"score"` // 0-100
	Breakdown    map[string]float64 `json:"score_breakdown,omitempty"`
}

type Requirements struct {
	ServiceType string   `json:"service_type"`
	Topics      []string `json:"topics,omitempty"`
	Language    string   `json:"language,omitempty"`
}

type Ranker interface {
	GetRankedConsultants(ctx context.Context, req Requirements) ([]RankedConsultant, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetRankedConsultants(ctx context.Context, req Requirements) ([]RankedConsultant, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rankings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matching service returned status %d", resp.StatusCode)
	}

	var out []RankedConsultant
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// NopRanker returns no ranking; callers fall back to their own ordering.
type NopRanker struct{}

func (NopRanker) GetRankedConsultants(context.Context, Requirements) ([]RankedConsultant, error) {
	return nil, nil
}
