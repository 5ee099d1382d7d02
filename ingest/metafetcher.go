package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kass/model"
)

// HTTPMetaFetcher implements MetaFetcher against the exchange's discovery
// REST endpoint, grounded on the teacher's AuthClient request/decode shape
// (auth/auth.go) but generalized from Stockbit's GraphQL envelope to a flat
// JSON array of market records.
type HTTPMetaFetcher struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

func NewHTTPMetaFetcher(baseURL, bearerToken string) *HTTPMetaFetcher {
	return &HTTPMetaFetcher{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type discoveryRecord struct {
	MarketID  string    `json:"market_id"`
	EventID   string    `json:"event_id"`
	SeriesID  string    `json:"series_id"`
	CloseTime time.Time `json:"close_time"`
}

type discoveryResponse struct {
	Markets []discoveryRecord `json:"markets"`
}

func (f *HTTPMetaFetcher) FetchAll(ctx context.Context) ([]model.MarketMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/markets", nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build discovery request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest: discovery request failed with status %d", resp.StatusCode)
	}

	var body discoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ingest: decode discovery response: %w", err)
	}

	out := make([]model.MarketMeta, 0, len(body.Markets))
	for _, r := range body.Markets {
		out = append(out, model.MarketMeta{
			MarketID:  r.MarketID,
			EventID:   r.EventID,
			SeriesID:  r.SeriesID,
			CloseTime: r.CloseTime,
			Status:    model.StatusOpen,
		})
	}
	return out, nil
}
