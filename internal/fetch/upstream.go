package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/retry"
)

// StatusError carries the upstream HTTP status so the retry layer can
// distinguish 429 from other 4xx from 5xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// UpstreamClient calls the balance indexer: GET /accounts/{address} returns
// the address's asset holdings.
type UpstreamClient struct {
	baseURL string
	client  *http.Client
}

func NewUpstreamClient(baseURL string, timeout time.Duration) *UpstreamClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UpstreamClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type assetHolding struct {
	AssetID string  `json:"asset_id"`
	Amount  float64 `json:"amount"`
}

type accountResponse struct {
	Assets []assetHolding `json:"assets"`
}

// AccountAssets returns the address's holdings keyed by asset id. A 404 is
// an address that never opted in to any asset: empty holdings, not an
// error. 429 and 5xx come back marked transient, other 4xx terminal.
func (c *UpstreamClient) AccountAssets(ctx context.Context, address string) (map[string]float64, error) {
	url := c.baseURL + "/accounts/" + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.FetchUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchUpstreamCalls.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		metrics.FetchUpstreamCalls.WithLabelValues("ok").Inc()
	case resp.StatusCode == http.StatusNotFound:
		metrics.FetchUpstreamCalls.WithLabelValues("not_found").Inc()
		return map[string]float64{}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.FetchUpstreamCalls.WithLabelValues("rate_limited").Inc()
		return nil, retry.Transient(&StatusError{Code: resp.StatusCode})
	case resp.StatusCode >= 500:
		metrics.FetchUpstreamCalls.WithLabelValues("server_error").Inc()
		return nil, retry.Transient(&StatusError{Code: resp.StatusCode})
	default:
		metrics.FetchUpstreamCalls.WithLabelValues("client_error").Inc()
		return nil, retry.Terminal(&StatusError{Code: resp.StatusCode})
	}

	var body accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}

	holdings := make(map[string]float64, len(body.Assets))
	for _, a := range body.Assets {
		holdings[a.AssetID] = a.Amount
	}
	return holdings, nil
}
