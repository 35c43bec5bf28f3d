package rolesync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/circuitbreaker"
)

// Client converges the externally visible tier role for an account via the
// community platform's bot API. The endpoint is idempotent and convergent
// on the platform side: it removes stale tier roles and applies the current
// one. Calls are best-effort; the evaluator logs failures and moves on.
type Client struct {
	baseURL string
	groupID string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

func NewClient(baseURL, groupID string, timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		groupID: groupID,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger.With("component", "rolesync"),
	}
}

// SyncTier asks the platform to converge accountID's tier roles.
func (c *Client) SyncTier(ctx context.Context, accountID string) error {
	if c.baseURL == "" {
		return nil
	}
	if err := c.breaker.Allow(); err != nil {
		return fmt.Errorf("role sync for %s: %w", accountID, err)
	}

	url := fmt.Sprintf("%s/guilds/%s/members/%s/tier-sync", c.baseURL, c.groupID, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create role sync request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("call role sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		return fmt.Errorf("role sync returned status %d", resp.StatusCode)
	}
	c.breaker.RecordSuccess()
	return nil
}
