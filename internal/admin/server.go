package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/ratelimit"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tier"
)

// Evaluator is the on-demand evaluation path. It races the cron cycle on
// the same account, which the store's atomic badge transition absorbs.
type Evaluator interface {
	EvaluateByID(ctx context.Context, id string) (tier.Result, error)
}

// Admitter decides whether an inbound request may proceed.
type Admitter interface {
	Allow(ctx context.Context, callerID string) ratelimit.Decision
}

// Server exposes health, metrics, and the account badge API.
type Server struct {
	repo      store.AccountRepository
	evaluator Evaluator
	admitter  Admitter
	logger    *slog.Logger
}

func NewServer(repo store.AccountRepository, evaluator Evaluator, admitter Admitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		repo:      repo,
		evaluator: evaluator,
		admitter:  admitter,
		logger:    logger.With("component", "admin"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /v1/accounts/{id}/badges", s.admit(http.HandlerFunc(s.handleGetBadges)))
	mux.Handle("POST /v1/accounts/{id}/evaluate", s.admit(http.HandlerFunc(s.handleEvaluate)))
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("admin server started", "port", port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// admit applies the shared admission limiter keyed by caller identity.
func (s *Server) admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerIdentity(r)
		decision := s.admitter.Allow(r.Context(), caller)
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			s.logger.Warn("request rejected by admission control",
				"method", r.Method,
				"path", r.URL.Path,
				"caller", caller,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerIdentity prefers an API key over the network address, so keyed
// integrations get their own buckets regardless of NAT.
func callerIdentity(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	return "ip:" + clientIP(r)
}

// clientIP checks, in order: X-Forwarded-For (first IP), X-Real-IP, then
// r.RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type badgeView struct {
	TierID string `json:"tier_id"`
	Rarity string `json:"rarity"`
}

type badgesResponse struct {
	AccountID string      `json:"account_id"`
	Verified  bool        `json:"verified"`
	Badges    []badgeView `json:"badges"`
}

func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	acct, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("badge lookup failed", "account", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := badgesResponse{
		AccountID: acct.ID,
		Verified:  acct.SignalVerified,
		Badges:    make([]badgeView, 0, len(acct.Badges)),
	}
	for _, b := range acct.Badges {
		resp.Badges = append(resp.Badges, badgeView{
			TierID: b,
			Rarity: string(tier.TierRarity(b)),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type evaluateResponse struct {
	AccountID  string                    `json:"account_id"`
	Skipped    bool                      `json:"skipped,omitempty"`
	SkipReason string                    `json:"skip_reason,omitempty"`
	Awarded    []string                  `json:"awarded"`
	Removed    []string                  `json:"removed"`
	Current    map[model.Category]string `json:"current"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.evaluator.EvaluateByID(r.Context(), id)
	if err != nil {
		s.logger.Error("on-demand evaluation failed", "account", id, "error", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	if res.Skipped && res.SkipReason == "account_not_found" {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	resp := evaluateResponse{
		AccountID:  res.AccountID,
		Skipped:    res.Skipped,
		SkipReason: res.SkipReason,
		Awarded:    res.Awarded,
		Removed:    res.Removed,
		Current:    res.Current,
	}
	if resp.Awarded == nil {
		resp.Awarded = []string{}
	}
	if resp.Removed == nil {
		resp.Removed = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
