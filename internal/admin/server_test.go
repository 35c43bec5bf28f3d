package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/ratelimit"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store/mocks"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tier"
)

type fakeEvaluator struct {
	res tier.Result
	err error
}

func (f *fakeEvaluator) EvaluateByID(_ context.Context, _ string) (tier.Result, error) {
	return f.res, f.err
}

type fakeAdmitter struct {
	decision ratelimit.Decision
	callers  []string
}

func (f *fakeAdmitter) Allow(_ context.Context, callerID string) ratelimit.Decision {
	f.callers = append(f.callers, callerID)
	return f.decision
}

func allowAll() *fakeAdmitter {
	return &fakeAdmitter{decision: ratelimit.Decision{Allowed: true}}
}

func TestHealthz(t *testing.T) {
	s := NewServer(nil, nil, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBadges(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().FindByID(gomock.Any(), "42").Return(&model.Account{
		ID:             "42",
		SignalVerified: true,
		Badges:         []string{"whale", "lp-gold"},
	}, nil)

	s := NewServer(repo, nil, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/42/badges", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccountID string `json:"account_id"`
		Verified  bool   `json:"verified"`
		Badges    []struct {
			TierID string `json:"tier_id"`
			Rarity string `json:"rarity"`
		} `json:"badges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "42", resp.AccountID)
	assert.True(t, resp.Verified)
	require.Len(t, resp.Badges, 2)
	assert.Equal(t, "whale", resp.Badges[0].TierID)
	assert.Equal(t, "legendary", resp.Badges[0].Rarity)
}

func TestGetBadgesNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().FindByID(gomock.Any(), "missing").Return(nil, store.ErrNotFound)

	s := NewServer(repo, nil, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/missing/badges", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBadgesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().FindByID(gomock.Any(), "42").Return(nil, errors.New("db down"))

	s := NewServer(repo, nil, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/42/badges", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEvaluateEndpoint(t *testing.T) {
	eval := &fakeEvaluator{res: tier.Result{
		AccountID: "42",
		Awarded:   []string{"shrimp"},
		Current:   map[model.Category]string{model.CategoryHodl: "shrimp"},
	}}

	s := NewServer(nil, eval, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/accounts/42/evaluate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccountID string   `json:"account_id"`
		Awarded   []string `json:"awarded"`
		Removed   []string `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"shrimp"}, resp.Awarded)
	assert.NotNil(t, resp.Removed)
}

func TestEvaluateEndpointUnknownAccount(t *testing.T) {
	eval := &fakeEvaluator{res: tier.Result{AccountID: "x", Skipped: true, SkipReason: "account_not_found"}}
	s := NewServer(nil, eval, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/accounts/x/evaluate", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvaluateEndpointError(t *testing.T) {
	eval := &fakeEvaluator{err: errors.New("boom")}
	s := NewServer(nil, eval, allowAll(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/accounts/42/evaluate", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdmissionRejection(t *testing.T) {
	admitter := &fakeAdmitter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 3 * time.Second}}
	s := NewServer(nil, nil, admitter, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/42/badges", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestAdmissionNotAppliedToHealthz(t *testing.T) {
	admitter := &fakeAdmitter{decision: ratelimit.Decision{Allowed: false}}
	s := NewServer(nil, nil, admitter, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, admitter.callers)
}

func TestCallerIdentity(t *testing.T) {
	t.Run("api key wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-API-Key", "secret-1")
		r.Header.Set("X-Forwarded-For", "1.2.3.4")
		assert.Equal(t, "key:secret-1", callerIdentity(r))
	})

	t.Run("forwarded-for first hop", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "9.8.7.6, 10.0.0.1")
		assert.Equal(t, "ip:9.8.7.6", callerIdentity(r))
	})

	t.Run("real-ip fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", "5.5.5.5")
		assert.Equal(t, "ip:5.5.5.5", callerIdentity(r))
	})

	t.Run("remote addr fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:51234"
		assert.Equal(t, "ip:192.0.2.1", callerIdentity(r))
	})
}
