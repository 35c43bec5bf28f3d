package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerter struct {
	mu   sync.Mutex
	sent []Alert
	err  error
}

func (r *recordingAlerter) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return r.err
}

func (r *recordingAlerter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func testAlert() Alert {
	return Alert{
		Type:    AlertTypeCycleDegraded,
		Scope:   "scheduler",
		Title:   "Badge evaluation cycle degraded",
		Message: "9 of 10 account evaluations failed",
		Fields:  map[string]string{"success_rate": "0.10"},
	}
}

func TestMultiAlerterFansOut(t *testing.T) {
	a := &recordingAlerter{}
	b := &recordingAlerter{}
	m := NewMultiAlerter(time.Minute, slog.Default(), a, b)

	require.NoError(t, m.Send(context.Background(), testAlert()))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestMultiAlerterCooldownSuppressesDuplicates(t *testing.T) {
	a := &recordingAlerter{}
	m := NewMultiAlerter(time.Minute, slog.Default(), a)
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, testAlert()))
	require.NoError(t, m.Send(ctx, testAlert()))
	require.NoError(t, m.Send(ctx, testAlert()))
	assert.Equal(t, 1, a.count())

	// A different type is an independent cooldown key.
	other := testAlert()
	other.Type = AlertTypeRecovery
	require.NoError(t, m.Send(ctx, other))
	assert.Equal(t, 2, a.count())
}

func TestMultiAlerterCooldownExpires(t *testing.T) {
	a := &recordingAlerter{}
	m := NewMultiAlerter(10*time.Millisecond, slog.Default(), a)
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, testAlert()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Send(ctx, testAlert()))
	assert.Equal(t, 2, a.count())
}

func TestMultiAlerterPartialFailure(t *testing.T) {
	failing := &recordingAlerter{err: errors.New("channel down")}
	healthy := &recordingAlerter{}
	m := NewMultiAlerter(time.Minute, slog.Default(), failing, healthy)

	err := m.Send(context.Background(), testAlert())
	require.Error(t, err)
	// The healthy channel still received the alert.
	assert.Equal(t, 1, healthy.count())
}

func TestSlackAlerterPayload(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
	}))
	defer srv.Close()

	s := NewSlackAlerter(srv.URL)
	require.NoError(t, s.Send(context.Background(), testAlert()))
	assert.Contains(t, payload["text"], "CYCLE_DEGRADED")
	assert.Contains(t, payload["text"], "scheduler")
	assert.Contains(t, payload["text"], "success_rate")
}

func TestSlackAlerterNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	require.Error(t, NewSlackAlerter(srv.URL).Send(context.Background(), testAlert()))
}

func TestWebhookAlerterPayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
	}))
	defer srv.Close()

	w := NewWebhookAlerter(srv.URL)
	require.NoError(t, w.Send(context.Background(), testAlert()))
	assert.Equal(t, "CYCLE_DEGRADED", payload["type"])
	assert.Equal(t, "scheduler", payload["scope"])
	assert.NotEmpty(t, payload["time"])
}

func TestNoopAlerter(t *testing.T) {
	assert.NoError(t, (&NoopAlerter{}).Send(context.Background(), testAlert()))
}
