package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
)

type receiver struct {
	mu       sync.Mutex
	events   []Event
	sigs     []string
	failures int32
	calls    atomic.Int32
}

func (rc *receiver) handler(t *testing.T, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := rc.calls.Add(1)
		if n <= atomic.LoadInt32(&rc.failures) {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		sig := r.Header.Get(signatureHeader)
		if secret != "" {
			assert.True(t, Verify(body, sig, secret))
		}

		var ev Event
		require.NoError(t, json.Unmarshal(body, &ev))

		rc.mu.Lock()
		rc.events = append(rc.events, ev)
		rc.sigs = append(rc.sigs, sig)
		rc.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func newNotifier(hooks []config.WebhookConfig, retries int) *Webhooks {
	return NewWebhooks(config.NotifyConfig{
		Webhooks:      hooks,
		MaxRetries:    retries,
		RetryInterval: time.Millisecond,
		Timeout:       time.Second,
	}, zap.NewNop())
}

func TestWebhooks_DeliversSignedEvent(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t, "s3cret"))
	defer srv.Close()

	w := newNotifier([]config.WebhookConfig{{URL: srv.URL, Secret: "s3cret"}}, 3)
	ev := NewEvent(EventFailoverCompleted, map[string]interface{}{"from": "aws", "to": "gcp"})

	require.NoError(t, w.NotifySync(context.Background(), ev))

	require.Len(t, rc.events, 1)
	assert.Equal(t, ev.ID, rc.events[0].ID)
	assert.Equal(t, EventFailoverCompleted, rc.events[0].Type)
	assert.Equal(t, "gcp", rc.events[0].Data["to"])
	assert.Equal(t, 1, rc.events[0].Attempt)
}

func TestWebhooks_Retries(t *testing.T) {
	rc := &receiver{failures: 2}
	srv := httptest.NewServer(rc.handler(t, ""))
	defer srv.Close()

	w := newNotifier([]config.WebhookConfig{{URL: srv.URL}}, 3)
	require.NoError(t, w.NotifySync(context.Background(), NewEvent(EventDecisionFailed, nil)))

	assert.Equal(t, int32(3), rc.calls.Load())
	require.Len(t, rc.events, 1)
	assert.Equal(t, 3, rc.events[0].Attempt)
}

func TestWebhooks_GivesUp(t *testing.T) {
	rc := &receiver{failures: 100}
	srv := httptest.NewServer(rc.handler(t, ""))
	defer srv.Close()

	w := newNotifier([]config.WebhookConfig{{URL: srv.URL}}, 2)
	err := w.NotifySync(context.Background(), NewEvent(EventDecisionFailed, nil))
	assert.EqualError(t, err, "webhook returned status 502")
	assert.Equal(t, int32(2), rc.calls.Load())
}

func TestWebhooks_EventFilter(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		want   bool
	}{
		{"no filter", nil, true},
		{"wildcard", []string{"*"}, true},
		{"listed", []string{EventDecisionFailed, EventFailoverCompleted}, true},
		{"not listed", []string{EventDecisionFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(config.WebhookConfig{Events: tt.events}, EventFailoverCompleted))
		})
	}
}

func TestWebhooks_NotifyAsync(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t, ""))
	defer srv.Close()

	w := newNotifier([]config.WebhookConfig{
		{URL: srv.URL},
		{URL: srv.URL, Events: []string{EventDecisionFailed}},
	}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	w.Notify(ctx, NewEvent(EventFailoverCompleted, nil))
	cancel()
	w.Wait()

	assert.Equal(t, int32(1), rc.calls.Load())
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"type":"failover.completed"}`)
	sig := Sign(payload, "key")
	assert.True(t, Verify(payload, sig, "key"))
	assert.False(t, Verify(payload, sig, "other"))
	assert.False(t, Verify([]byte(`{}`), sig, "key"))
}
