// Package notify delivers failover notifications to webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
)

// Event types
const (
	EventFailoverCompleted = "failover.completed"
	EventDecisionFailed    = "failover.decision_failed"
)

const (
	signatureHeader = "X-Drengine-Signature"
	maxConcurrent   = 16
)

// Event is one notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Attempt   int                    `json:"attempt"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Webhooks posts events to every matching configured endpoint.
type Webhooks struct {
	hooks         []config.WebhookConfig
	maxRetries    int
	retryInterval time.Duration
	client        *http.Client
	logger        *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWebhooks(cfg config.NotifyConfig, logger *zap.Logger) *Webhooks {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Webhooks{
		hooks:         cfg.Webhooks,
		maxRetries:    retries,
		retryInterval: cfg.RetryInterval,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        logger.Named("notify"),
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// Notify delivers ev in the background. It never blocks on the network.
func (w *Webhooks) Notify(ctx context.Context, ev Event) {
	for _, hook := range w.hooks {
		if !matches(hook, ev.Type) {
			continue
		}
		hook := hook
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()

			// delivery outlives the caller's context
			if err := w.deliver(context.WithoutCancel(ctx), hook, ev); err != nil {
				w.logger.Warn("webhook delivery failed",
					zap.String("url", hook.URL),
					zap.String("event", ev.Type),
					zap.Error(err))
			}
		}()
	}
}

// NotifySync delivers ev and returns the last delivery error.
func (w *Webhooks) NotifySync(ctx context.Context, ev Event) error {
	var lastErr error
	for _, hook := range w.hooks {
		if !matches(hook, ev.Type) {
			continue
		}
		if err := w.deliver(ctx, hook, ev); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Wait blocks until background deliveries finish.
func (w *Webhooks) Wait() {
	w.wg.Wait()
}

func matches(hook config.WebhookConfig, eventType string) bool {
	if len(hook.Events) == 0 {
		return true
	}
	for _, e := range hook.Events {
		if e == "*" || e == eventType {
			return true
		}
	}
	return false
}

// deliver sends an event with retries
func (w *Webhooks) deliver(ctx context.Context, hook config.WebhookConfig, ev Event) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		ev.Attempt = attempt

		status, err := w.send(ctx, hook, ev)
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("webhook returned status %d", status)
		}

		if attempt < w.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryInterval):
			}
		}
	}
	return lastErr
}

func (w *Webhooks) send(ctx context.Context, hook config.WebhookConfig, ev Event) (int, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "drengine-notify/1.0")
	req.Header.Set("X-Event-Type", ev.Type)
	req.Header.Set("X-Event-ID", ev.ID)
	req.Header.Set("X-Delivery-Attempt", strconv.Itoa(ev.Attempt))
	if hook.Secret != "" {
		req.Header.Set(signatureHeader, Sign(body, hook.Secret))
	}
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// Sign returns the HMAC-SHA256 signature of payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
