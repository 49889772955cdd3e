package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Result is what a Prober reports for one probe.
type Result struct {
	Healthy    bool
	StatusCode int
	Err        error
}

// Prober checks a single provider. Implementations should honor ctx; the
// monitor enforces its own timeout regardless.
type Prober interface {
	Probe(ctx context.Context, p provider.Provider) Result
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, p provider.Provider) Result

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, p provider.Provider) Result {
	return f(ctx, p)
}

// HTTPProber issues a GET against the provider's health endpoint and treats
// 200 as healthy.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given client timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, prov provider.Provider) Result {
	if prov.HealthEndpoint == "" {
		return Result{Err: fmt.Errorf("no health endpoint configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.HealthEndpoint, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return Result{
		Healthy:    resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
	}
}
