package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"songswipe/internal/core"
)

const (
	// maxResponseSize bounds how much of a catalog response is read.
	maxResponseSize = 4 << 20
	userAgent       = "songswipe/1.0"
)

// CallObserver receives one notification per provider call.
type CallObserver interface {
	ObserveProviderCall(provider, op string, err error, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveProviderCall(string, string, error, time.Duration) {}

// requester performs throttled JSON GETs and translates every failure to core.ErrProviderUnavailable.
type requester struct {
	provider core.ProviderKind
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	observer CallObserver
}

func newRequester(provider core.ProviderKind, perSecond float64, timeout time.Duration) *requester {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if timeout <= 0 {
		timeout = core.DefaultProviderTimeout
	}
	return &requester{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  timeout,
		observer: nopObserver{},
	}
}

func (r *requester) getJSON(ctx context.Context, op, reqURL string, dest any) (err error) {
	start := time.Now()
	defer func() {
		r.observer.ObserveProviderCall(string(r.provider), op, err, time.Since(start))
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s %s: %w", core.ErrProviderUnavailable, r.provider, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", core.ErrProviderUnavailable, r.provider, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", core.ErrProviderUnavailable, r.provider, op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s returned status %d", core.ErrProviderUnavailable, r.provider, op, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(dest); err != nil {
		return fmt.Errorf("%w: %s %s: malformed payload: %w", core.ErrProviderUnavailable, r.provider, op, err)
	}
	return nil
}
