// Package auth memoizes a bearer credential for authenticated catalogs and refreshes it
// with at most one request in flight.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"songswipe/internal/core"
)

// ExpiryMargin treats a credential as expired slightly before its real expiry.
const ExpiryMargin = 30 * time.Second

// Fetcher obtains a fresh credential. current is the credential being replaced and may be empty.
type Fetcher interface {
	Fetch(ctx context.Context, current core.Credential) (core.Credential, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, current core.Credential) (core.Credential, error)

func (f FetcherFunc) Fetch(ctx context.Context, current core.Credential) (core.Credential, error) {
	return f(ctx, current)
}

// Provider implements core.CredentialProvider.
type Provider struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current core.Credential
	fetcher Fetcher

	group singleflight.Group
}

func NewProvider(fetcher Fetcher, logger *zap.Logger) *Provider {
	return &Provider{
		logger:  logger.Named("credentials"),
		now:     time.Now,
		fetcher: fetcher,
	}
}

// GetValidCredential returns the memoized credential or refreshes it.
// Concurrent callers that find it expired share one refresh.
func (p *Provider) GetValidCredential(ctx context.Context) (core.Credential, error) {
	p.mu.RLock()
	current, fetcher := p.current, p.fetcher
	p.mu.RUnlock()

	if current.ValidAt(p.now(), ExpiryMargin) {
		return current, nil
	}
	if fetcher == nil {
		return core.Credential{}, fmt.Errorf("%w: no credential source configured", core.ErrCredentialExpiredOrInvalid)
	}

	ch := p.group.DoChan("refresh", func() (any, error) {
		// another caller may have refreshed while we waited for the group
		p.mu.RLock()
		latest := p.current
		p.mu.RUnlock()
		if latest.ValidAt(p.now(), ExpiryMargin) {
			return latest, nil
		}

		// the refresh outlives any single caller's cancellation
		fresh, err := fetcher.Fetch(context.WithoutCancel(ctx), latest)
		if err != nil {
			return core.Credential{}, err
		}
		if fresh.ObtainedAt.IsZero() {
			fresh.ObtainedAt = p.now()
		}

		p.mu.Lock()
		p.current = fresh
		p.mu.Unlock()

		p.logger.Debug("Credential refreshed",
			zap.Time("expires_at", fresh.ExpiresAt()))
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return core.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Credential{}, fmt.Errorf("%w: refresh failed: %w", core.ErrCredentialExpiredOrInvalid, res.Err)
		}
		return res.Val.(core.Credential), nil
	}
}

// Invalidate drops the memoized credential if it is still the one that was rejected.
func (p *Provider) Invalidate(stale core.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.AccessToken == stale.AccessToken {
		p.logger.Debug("Credential invalidated")
		keep := p.current.RefreshToken
		p.current = core.Credential{RefreshToken: keep}
	}
}

// SetCredential installs a credential obtained outside the provider, e.g. from an
// authorization-code exchange, and optionally switches to a new refresh source.
func (p *Provider) SetCredential(cred core.Credential, fetcher Fetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cred.ObtainedAt.IsZero() {
		cred.ObtainedAt = p.now()
	}
	p.current = cred
	if fetcher != nil {
		p.fetcher = fetcher
	}
}

// Current returns the memoized credential without refreshing it.
func (p *Provider) Current() core.Credential {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
