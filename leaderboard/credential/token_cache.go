// leaderboard/credential/token_cache.go
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrCredentialUnavailable = fmt.Errorf("client credential unavailable")

// Store persists the current credential. Latest returns nil, nil when nothing is stored.
type Store interface {
	Latest(ctx context.Context) (*models.Credential, error)
	Save(ctx context.Context, cred models.Credential) error
}

// TokenResponse is the result of one client-credentials exchange.
type TokenResponse struct {
	AccessToken string
	ExpiresIn   time.Duration
	Subject     string
}

// TokenSource performs a single client-credentials exchange.
type TokenSource interface {
	FetchToken(ctx context.Context) (TokenResponse, error)
}

type Options struct {
	MaxAttempts int              // exchanges per refresh, default 2
	Backoff     time.Duration    // sleep between exchanges
	Now         func() time.Time // wall clock, default time.Now
}

// TokenCache hands out a valid client credential, refreshing it from the token
// endpoint only when the stored one has expired.
type TokenCache struct {
	store       Store
	source      TokenSource
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	logger      *zap.Logger
	group       singleflight.Group
}

func NewTokenCache(store Store, source TokenSource, opts Options, logger *zap.Logger) *TokenCache {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenCache{
		store:       store,
		source:      source,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		now:         opts.Now,
		logger:      logger.Named("token_cache"),
	}
}

// GetToken returns the stored credential while it is valid. Otherwise it refreshes;
// concurrent callers share a single refresh.
func (tc *TokenCache) GetToken(ctx context.Context) (models.Credential, error) {
	if cred, ok := tc.cached(ctx); ok {
		return cred, nil
	}

	// The refresh is shared, so one caller giving up must not cancel it for the rest.
	flightCtx := context.WithoutCancel(ctx)
	ch := tc.group.DoChan("refresh", func() (interface{}, error) {
		return tc.refresh(flightCtx)
	})
	select {
	case <-ctx.Done():
		return models.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.Credential{}, res.Err
		}
		return res.Val.(models.Credential), nil
	}
}

// cached reads the store; a store failure counts as a miss.
func (tc *TokenCache) cached(ctx context.Context) (models.Credential, bool) {
	cred, err := tc.store.Latest(ctx)
	if err != nil {
		tc.logger.Warn("failed to read stored credential", zap.Error(err))
		return models.Credential{}, false
	}
	if cred == nil || !cred.Valid(tc.now().UTC()) {
		return models.Credential{}, false
	}
	return *cred, true
}

func (tc *TokenCache) refresh(ctx context.Context) (models.Credential, error) {
	// A refresh that finished just before this flight started already stored a fresh token.
	if cred, ok := tc.cached(ctx); ok {
		return cred, nil
	}

	var lastErr error
	for attempt := 1; attempt <= tc.maxAttempts; attempt++ {
		cred, err := tc.exchange(ctx)
		if err == nil {
			if err := tc.store.Save(ctx, cred); err != nil {
				tc.logger.Warn("failed to persist refreshed credential", zap.Error(err))
			}
			tc.logger.Info("client credential refreshed",
				zap.Int("attempt", attempt),
				zap.Time("expires_at", cred.ExpiresAt))
			return cred, nil
		}

		lastErr = err
		tc.logger.Warn("token exchange failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == tc.maxAttempts {
			break
		}
		if err := sleep(ctx, tc.backoff); err != nil {
			lastErr = err
			break
		}
	}
	return models.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, lastErr)
}

func (tc *TokenCache) exchange(ctx context.Context) (models.Credential, error) {
	resp, err := tc.source.FetchToken(ctx)
	if err != nil {
		return models.Credential{}, err
	}
	if resp.AccessToken == "" {
		return models.Credential{}, fmt.Errorf("token endpoint returned an empty access token")
	}
	if resp.ExpiresIn <= 0 {
		return models.Credential{}, fmt.Errorf("token endpoint returned non-positive expires_in %v", resp.ExpiresIn)
	}

	issuedAt := tc.now().UTC()
	return models.Credential{
		AccessToken: resp.AccessToken,
		ExpiresAt:   issuedAt.Add(resp.ExpiresIn),
		Subject:     resp.Subject,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
