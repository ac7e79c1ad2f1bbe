package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fundilink/FundiLink/internal/pkg/cache"
)

const (
	tokenCacheKey = "mpesa:access_token"

	// Refresh ahead of the provider's expiry so callers always hold a token
	// with at least five minutes of life left.
	tokenSafetyMargin = 5 * time.Minute
	tokenMaxLifetime  = time.Hour
)

// TokenCache holds at most one unexpired Daraja bearer token per process and
// refreshes it single-flight: one auth request at a time, other callers wait.
// When shared caching is enabled the token is also mirrored in Redis so
// sibling processes behind the same paybill reuse it.
type TokenCache struct {
	cfg        Config
	httpClient *http.Client
	shared     bool

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache(cfg Config, shared bool) *TokenCache {
	return &TokenCache{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		shared:     shared,
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Get returns a bearer token valid for at least another five minutes,
// refreshing from Redis or the auth endpoint if needed. Failures are never
// cached; the next caller retries.
func (t *TokenCache) Get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	if t.token != "" && now.Before(t.expiresAt) {
		return t.token, nil
	}

	if t.shared {
		if tok, ttl := t.fromSharedCache(); tok != "" && ttl > 0 {
			t.token = tok
			t.expiresAt = now.Add(ttl)
			return tok, nil
		}
	}

	tok, lifetime, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	t.token = tok
	t.expiresAt = now.Add(lifetime)
	if t.shared {
		if err := cache.Set(tokenCacheKey, tok, lifetime); err != nil {
			log.Printf("mpesa: could not mirror access token to cache: %v", err)
		}
	}
	return tok, nil
}

func (t *TokenCache) fromSharedCache() (string, time.Duration) {
	tok, err := cache.Get(tokenCacheKey)
	if err != nil {
		return "", 0
	}
	ttl, err := cache.TTL(tokenCacheKey)
	if err != nil || ttl <= 0 {
		return "", 0
	}
	return tok, ttl
}

func (t *TokenCache) fetch(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.AuthURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	req.SetBasicAuth(t.cfg.ConsumerKey, t.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: status=%d body=%s", ErrAuthUnavailable, resp.StatusCode, string(body))
	}

	var out authResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access_token", ErrAuthUnavailable)
	}

	lifetime := tokenMaxLifetime
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		if d := time.Duration(secs) * time.Second; d < lifetime {
			lifetime = d
		}
	}
	lifetime -= tokenSafetyMargin
	if lifetime <= 0 {
		return "", 0, fmt.Errorf("%w: token lifetime below safety margin", ErrAuthUnavailable)
	}
	return out.AccessToken, lifetime, nil
}
