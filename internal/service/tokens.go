package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
)

// TokenInfo is one entry of the routing service's token list.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

type tokenFetch struct {
	done   chan struct{}
	tokens []TokenInfo
	err    error
}

// TokenCache caches the routing service's token list with a TTL. Concurrent
// cache misses share a single upstream fetch: later callers attach to the
// in-flight request instead of issuing their own.
type TokenCache struct {
	endpoint string
	apiKey   string
	http     *http.Client
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	tokens    []TokenInfo
	fetchedAt time.Time
	inflight  *tokenFetch
}

func NewTokenCache(pool *chain.Pool, endpoint, apiKey string, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenCache{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     pool.Handle(endpoint).HTTP,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Tokens returns the cached token list, fetching it when cold or expired.
func (c *TokenCache) Tokens(ctx context.Context) ([]TokenInfo, error) {
	c.mu.Lock()
	if c.tokens != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		tokens := c.tokens
		c.mu.Unlock()
		return tokens, nil
	}

	if c.inflight != nil {
		f := c.inflight
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.tokens, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f := &tokenFetch{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	tokens, err := c.fetch(ctx)

	c.mu.Lock()
	c.inflight = nil
	if err == nil {
		c.tokens = tokens
		c.fetchedAt = c.now()
	}
	c.mu.Unlock()

	f.tokens = tokens
	f.err = err
	close(f.done)
	return tokens, err
}

func (c *TokenCache) fetch(ctx context.Context) ([]TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/tokens", nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("token list fetch failed: status %d: %s", resp.StatusCode, body)
	}

	var tokens []TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}
