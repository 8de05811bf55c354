package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// maxJWKSSize bounds the JWKS response body.
const maxJWKSSize = 1 << 20

type jwksEntry struct {
	keys      *jose.JSONWebKeySet
	fetchedAt time.Time
}

// JWKSCache fetches key sets and keeps them for a bounded time, keyed by URL.
// Concurrent misses for the same URL share a single fetch.
type JWKSCache struct {
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	// minRefresh limits forced refetches triggered by unknown key ids.
	minRefresh time.Duration

	mu      sync.RWMutex
	entries map[string]jwksEntry
	group   singleflight.Group
}

// NewJWKSCache creates a cache. A non-positive ttl disables caching.
func NewJWKSCache(client *http.Client, ttl time.Duration) *JWKSCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSCache{
		client:     client,
		ttl:        ttl,
		now:        time.Now,
		minRefresh: 30 * time.Second,
		entries:    make(map[string]jwksEntry),
	}
}

// Get returns the key set for url, fetching it when missing or stale.
func (c *JWKSCache) Get(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.keys, nil
	}
	return c.fetch(ctx, url)
}

// Refresh refetches the key set unless it was fetched very recently.
func (c *JWKSCache) Refresh(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.minRefresh {
		return entry.keys, nil
	}
	return c.fetch(ctx, url)
}

func (c *JWKSCache) fetch(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	v, err, _ := c.group.Do(url, func() (any, error) {
		keys, err := c.download(ctx, url)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[url] = jwksEntry{keys: keys, fetchedAt: c.now()}
			c.mu.Unlock()
		}
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jose.JSONWebKeySet), nil
}

func (c *JWKSCache) download(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch jwks: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read jwks: %v", domain.ErrUpstreamUnavailable, err)
	}

	var keys jose.JSONWebKeySet
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("%w: decode jwks: %v", domain.ErrMalformedUpstreamResponse, err)
	}
	return &keys, nil
}
