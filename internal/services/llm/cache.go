package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// Completer is the JSON completion contract shared by every provider.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CachedCompleter memoises successful completions for identical message
// pairs. Failures are never cached.
type CachedCompleter struct {
	next  Completer
	store *cache.Cache
}

// NewCachedCompleter wraps next with a TTL cache. A non-positive ttl returns
// next unchanged.
func NewCachedCompleter(next Completer, ttl time.Duration) Completer {
	if ttl <= 0 || next == nil {
		return next
	}
	return &CachedCompleter{next: next, store: cache.New(ttl, 2*ttl)}
}

// CompleteJSON returns a cached response or delegates to the wrapped provider.
func (c *CachedCompleter) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	key := cacheKey(systemPrompt, userPrompt)
	if cached, ok := c.store.Get(key); ok {
		if content, ok := cached.(string); ok {
			return content, nil
		}
	}
	content, err := c.next.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	c.store.SetDefault(key, content)
	return content, nil
}

// Len reports the number of live cache entries.
func (c *CachedCompleter) Len() int {
	return c.store.ItemCount()
}

func cacheKey(systemPrompt, userPrompt string) string {
	sum := sha256.New()
	sum.Write([]byte(systemPrompt))
	sum.Write([]byte{0})
	sum.Write([]byte(userPrompt))
	return hex.EncodeToString(sum.Sum(nil))
}
