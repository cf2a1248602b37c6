package proposal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/spigell/rfp-intake/internal/models"
)

const defaultCacheTTL = 30 * time.Minute

// CachedExtractor memoizes successful extractions by the SHA-256 of the text,
// so a re-sent reply does not hit the model twice. Failures are not cached.
type CachedExtractor struct {
	next  Extractor
	cache *gocache.Cache
}

func NewCachedExtractor(next Extractor, ttl time.Duration) *CachedExtractor {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedExtractor{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	key := textKey(text)
	if v, ok := c.cache.Get(key); ok {
		return clone(v.(*Extraction)), nil
	}

	out, err := c.next.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, clone(out))
	return out, nil
}

// Len reports the number of cached extractions.
func (c *CachedExtractor) Len() int {
	return c.cache.ItemCount()
}

// clone copies the extraction deep enough that callers can mutate line items,
// totals, terms and top-level payload keys without touching the cached entry.
func clone(e *Extraction) *Extraction {
	out := *e
	if e.Total != nil {
		total := *e.Total
		out.Total = &total
	}
	if e.Terms != nil {
		terms := *e.Terms
		out.Terms = &terms
	}
	if e.LineItems != nil {
		out.LineItems = make([]models.LineItem, len(e.LineItems))
		copy(out.LineItems, e.LineItems)
	}
	if e.Payload != nil {
		out.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			out.Payload[k] = v
		}
	}
	return &out
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
