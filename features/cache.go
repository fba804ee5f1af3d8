package features

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"

	"github.com/happyhackingspace/qsample/corpus"
)

// CacheConfig bounds a Cached extractor.
type CacheConfig struct {
	Capacity uint64        `mapstructure:"capacity" json:"capacity"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl"`
}

// DefaultCacheConfig returns a cache sized for a training corpus.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity: 200_000,
		TTL:      10 * time.Minute,
	}
}

// Cached memoizes another extractor per document and span position.
// Entries depend on predicted cues, so Purge must be called when cues change.
type Cached struct {
	next  SpanExtractor
	cache *ttlcache.Cache[uint64, []string]
}

// NewCached wraps next with a bounded cache.
func NewCached(next SpanExtractor, config CacheConfig) *Cached {
	opts := []ttlcache.Option[uint64, []string]{
		ttlcache.WithTTL[uint64, []string](config.TTL),
		ttlcache.WithDisableTouchOnHit[uint64, []string](),
	}
	if config.TTL <= 0 {
		opts[0] = ttlcache.WithTTL[uint64, []string](ttlcache.NoTTL)
	}
	if config.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[uint64, []string](config.Capacity))
	}
	return &Cached{next: next, cache: ttlcache.New(opts...)}
}

// SpanFeatures implements SpanExtractor.
func (c *Cached) SpanFeatures(doc *corpus.Document, s *corpus.Span) []string {
	key := spanKey(doc, s)
	if item := c.cache.Get(key); item != nil {
		return item.Value()
	}
	fs := c.next.SpanFeatures(doc, s)
	c.cache.Set(key, fs, ttlcache.DefaultTTL)
	return fs
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.cache.DeleteAll()
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func spanKey(doc *corpus.Document, s *corpus.Span) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(doc.ID)
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(doc.Len()))
	binary.LittleEndian.PutUint64(buf[8:], uint64(s.Begin))
	binary.LittleEndian.PutUint64(buf[16:], uint64(s.End))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}
