package events

import (
	"hash/fnv"
	"time"

	"github.com/patrickmn/go-cache"
)

// DeduplicationConfig holds configuration for error deduplication
type DeduplicationConfig struct {
	Enabled         bool
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultDeduplicationConfig returns default deduplication settings
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:         true,
		TTL:             time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// ErrorDeduplicator suppresses identical errors seen within the TTL
type ErrorDeduplicator struct {
	enabled bool
	seen    *cache.Cache
}

// NewErrorDeduplicator creates a deduplicator; a nil config uses defaults
func NewErrorDeduplicator(config *DeduplicationConfig) *ErrorDeduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	return &ErrorDeduplicator{
		enabled: config.Enabled,
		seen:    cache.New(config.TTL, config.CleanupInterval),
	}
}

// ShouldProcess reports whether event is the first of its kind within the TTL
func (d *ErrorDeduplicator) ShouldProcess(event ErrorEvent) bool {
	if d == nil || !d.enabled {
		return true
	}
	// Add fails when the key is present and unexpired
	return d.seen.Add(fingerprint(event), struct{}{}, cache.DefaultExpiration) == nil
}

// Stop forgets every remembered fingerprint
func (d *ErrorDeduplicator) Stop() {
	if d == nil {
		return
	}
	d.seen.Flush()
}

func fingerprint(event ErrorEvent) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(event.GetComponent()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(event.GetCategory()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(event.GetMessage()))
	return string(h.Sum(nil))
}
