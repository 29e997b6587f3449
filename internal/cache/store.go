// Package cache stores extracted page text keyed by a hash of its URL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Key is the content address of a URL
type Key string

// Store content cache interface. Entries are write-once: Put never replaces
// a live entry, only an expired or unreadable one.
type Store interface {
	// Get returns the cached text for key; ok is false on a miss
	Get(key Key) (text string, ok bool, err error)
	// Put stores text under key
	Put(key Key, text string) error
	// Len returns the number of stored entries
	Len() (int, error)
	// Clear removes every entry
	Clear() error
	// Close releases the underlying storage
	Close() error
}

// Options shared by store implementations
type Options struct {
	// MaxAge expires entries older than this; 0 keeps them forever
	MaxAge time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// expired reports whether an entry stored at storedAt is past MaxAge
func (o Options) expired(storedAt time.Time) bool {
	return o.MaxAge > 0 && o.now().Sub(storedAt) > o.MaxAge
}

// NormalizeURL trims rawURL and upgrades plain http to https
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		if strings.HasPrefix(trimmed, "http://") {
			return "https://" + strings.TrimPrefix(trimmed, "http://")
		}
		return trimmed
	}
	if strings.EqualFold(u.Scheme, "http") {
		u.Scheme = "https"
	}
	return u.String()
}

// KeyForURL returns the cache key for rawURL. http and https forms of the
// same address share a key.
func KeyForURL(rawURL string) Key {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return Key(hex.EncodeToString(sum[:]))
}
