// Package cache is the normalized-key response cache consulted between the
// skill pass and inference.
//
// Keys are a pure function of the prompt text: lower-cased, diacritics and
// punctuation stripped, stop words removed, whitespace collapsed. That way
// paraphrases like "qual é o tempo no Porto?" and "Qual o tempo no porto"
// share an entry, while lookup stays an O(1) exact match.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mfalcao/phantasma/pkg/store"
)

// DefaultTTL is how long a cached answer is served before it is considered
// stale. Expired entries are treated as misses, not deleted: the next put
// overwrites them in place.
const DefaultTTL = 7 * 24 * time.Hour

// ResponseCache stores answers keyed by normalized prompt.
type ResponseCache struct {
	db  *store.DB
	ttl time.Duration

	// now allows tests to inject a clock.
	now func() time.Time
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) { c.ttl = ttl }
}

// WithClock injects a clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// New creates a response cache over the shared store.
func New(db *store.DB, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		db:  db,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached answer for prompt, if one exists and is younger
// than the TTL. Expired entries are left in place and reported as misses.
func (c *ResponseCache) Get(prompt string) (string, bool) {
	key := Normalize(prompt)
	if key == "" {
		return "", false
	}

	var response string
	var createdAt time.Time
	err := c.db.SQL().QueryRow(
		"SELECT response, created_at FROM responses WHERE key = ?", key,
	).Scan(&response, &createdAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			// Local I/O failure is a miss, never fatal.
			return "", false
		}
		return "", false
	}

	if c.now().Sub(createdAt) >= c.ttl {
		return "", false
	}
	return response, true
}

// Put upserts the answer under the prompt's normalized key, stamping the
// current time. An expired entry under the same key is overwritten.
func (c *ResponseCache) Put(prompt, response string) error {
	key := Normalize(prompt)
	if key == "" || response == "" {
		return nil
	}

	_, err := c.db.SQL().Exec(
		`INSERT INTO responses (key, response, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET response = excluded.response, created_at = excluded.created_at`,
		key, response, c.now(),
	)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}
