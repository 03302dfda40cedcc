// Package memory is the append-only personal memory log.
//
// Facts the user asks the assistant to remember, and opinions it is asked
// for, land here. Retrieval is keyword overlap against the prompt, newest
// first, formatted as a bullet list ready to splice into an LLM prompt.
package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/store"
)

// DefaultLimit caps how many memories a single retrieval returns.
const DefaultLimit = 5

// Words shorter than this are ignored when building the retrieval query.
const minKeywordLen = 4

// Log records and retrieves remembered facts.
type Log struct {
	db *store.DB

	// now allows tests to inject a clock.
	now func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock injects a clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a memory log over the shared store.
func New(db *store.DB, opts ...Option) *Log {
	l := &Log{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a fact with the current timestamp.
func (l *Log) Append(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	_, err := l.db.SQL().Exec(
		"INSERT INTO memories (timestamp, text) VALUES (?, ?)",
		l.now(), text,
	)
	if err != nil {
		return fmt.Errorf("memory: append: %w", err)
	}

	log.Component("memory").Debug("memory stored", "text", text)
	return nil
}

// Retrieve returns up to limit memories whose text shares a keyword with
// the prompt, newest first, one "- fact" bullet per line. Empty string when
// nothing matches; retrieval failures degrade to no memories.
func (l *Log) Retrieve(prompt string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	keywords := extractKeywords(prompt)
	if len(keywords) == 0 {
		return ""
	}

	clauses := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for _, kw := range keywords {
		clauses = append(clauses, "text LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	args = append(args, limit)

	query := "SELECT text FROM memories WHERE " + strings.Join(clauses, " OR ") +
		" ORDER BY timestamp DESC LIMIT ?"

	rows, err := l.db.SQL().Query(query, args...)
	if err != nil {
		log.Component("memory").Warn("memory retrieval failed", "error", err)
		return ""
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(text)
	}
	return b.String()
}

func extractKeywords(prompt string) []string {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if len([]rune(w)) < minKeywordLen {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}
