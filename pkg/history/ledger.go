// Package history keeps the bounded, most-recent-first record of completed
// analyses.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// DefaultCapacity is the number of entries retained before the oldest is
// evicted.
const DefaultCapacity = 10

// ErrNotFound is returned when no entry matches the requested id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one completed analysis.
type Entry struct {
	ID         string            `json:"id" yaml:"id"`
	CreatedAt  time.Time         `json:"created_at" yaml:"createdAt"`
	Language   language.Language `json:"language" yaml:"language"`
	SourceCode string            `json:"source_code" yaml:"sourceCode"`
	Report     report.Report     `json:"report" yaml:"report"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Report = *e.Report.Clone()
	return e
}

// Ledger is a fixed-capacity ring buffer of entries. It is safe for
// concurrent use. Entries are copied on the way in and on the way out.
type Ledger struct {
	mu   sync.RWMutex
	buf  []Entry
	next int
	size int
}

// New returns an empty ledger with DefaultCapacity.
func New() *Ledger {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity returns an empty ledger holding at most capacity entries.
func NewWithCapacity(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{buf: make([]Entry, capacity)}
}

// Restore builds a ledger from entries given most-recent-first. Only the
// newest DefaultCapacity entries are kept.
func Restore(entries []Entry) *Ledger {
	l := New()
	if len(entries) > l.Cap() {
		entries = entries[:l.Cap()]
	}
	for i := len(entries) - 1; i >= 0; i-- {
		l.Append(entries[i])
	}
	return l
}

// Append inserts e as the most recent entry, evicting the oldest when the
// ledger is full.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = e.Clone()
	l.next = (l.next + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
}

// Record creates an entry with a fresh time-ordered id and appends it.
func (l *Ledger) Record(lang language.Language, code string, r *report.Report, at time.Time) (Entry, error) {
	if r == nil {
		return Entry{}, errors.New("cannot record a nil report")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to generate history id: %w", err)
	}
	e := Entry{
		ID:         id.String(),
		CreatedAt:  at,
		Language:   lang,
		SourceCode: code,
		Report:     *r.Clone(),
	}
	l.Append(e)
	return e.Clone(), nil
}

// Entries returns a copy of all entries, most recent first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.buf[l.index(i)].Clone())
	}
	return out
}

// Get returns a copy of the entry with the given id.
func (l *Ledger) Get(id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 0; i < l.size; i++ {
		if e := l.buf[l.index(i)]; e.ID == id {
			return e.Clone(), nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Clear removes every entry.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.buf)
	l.next = 0
	l.size = 0
}

// Len returns the number of stored entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the maximum number of stored entries.
func (l *Ledger) Cap() int {
	return len(l.buf)
}

// index maps a recency position (0 = newest) to a buffer slot.
func (l *Ledger) index(i int) int {
	n := len(l.buf)
	return (l.next - 1 - i + 2*n) % n
}
