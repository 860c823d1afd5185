package audit

import (
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"clinicbook/internal/domain/compliance"
)

// Alerter receives events that crossed the critical threshold. Delivery is
// fire-and-forget; implementations must not block the ledger.
type Alerter interface {
	Alert(Event)
}

type AlerterFunc func(Event)

func (f AlerterFunc) Alert(e Event) { f(e) }

// Ledger is an append-only, integrity-hashed event store backed by a bounded
// ring buffer. Once the capacity is exceeded the oldest event is evicted;
// eviction is the only deletion path outside the retention purge flow.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	buf      []Event
	head     int
	size     int
	entropy  *ulid.MonotonicEntropy
	now      func() time.Time
	alerter  Alerter
	observer func(Event)
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithAlerter(a Alerter) LedgerOption {
	return func(l *Ledger) {
		l.alerter = a
	}
}

// WithObserver installs a callback invoked after every sealed event. It runs
// on the logging goroutine and must be cheap.
func WithObserver(fn func(Event)) LedgerOption {
	return func(l *Ledger) {
		l.observer = fn
	}
}

func NewLedger(capacity int, opts ...LedgerOption) (*Ledger, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ledger capacity must be positive, got %d", capacity)
	}
	l := &Ledger{
		capacity: capacity,
		buf:      make([]Event, capacity),
		entropy:  ulid.Monotonic(crand.Reader, 0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log assigns an id and timestamp, seals the event with its integrity hash
// and appends it. Auditability is a hard requirement: a hash failure here is
// a programming error and panics rather than silently dropping the record.
func (l *Ledger) Log(e Event) Event {
	l.mu.Lock()
	now := l.now()
	e.ID = ulid.MustNew(ulid.Timestamp(now), l.entropy).String()
	e.Timestamp = now.UTC()
	e.IntegrityHash = ""
	hash, err := compliance.AuditHash(e)
	if err != nil {
		l.mu.Unlock()
		panic(fmt.Sprintf("audit: event hash failed: %v", err))
	}
	e.IntegrityHash = hash

	if l.size < l.capacity {
		l.buf[(l.head+l.size)%l.capacity] = e
		l.size++
	} else {
		l.buf[l.head] = e
		l.head = (l.head + 1) % l.capacity
	}
	alerter, observer := l.alerter, l.observer
	l.mu.Unlock()

	if observer != nil {
		observer(e)
	}
	if alerter != nil && isCritical(e) {
		go alerter.Alert(e)
	}
	return e
}

func isCritical(e Event) bool {
	if e.RiskLevel == RiskCritical {
		return true
	}
	_, ok := criticalActions[e.Action]
	return ok
}

// Events returns all events matching the filter, newest first. Filters are
// conjunctive.
func (l *Ledger) Events(f Filter) []Event {
	snapshot := l.snapshot()
	out := make([]Event, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Timestamp.After(f.To) {
			continue
		}
		if f.RiskLevel != "" && e.RiskLevel != f.RiskLevel {
			continue
		}
		if f.PHIOnly && !e.PHIAccessed {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Statistics aggregates events within the trailing window of whole days.
func (l *Ledger) Statistics(windowDays int) Statistics {
	cutoff := l.clockNow().AddDate(0, 0, -windowDays)
	stats := Statistics{
		WindowDays:    windowDays,
		RiskBreakdown: map[Risk]int{RiskLow: 0, RiskMedium: 0, RiskHigh: 0, RiskCritical: 0},
	}
	actors := map[string]struct{}{}
	for _, e := range l.snapshot() {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalEvents++
		stats.RiskBreakdown[e.RiskLevel]++
		if e.PHIAccessed {
			stats.PHIAccessCount++
		}
		if e.Action == ActionLoginFailed {
			stats.FailedLogins++
		}
		if e.RiskLevel == RiskCritical {
			stats.CriticalEvents++
		}
		if e.ActorID != "" {
			actors[e.ActorID] = struct{}{}
		}
	}
	stats.UniqueActors = len(actors)
	return stats
}

// VerifyIntegrity recomputes every stored event's hash and returns the ids
// whose stored hash disagrees. A non-empty result means tampering or a writer
// bug and must never occur in correct operation.
func (l *Ledger) VerifyIntegrity() []string {
	var corrupted []string
	for _, e := range l.snapshot() {
		stored := e.IntegrityHash
		e.IntegrityHash = ""
		recomputed, err := compliance.AuditHash(e)
		if err != nil || recomputed != stored {
			corrupted = append(corrupted, e.ID)
		}
	}
	return corrupted
}

// Len reports the number of retained events.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// snapshot copies retained events oldest-first under the read lock.
func (l *Ledger) snapshot() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.head+i)%l.capacity]
	}
	return out
}

func (l *Ledger) clockNow() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.now()
}
