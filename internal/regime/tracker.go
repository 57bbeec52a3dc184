package regime

import (
	"sync"
	"time"

	"github.com/kinggekko/core/internal/domain"
)

// Tracker keeps a rolling history of classifications so DurationDays can
// reflect how long the current regime has actually persisted, rather than
// the reference implementation's fixed placeholder value.
type Tracker struct {
	mu          sync.Mutex
	history     []domain.MarketRegime
	currentKind domain.RegimeKind
	since       time.Time
	maxHistory  int
}

// NewTracker creates an empty regime history tracker.
func NewTracker() *Tracker {
	return &Tracker{maxHistory: 500}
}

// Observe classifies ind and records the result, filling in DurationDays
// based on how long the regime kind has held since the last change.
func (t *Tracker) Observe(ind Indicators, now time.Time) domain.MarketRegime {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := Classify(ind)

	if r.Kind != t.currentKind || t.since.IsZero() {
		t.currentKind = r.Kind
		t.since = now
	}
	r.DurationDays = int(now.Sub(t.since).Hours() / 24)

	t.history = append(t.history, r)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}
	return r
}

// History returns a defensive copy of the recorded classifications.
func (t *Tracker) History() []domain.MarketRegime {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.MarketRegime, len(t.history))
	copy(out, t.history)
	return out
}
