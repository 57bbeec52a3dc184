package journal

import (
	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/orders"
)

// OrderJournal adapts Journal to internal/orders' narrow Journal
// interface, recording every order outcome (submitted or skipped) under
// the trade tag.
type OrderJournal struct {
	j *Journal
}

// NewOrderJournal wraps j for use as an orders.Journal.
func NewOrderJournal(j *Journal) *OrderJournal {
	return &OrderJournal{j: j}
}

// AppendOrderOutcome implements orders.Journal.
func (o *OrderJournal) AppendOrderOutcome(outcome orders.OrderOutcome) error {
	_, err := o.j.Append(domain.TagTrade, outcome)
	return err
}
