package orders

import (
	"time"

	"github.com/kinggekko/core/internal/domain"
)

// OrderOutcome is what the gateway hands to the journal for every
// decision it evaluates, whether submitted or skipped.
type OrderOutcome struct {
	Symbol      string
	Kind        IntentKind
	Action      domain.DecisionAction
	SkipReason  SkipReason
	Result      domain.OrderResult
	SubmittedAt time.Time
}

// Journal is the append-only audit sink (C14). Narrowed to the one
// method this package needs so internal/orders does not depend on
// internal/journal's concrete record types.
type Journal interface {
	AppendOrderOutcome(OrderOutcome) error
}
