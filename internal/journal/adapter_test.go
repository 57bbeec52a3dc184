package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/orders"
)

func TestOrderJournal_AppendOrderOutcome_RecordsUnderTradeTag(t *testing.T) {
	j := openTemp(t)
	oj := NewOrderJournal(j)

	err := oj.AppendOrderOutcome(orders.OrderOutcome{
		Symbol:      "AAPL",
		Kind:        orders.IntentStrategy,
		Action:      domain.ActionOpenLong,
		SkipReason:  orders.SkipNone,
		Result:      domain.OrderResult{Success: true, OrderID: "order-1"},
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	records, err := j.Scan(func(tag domain.JournalTag) bool { return tag == domain.TagTrade })
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].ID)
}
