package statecache

import (
	"fmt"
	"strings"
	"time"

	"github.com/kinggekko/core/internal/domain"
)

// subscriptionID is a stable key for one subscription row: kind and
// endpoint together identify a stream uniquely (symbols can change
// without creating a new row).
func subscriptionID(kind domain.StreamKind, endpoint string) string {
	return string(kind) + "|" + endpoint
}

// SaveSubscription upserts one stream's last known state.
func (db *DB) SaveSubscription(sub domain.StreamSubscription) error {
	id := subscriptionID(sub.Kind, sub.EndpointURL)
	_, err := db.conn.Exec(`
		INSERT INTO stream_subscription (id, kind, symbols, endpoint_url, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbols=excluded.symbols,
			status=excluded.status,
			updated_at=excluded.updated_at
	`,
		id, string(sub.Kind), strings.Join(sub.Symbols, ","), sub.EndpointURL,
		string(sub.Status), time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("statecache: save subscription: %w", err)
	}
	return nil
}

// LoadSubscriptions returns every cached subscription row, in no
// particular order.
func (db *DB) LoadSubscriptions() ([]domain.StreamSubscription, error) {
	rows, err := db.conn.Query(`SELECT kind, symbols, endpoint_url, status FROM stream_subscription`)
	if err != nil {
		return nil, fmt.Errorf("statecache: load subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.StreamSubscription
	for rows.Next() {
		var kind, symbols, endpoint, status string
		if err := rows.Scan(&kind, &symbols, &endpoint, &status); err != nil {
			return nil, fmt.Errorf("statecache: scan subscription row: %w", err)
		}
		sub := domain.StreamSubscription{
			Kind:        domain.StreamKind(kind),
			EndpointURL: endpoint,
			Status:      domain.SessionStatus(status),
		}
		if symbols != "" {
			sub.Symbols = strings.Split(symbols, ",")
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statecache: iterate subscriptions: %w", err)
	}
	return subs, nil
}
