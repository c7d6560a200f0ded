package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"savvycent/internal/core"
	"savvycent/internal/storage"
)

// balanceDeltas accumulates signed balance changes per account so that a
// unit touching many transactions writes each account once.
type balanceDeltas map[string]core.Money

func (d balanceDeltas) add(accountID string, delta core.Money) {
	d[accountID] = d[accountID].Add(delta)
}

// apply writes every non-zero delta through q. q must be bound to the same
// transaction as the record writes that produced the deltas.
func (d balanceDeltas) apply(ctx context.Context, q *storage.Queries, now time.Time) error {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := applyBalanceDelta(ctx, q, id, d[id], now); err != nil {
			return err
		}
	}
	return nil
}

func applyBalanceDelta(ctx context.Context, q *storage.Queries, accountID string, delta core.Money, now time.Time) error {
	if delta.IsZero() {
		return nil
	}
	balance, err := q.AddAccountBalance(ctx, accountID, delta, now)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Account balance adjusted",
		"account_id", accountID,
		"delta", delta.String(),
		"balance", balance.String())
	return nil
}
