package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const TxKey contextKey = "db_tx"

// WithTx begins a transaction on the org-scoped connection stored in ctx and
// returns a derived context carrying the transaction. Repositories pick the
// transaction up via TxFromContext so grouped writes commit or roll back
// together.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("no database connection in context")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	return context.WithValue(ctx, TxKey, tx), tx, nil
}

// TxFromContext retrieves the active transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}
