// Package tx carries an ambient *sql.Tx through context so the postgres
// stores join the caller's transaction. The pseudonymizer depends on this to
// keep record writes all-or-nothing.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx returns a context whose store operations run inside tx. A nil tx
// leaves the context untouched.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From reports the ambient transaction, if any. Stores fall back to their
// own *sql.DB when there is none.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
