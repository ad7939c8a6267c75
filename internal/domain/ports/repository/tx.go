package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept nil or NoTX and then run on the pool.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and passes the
// handle through tx. fn returning an error rolls the transaction back.
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		plan, err := plans.FindByIDForUpdate(ctx, tx, id)
//		...
//		return plans.SetDraft(ctx, tx, plan.ID, snapshot, now)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
