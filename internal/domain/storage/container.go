package storage

import (
	"context"
	"fmt"

	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repos is the set of repositories bound to one Querier: the pool or a transaction.
type Repos struct {
	Payments paymentsrepo.Store
	PayLogs  paymentsrepo.LogsStore
}

func newRepos(q dbx.Querier) *Repos {
	return &Repos{
		Payments: paymentsrepo.NewRepository(q),
		PayLogs:  paymentsrepo.NewLogsRepository(q),
	}
}

type Container struct {
	pool *pgxpool.Pool
	Repos
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:  db,
		Repos: *newRepos(db),
	}
}

// WithTx runs fn against tx-scoped repositories and commits only if fn succeeds.
func (c *Container) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil (did you forget to set pool in NewContainer?)")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Ping reports whether the database is reachable.
func (c *Container) Ping(ctx context.Context) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil")
	}
	return c.pool.Ping(ctx)
}
