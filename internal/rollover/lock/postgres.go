package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"sync"
	"time"

	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/sentinel"
)

// advisoryNamespace is the first key of the two-int advisory lock so rollover
// locks never collide with other users of pg_advisory_lock.
const advisoryNamespace int32 = 0x65736772

// Postgres is a cross-instance lock built on session-level advisory locks.
// Every process sharing the database contends on the same key. The lock is
// held on a dedicated connection until release.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

type PostgresOption func(*Postgres)

func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(p *Postgres) {
		p.logger = logger
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Postgres) Acquire(ctx context.Context, key string) (func(), error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, p.unavailable(ctx, err)
	}

	var ok bool
	err = conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1, hashtext($2))`, advisoryNamespace, key).Scan(&ok)
	if err != nil {
		_ = conn.Close()
		return nil, p.unavailable(ctx, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, busyErr(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := conn.ExecContext(releaseCtx,
				`SELECT pg_advisory_unlock($1, hashtext($2))`, advisoryNamespace, key)
			if err != nil {
				p.logger.Warn("failed to release rollover advisory lock", "key", key, "error", err)
				// A session still holding the lock must not go back to the pool.
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
			_ = conn.Close()
		})
	}, nil
}

func (p *Postgres) unavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for rollover lock")
	}
	return dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeInternal, "rollover lock unavailable")
}
