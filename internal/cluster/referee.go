package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Referee reads the arbitration grant relation on the referee service. The
// relation is owned by the system under test; the harness only observes it.
type Referee struct {
	pool *pgxpool.Pool
}

// ConnectReferee opens a lazy connection pool to the referee.
func ConnectReferee(ctx context.Context, dsn string) (*Referee, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse referee dsn: %w", err)
	}

	cfg.MaxConns = 2
	cfg.ConnConfig.ConnectTimeout = 3 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open referee pool: %w", err)
	}

	return &Referee{pool: pool}, nil
}

// GrantHolder returns the node currently holding the "winner" grant, if any.
func (r *Referee) GrantHolder(ctx context.Context) (int64, bool, error) {
	var holder int64
	err := r.pool.QueryRow(ctx,
		`select node_id from referee.decision where key = 'winner'`).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return holder, true, nil
}

// Ping reports whether the referee accepts connections.
func (r *Referee) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the underlying connections.
func (r *Referee) Close() {
	r.pool.Close()
}
