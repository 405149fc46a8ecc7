package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/ledger"
	"github.com/st3v3nmw/schism/internal/logging"
)

const schemaSQL = `
create table if not exists accounts (
	id      int primary key,
	balance bigint not null
);

create table if not exists transfers (
	id        uuid primary key,
	source    int not null,
	dest      int not null,
	amount    bigint not null,
	issued_at timestamptz not null default now()
);
`

// Node is the pgx-backed Client for one replica.
type Node struct {
	name string
	pool *pgxpool.Pool
	log  *zap.Logger
}

var _ Client = (*Node)(nil)

// Connect opens a connection pool to a node. The node is not required to be
// reachable at connect time; pools establish connections lazily so a client
// can be created for a node that is currently down.
func Connect(ctx context.Context, name, dsn string) (*Node, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn for %s: %w", name, err)
	}

	cfg.MaxConns = 10
	cfg.ConnConfig.ConnectTimeout = 3 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool for %s: %w", name, err)
	}

	return &Node{name: name, pool: pool, log: logging.Named("cluster." + name)}, nil
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Setup(ctx context.Context, accounts int, initial int64) error {
	if _, err := n.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema on %s: %w", n.name, err)
	}

	if _, err := n.pool.Exec(ctx, `truncate accounts, transfers`); err != nil {
		return fmt.Errorf("reset tables on %s: %w", n.name, err)
	}

	_, err := n.pool.Exec(ctx,
		`insert into accounts (id, balance) select g, $2 from generate_series(0, $1 - 1) g`,
		accounts, initial)
	if err != nil {
		return fmt.Errorf("seed accounts on %s: %w", n.name, err)
	}

	n.log.Info("seeded accounts", zap.Int("accounts", accounts), zap.Int64("initial", initial))
	return nil
}

func (n *Node) Transfer(ctx context.Context, id uuid.UUID, source, dest int, amount int64) error {
	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`insert into transfers (id, source, dest, amount) values ($1, $2, $3, $4)`,
		id, source, dest, amount); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`update accounts set balance = balance - $1 where id = $2`, amount, source); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`update accounts set balance = balance + $1 where id = $2`, amount, dest); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (n *Node) HasTransfer(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := n.pool.QueryRow(ctx,
		`select exists (select 1 from transfers where id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (n *Node) Aggregate(ctx context.Context) (ledger.Snapshot, error) {
	// One connection so all reads observe a consistent point in time.
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}
	defer tx.Rollback(ctx)

	snap := ledger.Snapshot{Node: n.name, TakenAt: time.Now()}

	err = tx.QueryRow(ctx, `select coalesce(sum(balance), 0) from accounts`).Scan(&snap.TotalBalance)
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}

	err = tx.QueryRow(ctx, `select count(*) from transfers`).Scan(&snap.RowCount)
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}

	err = tx.QueryRow(ctx, `select count(*) from pg_prepared_xacts`).Scan(&snap.Prepared)
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}

	err = tx.QueryRow(ctx,
		`select coalesce(md5(string_agg(id::text || ':' || balance::text, ',' order by id)), '')
		 from accounts`).Scan(&snap.Hash)
	if err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Snapshot{Node: n.name}, err
	}

	snap.Valid = true
	return snap, nil
}

func (n *Node) Ping(ctx context.Context) error {
	return n.pool.Ping(ctx)
}

func (n *Node) Probe(ctx context.Context) (int64, error) {
	var txid int64
	if err := n.pool.QueryRow(ctx, `select txid_current()`).Scan(&txid); err != nil {
		return 0, err
	}

	return txid, nil
}

func (n *Node) Close() {
	n.pool.Close()
}
