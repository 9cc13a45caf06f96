package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolCollector/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	api TEXT NOT NULL,
	type TEXT NOT NULL,
	mining_address TEXT NOT NULL,
	merged_mining SMALLINT NOT NULL,
	merged_mining_is_parent_chain SMALLINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool_polling (
	timestamp BIGINT NOT NULL,
	id TEXT NOT NULL,
	height BIGINT NOT NULL,
	hashrate BIGINT NOT NULL,
	miners BIGINT NOT NULL,
	fee DOUBLE PRECISION NOT NULL,
	donation DOUBLE PRECISION NOT NULL,
	min_payout DOUBLE PRECISION NOT NULL,
	last_block BIGINT NOT NULL,
	status SMALLINT NOT NULL,
	PRIMARY KEY (timestamp, id)
);

CREATE TABLE IF NOT EXISTS pool_blocks (
	timestamp BIGINT NOT NULL,
	id TEXT NOT NULL,
	height BIGINT NOT NULL,
	hash TEXT,
	PRIMARY KEY (timestamp, id, height)
);
`

// Store provides Postgres persistence for pools and their history.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SavePools inserts or updates pool metadata.
func (s *Store) SavePools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				id, name, url, api, type, mining_address, merged_mining, merged_mining_is_parent_chain, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				name = EXCLUDED.name,
				url = EXCLUDED.url,
				api = EXCLUDED.api,
				type = EXCLUDED.type,
				updated_at = now()
		`,
			pool.ID,
			pool.Name,
			pool.URL,
			pool.API,
			string(pool.Type),
			pool.MiningAddress,
			pool.MergedMining,
			pool.MergedMiningIsParentChain,
		)
	}
	return s.sendBatch(ctx, batch)
}

// SavePoolsPolling inserts one row per pool for the snapshot at timestamp.
func (s *Store) SavePoolsPolling(ctx context.Context, timestamp int64, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pool_polling (
				timestamp, id, height, hashrate, miners, fee, donation, min_payout, last_block, status
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (timestamp, id)
			DO UPDATE SET
				height = EXCLUDED.height,
				hashrate = EXCLUDED.hashrate,
				miners = EXCLUDED.miners,
				fee = EXCLUDED.fee,
				donation = EXCLUDED.donation,
				min_payout = EXCLUDED.min_payout,
				last_block = EXCLUDED.last_block,
				status = EXCLUDED.status
		`,
			timestamp,
			pool.ID,
			clampInt64(pool.Height),
			clampInt64(pool.Hashrate),
			clampInt64(pool.Miners),
			pool.Fee,
			pool.Donation,
			pool.MinPayout,
			pool.LastBlock,
			pool.Status,
		)
	}
	return s.sendBatch(ctx, batch)
}

// SavePoolsBlocks inserts the recent blocks of every pool stamped with the
// current time.
func (s *Store) SavePoolsBlocks(ctx context.Context, pools []model.Pool) error {
	snapshots := model.NewBlocksSnapshots(s.now().Unix(), pools)
	batch := &pgx.Batch{}
	for _, snapshot := range snapshots {
		for _, block := range snapshot.Blocks {
			var hash *string
			if block.Hash != "" {
				h := block.Hash
				hash = &h
			}
			batch.Queue(`
				INSERT INTO pool_blocks (timestamp, id, height, hash)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (timestamp, id, height)
				DO UPDATE SET hash = EXCLUDED.hash
			`,
				snapshot.Timestamp,
				snapshot.ID,
				clampInt64(block.Height),
				hash,
			)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return s.sendBatch(ctx, batch)
}

// CleanPollingHistory deletes polling and block rows older than cutoff.
func (s *Store) CleanPollingHistory(ctx context.Context, cutoff int64) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM pool_polling WHERE timestamp < $1`, cutoff)
	batch.Queue(`DELETE FROM pool_blocks WHERE timestamp < $1`, cutoff)
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
