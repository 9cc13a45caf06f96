// Package bolt persists pools and their history in an embedded bbolt file.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"poolCollector/internal/model"
)

// Bucket names.
var (
	// bucketPools holds the latest pool record keyed by pool id.
	bucketPools = []byte("pools")

	// bucketPolling holds status snapshots keyed by timestamp and sequence.
	bucketPolling = []byte("polling")

	// bucketBlocks holds block snapshots keyed by timestamp and pool id.
	bucketBlocks = []byte("blocks")
)

// Store is a bbolt backed storage.Storage.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return store, nil
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPools, bucketPolling, bucketBlocks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePools upserts every pool by id.
func (s *Store) SavePools(_ context.Context, pools []model.Pool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPools)
		for _, pool := range pools {
			data, err := json.Marshal(pool)
			if err != nil {
				return fmt.Errorf("marshal pool %s: %w", pool.ID, err)
			}
			if err := b.Put([]byte(pool.ID), data); err != nil {
				return fmt.Errorf("put pool %s: %w", pool.ID, err)
			}
		}
		return nil
	})
}

// SavePoolsPolling stores one status snapshot.
func (s *Store) SavePoolsPolling(_ context.Context, timestamp int64, pools []model.Pool) error {
	if pools == nil {
		pools = []model.Pool{}
	}
	data, err := json.Marshal(model.PollingSnapshot{Timestamp: timestamp, Pools: pools})
	if err != nil {
		return fmt.Errorf("marshal polling snapshot: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPolling)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := encodeTimeKey(timestamp, encodeUint(seq))
		return b.Put(key, data)
	})
}

// SavePoolsBlocks stores one block snapshot per pool.
func (s *Store) SavePoolsBlocks(_ context.Context, pools []model.Pool) error {
	snapshots := model.NewBlocksSnapshots(s.now().Unix(), pools)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		for _, snapshot := range snapshots {
			data, err := json.Marshal(snapshot)
			if err != nil {
				return fmt.Errorf("marshal blocks %s: %w", snapshot.ID, err)
			}
			if err := b.Put(encodeTimeKey(snapshot.Timestamp, []byte(snapshot.ID)), data); err != nil {
				return fmt.Errorf("put blocks %s: %w", snapshot.ID, err)
			}
		}
		return nil
	})
}

// CleanPollingHistory deletes polling and block snapshots older than cutoff.
func (s *Store) CleanPollingHistory(_ context.Context, cutoff int64) error {
	maxKey := encodeTimestamp(cutoff)
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPolling, bucketBlocks} {
			c := tx.Bucket(name).Cursor()
			for k, _ := c.First(); k != nil && bytes.Compare(k[:8], maxKey) < 0; k, _ = c.First() {
				if err := c.Delete(); err != nil {
					return fmt.Errorf("delete from %s: %w", name, err)
				}
			}
		}
		return nil
	})
}

// Pools returns every stored pool keyed by id.
func (s *Store) Pools() (map[string]model.Pool, error) {
	out := make(map[string]model.Pool)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).ForEach(func(k, v []byte) error {
			var pool model.Pool
			if err := json.Unmarshal(v, &pool); err != nil {
				return fmt.Errorf("decode pool %s: %w", k, err)
			}
			out[string(k)] = pool
			return nil
		})
	})
	return out, err
}

// PollingSnapshots returns the stored status snapshots oldest first.
func (s *Store) PollingSnapshots() ([]model.PollingSnapshot, error) {
	var out []model.PollingSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolling).ForEach(func(_, v []byte) error {
			var snapshot model.PollingSnapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				return fmt.Errorf("decode polling snapshot: %w", err)
			}
			out = append(out, snapshot)
			return nil
		})
	})
	return out, err
}

// BlocksSnapshots returns the stored block snapshots oldest first.
func (s *Store) BlocksSnapshots() ([]model.BlocksSnapshot, error) {
	var out []model.BlocksSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).ForEach(func(_, v []byte) error {
			var snapshot model.BlocksSnapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				return fmt.Errorf("decode blocks snapshot: %w", err)
			}
			out = append(out, snapshot)
			return nil
		})
	})
	return out, err
}

// encodeTimestamp encodes ts big-endian so keys sort by time. Negative
// timestamps clamp to zero.
func encodeTimestamp(ts int64) []byte {
	if ts < 0 {
		ts = 0
	}
	return encodeUint(uint64(ts))
}

func encodeUint(v uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, v)
	return key
}

func encodeTimeKey(ts int64, suffix []byte) []byte {
	key := make([]byte, 0, 8+len(suffix))
	key = append(key, encodeTimestamp(ts)...)
	return append(key, suffix...)
}
