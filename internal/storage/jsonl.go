package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"poolCollector/internal/model"
)

const (
	poolsFile   = "pools.json"
	pollingFile = "polling.jsonl"
	blocksFile  = "blocks.jsonl"
)

// JsonlStorage keeps the pool list as a JSON document and the polling and
// block history as JSON lines, all inside one directory.
type JsonlStorage struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewJsonlStorage(dir string) *JsonlStorage {
	return &JsonlStorage{dir: dir, now: time.Now}
}

// SavePools replaces pools.json with the given list.
func (s *JsonlStorage) SavePools(_ context.Context, pools []model.Pool) error {
	if pools == nil {
		pools = []model.Pool{}
	}
	data, err := json.MarshalIndent(pools, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pools: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replaceFile(poolsFile, data)
}

// SavePoolsPolling appends one snapshot line to polling.jsonl.
func (s *JsonlStorage) SavePoolsPolling(_ context.Context, timestamp int64, pools []model.Pool) error {
	if pools == nil {
		pools = []model.Pool{}
	}
	return s.appendLines(pollingFile, []interface{}{model.PollingSnapshot{Timestamp: timestamp, Pools: pools}})
}

// SavePoolsBlocks appends one line per pool to blocks.jsonl.
func (s *JsonlStorage) SavePoolsBlocks(_ context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	snapshots := model.NewBlocksSnapshots(s.now().Unix(), pools)
	records := make([]interface{}, 0, len(snapshots))
	for _, snapshot := range snapshots {
		records = append(records, snapshot)
	}
	return s.appendLines(blocksFile, records)
}

// CleanPollingHistory rewrites the history files without records older than cutoff.
func (s *JsonlStorage) CleanPollingHistory(_ context.Context, cutoff int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{pollingFile, blocksFile} {
		if err := s.pruneFile(name, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func (s *JsonlStorage) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func (s *JsonlStorage) appendLines(name string, records []interface{}) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

func (s *JsonlStorage) pruneFile(name string, cutoff int64) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}

	var kept bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var stamp struct {
			Timestamp int64 `json:"timestamp"`
		}
		if err := json.Unmarshal(line, &stamp); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		if stamp.Timestamp < cutoff {
			continue
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", name, err)
	}

	return s.replaceFile(name, kept.Bytes())
}

// replaceFile writes data to name through a temporary file and a rename.
func (s *JsonlStorage) replaceFile(name string, data []byte) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
