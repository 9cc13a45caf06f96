// Package poollist fetches the public pool directory and normalizes it into
// model.Pool records.
package poollist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"poolCollector/internal/model"
	"poolCollector/internal/poolid"
)

// ErrSourceUnavailable wraps every failure to obtain a usable pool list.
var ErrSourceUnavailable = errors.New("pool list unavailable")

const (
	defaultTimeout   = 30 * time.Second
	maxListBodyBytes = 16 << 20
)

// rawPool is one directory entry as published. Flags are kept raw because
// their literal text is part of the pool identifier.
type rawPool struct {
	Name                      string          `json:"name"`
	URL                       string          `json:"url"`
	API                       string          `json:"api"`
	Type                      string          `json:"type"`
	MiningAddress             string          `json:"miningAddress"`
	MergedMining              json.RawMessage `json:"mergedMining"`
	MergedMiningIsParentChain json.RawMessage `json:"mergedMiningIsParentChain"`
}

type listBody struct {
	Pools *[]rawPool `json:"pools"`
}

// Source reads the pool directory from a fixed URL.
type Source struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewSource creates a Source. A nil client uses a client with a 30s timeout.
func NewSource(url string, client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{url: url, client: client, logger: logger}
}

// FetchList downloads the directory and returns its pools in source order,
// with identifiers derived and every polled field zeroed.
func (s *Source) FetchList(ctx context.Context) ([]model.Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}

	var body listBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrSourceUnavailable, err)
	}
	if body.Pools == nil {
		return nil, fmt.Errorf("%w: pool list not found", ErrSourceUnavailable)
	}

	pools := normalize(*body.Pools)
	for _, pool := range pools {
		if !pool.Type.Known() {
			s.logger.Warn("pool has unsupported type",
				zap.String("pool", pool.Name),
				zap.String("type", string(pool.Type)),
			)
		}
	}
	return pools, nil
}

// normalize converts directory entries into pools.
func normalize(entries []rawPool) []model.Pool {
	pools := make([]model.Pool, 0, len(entries))
	for _, entry := range entries {
		pool := model.Pool{
			ID: poolid.Generate(
				entry.MiningAddress,
				poolid.FlagText(entry.MergedMining),
				poolid.FlagText(entry.MergedMiningIsParentChain),
			),
			Name:                      entry.Name,
			URL:                       entry.URL,
			API:                       entry.API,
			Type:                      model.ParsePoolType(entry.Type),
			MiningAddress:             entry.MiningAddress,
			MergedMining:              model.BoolToFlag(truthy(entry.MergedMining)),
			MergedMiningIsParentChain: model.BoolToFlag(truthy(entry.MergedMiningIsParentChain)),
		}
		pool.ResetMetrics()
		pools = append(pools, pool)
	}
	return pools
}

// truthy treats false, 0, "", null and absent values as false.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n', 'f':
		return false
	case 't', '[', '{':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	default:
		v, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && v != 0
	}
}
