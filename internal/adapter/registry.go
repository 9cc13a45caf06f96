// Package adapter normalizes the status and block APIs of the supported pool
// software into model.Pool records.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolCollector/internal/metrics"
	"poolCollector/internal/model"
)

const (
	// legacyTimeout bounds each sub-fetch of the forknote, node.js and other pools.
	legacyTimeout = 3 * time.Second
	// modernTimeout bounds each sub-fetch of the solo and snowflake pools.
	modernTimeout = 10 * time.Second
)

// ErrUnknownPoolType is carried by results for pools no adapter understands.
var ErrUnknownPoolType = errors.New("Unknown Pool Type")

// Result is the outcome of one adapter call. Err is only set when the pool
// could not be dispatched; upstream failures leave default values in Pool.
type Result struct {
	Pool model.Pool
	Err  error
}

// BlockResolver backfills block hashes and orders blocks highest first.
type BlockResolver interface {
	Resolve(ctx context.Context, blocks []model.Block) []model.Block
}

// Options configures a Registry.
type Options struct {
	Client         *http.Client
	Resolver       BlockResolver
	BlockAPI       string
	MinedBlocksURL string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// DefaultBlockAPI resolves a block hash to its header for solo pools.
const DefaultBlockAPI = "https://blockapi.turtlepay.io/block/header/"

// DefaultMinedBlocksURL lists blocks found by cryptonote.social.
const DefaultMinedBlocksURL = "https://cryptonote.social/json/MinedBlocks"

// reading accumulates the normalized status of one pool during a poll.
type reading struct {
	height    uint64
	hashrate  uint64
	miners    uint64
	fee       float64
	donation  float64
	minPayout float64
	lastBlock float64
	online    bool
}

// variant is one pool software flavour.
type variant interface {
	status(ctx context.Context, pool model.Pool, r *reading)
	blocks(ctx context.Context, pool model.Pool) []model.Block
}

// Registry dispatches pools to the variant matching their type.
type Registry struct {
	variants map[model.PoolType]variant
}

// NewRegistry builds a registry with one variant per model.PoolTypes entry.
func NewRegistry(opts Options) *Registry {
	if opts.Client == nil {
		opts.Client = NewHTTPClient(true)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BlockAPI == "" {
		opts.BlockAPI = DefaultBlockAPI
	}
	if opts.MinedBlocksURL == "" {
		opts.MinedBlocksURL = DefaultMinedBlocksURL
	}

	b := base{
		fetch:   &fetcher{client: opts.Client},
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}

	return &Registry{
		variants: map[model.PoolType]variant{
			model.TypeForknote:   &forknote{base: b, resolver: opts.Resolver},
			model.TypeNodeJS:     &nodeJS{base: b, resolver: opts.Resolver},
			model.TypeOther:      &other{base: b, minedBlocksURL: opts.MinedBlocksURL},
			model.TypeSolo:       &solo{base: b, blockAPI: opts.BlockAPI},
			model.TypeSnowflake1: newSnowflake(b, ""),
			model.TypeSnowflake2: newSnowflake(b, "api"),
		},
	}
}

// Supports reports whether t has an adapter.
func (r *Registry) Supports(t model.PoolType) bool {
	_, ok := r.variants[t]
	return ok
}

// FetchStatus polls the pool's status endpoints and returns the pool with
// freshly normalized metrics.
func (r *Registry) FetchStatus(ctx context.Context, pool model.Pool) Result {
	v, ok := r.variants[pool.Type]
	if !ok {
		return Result{Pool: pool, Err: fmt.Errorf("%w: %q", ErrUnknownPoolType, pool.Type)}
	}

	out := pool.Clone()
	out.ResetMetrics()

	var rd reading
	v.status(ctx, out, &rd)
	rd.applyTo(&out)

	return Result{Pool: out}
}

// FetchBlocks fetches the pool's recent blocks, highest first, capped to
// model.MaxRecentBlocks.
func (r *Registry) FetchBlocks(ctx context.Context, pool model.Pool) Result {
	v, ok := r.variants[pool.Type]
	if !ok {
		return Result{Pool: pool, Err: fmt.Errorf("%w: %q", ErrUnknownPoolType, pool.Type)}
	}

	out := pool.Clone()
	blocks := model.CapBlocks(v.blocks(ctx, out), model.MaxRecentBlocks)
	if blocks == nil {
		blocks = []model.Block{}
	}
	out.Blocks = blocks

	return Result{Pool: out}
}

func (r *reading) applyTo(pool *model.Pool) {
	pool.Height = r.height
	pool.Hashrate = r.hashrate
	pool.Miners = r.miners
	pool.MinPayout = finite(r.minPayout)
	pool.Fee = roundPercent(r.fee)
	pool.Donation = roundPercent(r.donation)

	// New pools often report no last block at all.
	if math.IsNaN(r.lastBlock) || math.IsInf(r.lastBlock, 0) {
		pool.LastBlock = 0
	} else {
		pool.LastBlock = int64(r.lastBlock)
	}

	if r.online {
		pool.Status = model.StatusOnline
	} else {
		pool.Status = model.StatusUnknown
	}
}

// roundPercent rounds half away from zero to two decimal places.
func roundPercent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	rounded, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return rounded
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// base carries what every variant needs to reach upstream APIs.
type base struct {
	fetch   *fetcher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// failed records a swallowed sub-fetch failure.
func (b base) failed(pool model.Pool, url string, err error) {
	b.metrics.AdapterError(string(pool.Type))
	b.logger.Debug("pool sub-fetch failed",
		zap.String("pool", pool.ID),
		zap.String("type", string(pool.Type)),
		zap.String("url", url),
		zap.Error(err),
	)
}

// getJSON fetches url into out, reporting and swallowing failures.
func (b base) getJSON(ctx context.Context, pool model.Pool, url string, timeout time.Duration, out interface{}) bool {
	if err := b.fetch.getJSON(ctx, url, timeout, out); err != nil {
		b.failed(pool, url, err)
		return false
	}
	return true
}

// getLenientJSON is getJSON for bodies whose fields may carry unexpected
// types. Fields that decode are kept and the type error is only reported;
// false means the request failed or the body was not JSON.
func (b base) getLenientJSON(ctx context.Context, pool model.Pool, url string, timeout time.Duration, out interface{}) bool {
	var raw json.RawMessage
	if !b.getJSON(ctx, pool, url, timeout, &raw) {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		b.failed(pool, url, err)
	}
	return true
}

// blockEntry is the common shape of a recent-block listing entry.
type blockEntry struct {
	Hash   string `json:"hash"`
	Height Number `json:"height"`
}

func toBlocks(entries []blockEntry) []model.Block {
	out := make([]model.Block, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Block{Hash: e.Hash, Height: e.Height.Uint()})
	}
	return out
}
