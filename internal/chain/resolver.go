package chain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolCollector/internal/metrics"
	"poolCollector/internal/model"
)

// sentinelHash is what the node reports for a height it cannot resolve.
const sentinelHash = "0"

const defaultLookupConcurrency = 8

// ErrHashUnavailable marks a block whose hash could not be backfilled.
var ErrHashUnavailable = errors.New("block hash unavailable")

// HeaderSource looks up block headers by height.
type HeaderSource interface {
	BlockHeaderByHeight(ctx context.Context, height uint64) (BlockHeader, error)
}

// Resolver backfills missing block hashes from a HeaderSource.
type Resolver struct {
	source      HeaderSource
	metrics     *metrics.Metrics
	logger      *zap.Logger
	concurrency int
}

// NewResolver builds a Resolver. A nil source drops every block lacking a hash.
func NewResolver(source HeaderSource, m *metrics.Metrics, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:      source,
		metrics:     m,
		logger:      logger,
		concurrency: defaultLookupConcurrency,
	}
}

// Resolve fills in the hash of every block that lacks a complete one. Blocks
// whose lookup fails or yields the sentinel hash are dropped. The result is
// ordered by height, highest first.
func (r *Resolver) Resolve(ctx context.Context, blocks []model.Block) []model.Block {
	resolved := make([]model.Block, len(blocks))
	keep := make([]bool, len(blocks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, block := range blocks {
		if isCompleteHash(block.Hash) {
			resolved[i] = block
			keep[i] = true
			continue
		}
		i, block := i, block
		g.Go(func() error {
			hash, err := r.lookup(gCtx, block.Height)
			if err != nil {
				r.logger.Debug("drop block without hash", zap.Uint64("height", block.Height), zap.Error(err))
				return nil
			}
			resolved[i] = model.Block{Hash: hash, Height: block.Height}
			keep[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Block, 0, len(blocks))
	for i := range resolved {
		if keep[i] {
			out = append(out, resolved[i])
		}
	}
	return model.OrderBlocksDescending(out)
}

func (r *Resolver) lookup(ctx context.Context, height uint64) (string, error) {
	if r.source == nil {
		return "", fmt.Errorf("%w: no chain node configured", ErrHashUnavailable)
	}
	header, err := r.source.BlockHeaderByHeight(ctx, height)
	if err != nil {
		r.metrics.HashLookup("failed")
		return "", fmt.Errorf("%w: %v", ErrHashUnavailable, err)
	}
	if header.Hash == sentinelHash || header.Hash == "" {
		r.metrics.HashLookup("sentinel")
		return "", fmt.Errorf("%w: node returned placeholder", ErrHashUnavailable)
	}
	r.metrics.HashLookup("ok")
	return header.Hash, nil
}

func isCompleteHash(hash string) bool {
	return len(hash) == model.HashLength
}
