package adapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"

	"poolCollector/internal/model"
)

type forknoteStats struct {
	Pool    *forknotePool    `json:"pool"`
	Network *forknoteNetwork `json:"network"`
	Config  *forknoteConfig  `json:"config"`
}

type forknotePool struct {
	Hashrate       Number `json:"hashrate"`
	Miners         Number `json:"miners"`
	LastBlockFound Number `json:"lastBlockFound"`
	SoloHashrate   Number `json:"soloHashrate"`
	SoloMiners     Number `json:"soloMiners"`
	// Blocks alternates "hash:timestamp:..." descriptors and heights.
	Blocks json.RawMessage `json:"blocks"`
}

type forknoteNetwork struct {
	Height Number `json:"height"`
}

type forknoteConfig struct {
	Fee                 Number        `json:"fee"`
	MinPaymentThreshold Number        `json:"minPaymentThreshold"`
	Donation            donationTotal `json:"donation"`
}

// forknote handles forknote / cryptonote-universal-pool APIs.
type forknote struct {
	base
	resolver BlockResolver
}

func (f *forknote) status(ctx context.Context, pool model.Pool, r *reading) {
	stats, ok := f.fetchStats(ctx, pool)
	if !ok {
		return
	}
	r.online = true
	r.lastBlock = math.NaN()

	if p := stats.Pool; p != nil {
		r.hashrate = p.Hashrate.Uint() + p.SoloHashrate.Uint()
		r.miners = p.Miners.Uint() + p.SoloMiners.Uint()
		r.lastBlock = millisToSeconds(p.LastBlockFound.Float())
	}
	if n := stats.Network; n != nil {
		r.height = n.Height.Uint()
	}
	if c := stats.Config; c != nil {
		r.fee = c.Fee.OrZero() + float64(c.Donation)
		r.minPayout = math.Trunc(c.MinPaymentThreshold.OrZero())
	}
}

func (f *forknote) blocks(ctx context.Context, pool model.Pool) []model.Block {
	stats, ok := f.fetchStats(ctx, pool)
	if !ok || stats.Pool == nil {
		return nil
	}
	return resolveBlocks(ctx, f.resolver, parseForknoteBlocks(stats.Pool.Blocks))
}

// fetchStats reports false when the endpoint failed or returned an empty body.
func (f *forknote) fetchStats(ctx context.Context, pool model.Pool) (forknoteStats, bool) {
	url := endpoint(pool.API, "stats")
	var raw json.RawMessage
	if !f.getJSON(ctx, pool, url, legacyTimeout, &raw) {
		return forknoteStats{}, false
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil || len(keys) == 0 {
		return forknoteStats{}, false
	}

	var stats forknoteStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		// Non-empty but oddly shaped: the pool answered, so it still counts.
		f.failed(pool, url, err)
	}
	return stats, true
}

func parseForknoteBlocks(raw json.RawMessage) []model.Block {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	out := make([]model.Block, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		var descriptor string
		_ = json.Unmarshal(entries[i], &descriptor)

		var height Number
		_ = height.UnmarshalJSON(entries[i+1])
		if !height.Valid {
			continue
		}
		out = append(out, model.Block{Hash: hashFromDescriptor(descriptor), Height: height.Uint()})
	}
	return out
}

// hashFromDescriptor picks the first full hex hash out of a colon separated
// block descriptor. Pools that redact hashes yield "".
func hashFromDescriptor(descriptor string) string {
	for _, field := range strings.Split(descriptor, ":") {
		if len(field) != model.HashLength {
			continue
		}
		if _, err := hex.DecodeString(field); err == nil {
			return field
		}
	}
	return ""
}

// resolveBlocks backfills missing hashes when a resolver is configured and
// always returns blocks highest first.
func resolveBlocks(ctx context.Context, resolver BlockResolver, blocks []model.Block) []model.Block {
	if resolver == nil {
		return model.OrderBlocksDescending(blocks)
	}
	return resolver.Resolve(ctx, blocks)
}
