package adapter

import (
	"context"

	"poolCollector/internal/model"
)

// soloStats maps one to one onto the pool schema.
type soloStats struct {
	Height    Number `json:"height"`
	Hashrate  Number `json:"hashrate"`
	Miners    Number `json:"miners"`
	Fee       Number `json:"fee"`
	MinPayout Number `json:"minPayout"`
	Donation  Number `json:"donation"`
	LastBlock Number `json:"lastBlock"`
}

type soloBlockHeader struct {
	Height Number `json:"height"`
}

// solo handles solo mining pools. Their block listing carries only hashes,
// so heights come from an external block header service.
type solo struct {
	base
	blockAPI string
}

func (s *solo) status(ctx context.Context, pool model.Pool, r *reading) {
	var stats soloStats
	if !s.getLenientJSON(ctx, pool, endpoint(pool.API, "stats"), modernTimeout, &stats) {
		return
	}

	r.online = true
	r.height = stats.Height.Uint()
	r.hashrate = stats.Hashrate.Uint()
	r.miners = stats.Miners.Uint()
	r.fee = stats.Fee.OrZero()
	r.minPayout = stats.MinPayout.OrZero()
	r.donation = stats.Donation.OrZero()
	r.lastBlock = stats.LastBlock.Float()
}

func (s *solo) blocks(ctx context.Context, pool model.Pool) []model.Block {
	var entries []blockEntry
	if !s.getJSON(ctx, pool, endpoint(pool.API, "stats/blocks"), modernTimeout, &entries) {
		return nil
	}

	out := make([]model.Block, 0, len(entries))
	for _, entry := range entries {
		if entry.Hash == "" {
			continue
		}
		var header soloBlockHeader
		// A failed lookup ends the walk; blocks resolved so far are kept.
		if !s.getJSON(ctx, pool, endpoint(s.blockAPI, entry.Hash), modernTimeout, &header) {
			break
		}
		out = append(out, model.Block{Hash: entry.Hash, Height: header.Height.Uint()})
	}
	return model.OrderBlocksDescending(out)
}
