package adapter

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"poolCollector/internal/model"
)

// nodeResponse covers every body shape the node.js pool endpoints return.
// Only the sub-objects a given endpoint actually sent are non-nil.
type nodeResponse struct {
	Height          Number              `json:"height"`
	PoolStatistics  *nodePoolStatistics `json:"pool_statistics"`
	MinWalletPayout Number              `json:"min_wallet_payout"`
	PPLNSFee        Number              `json:"pplns_fee"`
	DevDonation     Number              `json:"dev_donation"`
	PoolDevDonation Number              `json:"pool_dev_donation"`
	Config          *nodeConfig         `json:"config"`
	BlockTemplate   *nodeBlockTemplate  `json:"block_template"`
}

type nodePoolStatistics struct {
	nodeCounters
	Collective *nodeCounters `json:"collective"`
	Solo       *nodeCounters `json:"solo"`
}

type nodeCounters struct {
	Hashrate           Number          `json:"hashrate"`
	HashRate           Number          `json:"hashRate"`
	Miners             Number          `json:"miners"`
	LastFoundBlock     *nodeFoundBlock `json:"lastFoundBlock"`
	LastBlockFoundTime Number          `json:"lastBlockFoundTime"`
}

type nodeFoundBlock struct {
	Ts Number `json:"ts"`
}

type nodeConfig struct {
	PPLNSFee            Number `json:"pplns_fee"`
	Fee                 Number `json:"fee"`
	MinWalletPayout     Number `json:"min_wallet_payout"`
	MinPaymentThreshold Number `json:"minPaymentThreshold"`
	DevDonation         Number `json:"dev_donation"`
	PoolDevDonation     Number `json:"pool_dev_donation"`
}

type nodeBlockTemplate struct {
	Height Number `json:"height"`
}

func (c nodeCounters) hashrate() Number {
	return firstValid(c.Hashrate, c.HashRate)
}

// lastBlock returns the last found block time in seconds, NaN when unknown.
func (c nodeCounters) lastBlock() float64 {
	if c.LastFoundBlock != nil && c.LastFoundBlock.Ts.Valid {
		return unixSeconds(c.LastFoundBlock.Ts.Value)
	}
	return unixSeconds(c.LastBlockFoundTime.Float())
}

// nodeShape is one recognizable response layout.
type nodeShape struct {
	name  string
	match func(resp *nodeResponse) bool
	apply func(resp *nodeResponse, r *reading)
}

// nodeShapes is evaluated in order against every response; the first match
// is applied. Different responses of the same poll may match different
// shapes and all of them contribute.
var nodeShapes = []nodeShape{
	{
		name:  "network",
		match: func(resp *nodeResponse) bool { return resp.Height.Valid },
		apply: func(resp *nodeResponse, r *reading) {
			r.height = resp.Height.Uint()
			r.online = true
		},
	},
	{
		name:  "pool_statistics",
		match: func(resp *nodeResponse) bool { return resp.PoolStatistics != nil },
		apply: applyNodePoolStatistics,
	},
	{
		name:  "legacy_config",
		match: func(resp *nodeResponse) bool { return resp.MinWalletPayout.Valid },
		apply: func(resp *nodeResponse, r *reading) {
			r.fee = resp.PPLNSFee.OrZero()
			r.minPayout = resp.MinWalletPayout.OrZero()
			r.donation = resp.DevDonation.OrZero() + resp.PoolDevDonation.OrZero()
		},
	},
	{
		name:  "config",
		match: func(resp *nodeResponse) bool { return resp.Config != nil },
		apply: func(resp *nodeResponse, r *reading) {
			c := resp.Config
			r.fee = firstValid(c.PPLNSFee, c.Fee).OrZero()
			r.minPayout = firstValid(c.MinWalletPayout, c.MinPaymentThreshold).OrZero()
			r.donation = c.DevDonation.OrZero() + c.PoolDevDonation.OrZero()
		},
	},
	{
		name:  "block_template",
		match: func(resp *nodeResponse) bool { return resp.BlockTemplate != nil && resp.BlockTemplate.Height.Valid },
		apply: func(resp *nodeResponse, r *reading) {
			r.height = resp.BlockTemplate.Height.Uint()
			r.online = true
		},
	},
}

func applyNodePoolStatistics(resp *nodeResponse, r *reading) {
	stats := resp.PoolStatistics
	r.online = true

	switch {
	case stats.Collective != nil:
		r.hashrate = stats.Collective.hashrate().Uint()
		r.miners = stats.Collective.Miners.Uint()
		r.lastBlock = stats.Collective.lastBlock()
	case stats.hashrate().Valid:
		r.hashrate = stats.hashrate().Uint()
		r.miners = stats.Miners.Uint()
		r.lastBlock = stats.lastBlock()
	}

	if solo := stats.Solo; solo != nil {
		r.hashrate += solo.hashrate().Uint()
		r.miners += solo.Miners.Uint()
		if soloLast := solo.lastBlock(); !math.IsNaN(soloLast) && (math.IsNaN(r.lastBlock) || soloLast > r.lastBlock) {
			r.lastBlock = soloLast
		}
	}
}

// nodeJS handles nodejs-pool style APIs.
type nodeJS struct {
	base
	resolver BlockResolver
}

var nodeStatusPaths = []string{"pool/stats", "network/stats", "config"}

func (n *nodeJS) status(ctx context.Context, pool model.Pool, r *reading) {
	responses := make([]*nodeResponse, len(nodeStatusPaths))
	var g errgroup.Group
	for i, path := range nodeStatusPaths {
		i, url := i, endpoint(pool.API, path)
		g.Go(func() error {
			var resp nodeResponse
			if n.getLenientJSON(ctx, pool, url, legacyTimeout, &resp) {
				responses[i] = &resp
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, resp := range responses {
		if resp == nil {
			continue
		}
		applyNodeShapes(resp, r)
	}
}

func applyNodeShapes(resp *nodeResponse, r *reading) {
	for _, shape := range nodeShapes {
		if shape.match(resp) {
			shape.apply(resp, r)
			return
		}
	}
}

func (n *nodeJS) blocks(ctx context.Context, pool model.Pool) []model.Block {
	var entries []blockEntry
	if !n.getJSON(ctx, pool, endpoint(pool.API, "pool/blocks?page=0&limit=30"), legacyTimeout, &entries) {
		return nil
	}
	return resolveBlocks(ctx, n.resolver, toBlocks(entries))
}
