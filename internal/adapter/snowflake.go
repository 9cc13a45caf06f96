package adapter

import (
	"context"
	"encoding/json"

	"poolCollector/internal/model"
)

// snowflakeChainID keys the TurtleCoin entries in the snowflake APIs.
const snowflakeChainID = "11898"

type snowflakeNetwork struct {
	Height Number `json:"height"`
}

type snowflakePoolStats struct {
	PoolStatistics *struct {
		PortHash       map[string]Number `json:"portHash"`
		PortMinerCount map[string]Number `json:"portMinerCount"`
	} `json:"pool_statistics"`
}

type snowflakeAltBlock struct {
	Hash   string `json:"hash"`
	Height Number `json:"height"`
	Ts     Number `json:"ts"`
}

// snowflake handles snowflake pools. Deployments differ only in the prefix
// put in front of every API path.
type snowflake struct {
	base
	prefix string
}

func newSnowflake(b base, prefix string) *snowflake {
	return &snowflake{base: b, prefix: prefix}
}

func (s *snowflake) url(pool model.Pool, path string) string {
	return endpoint(pool.API, s.prefix+path)
}

// status commits nothing unless every endpoint answered.
func (s *snowflake) status(ctx context.Context, pool model.Pool, r *reading) {
	var networks map[string]json.RawMessage
	if !s.getJSON(ctx, pool, s.url(pool, "network/stats"), modernTimeout, &networks) {
		return
	}
	var network snowflakeNetwork
	if raw, ok := networks[snowflakeChainID]; ok {
		if err := json.Unmarshal(raw, &network); err != nil {
			s.failed(pool, s.url(pool, "network/stats"), err)
			return
		}
	}

	var stats snowflakePoolStats
	if !s.getJSON(ctx, pool, s.url(pool, "pool/stats"), modernTimeout, &stats) {
		return
	}

	var latest []snowflakeAltBlock
	if !s.getJSON(ctx, pool, s.url(pool, "pool/coin_altblocks/"+snowflakeChainID+"?page=0&limit=1"), modernTimeout, &latest) {
		return
	}

	r.online = true
	r.height = network.Height.Uint()
	if ps := stats.PoolStatistics; ps != nil {
		r.hashrate = ps.PortHash[snowflakeChainID].Uint()
		r.miners = ps.PortMinerCount[snowflakeChainID].Uint()
	}
	if len(latest) > 0 && latest[0].Ts.Valid {
		r.lastBlock = millisToSeconds(latest[0].Ts.Value)
	}
}

func (s *snowflake) blocks(ctx context.Context, pool model.Pool) []model.Block {
	var entries []snowflakeAltBlock
	if !s.getJSON(ctx, pool, s.url(pool, "pool/coin_altblocks/"+snowflakeChainID+"?page=0&limit=200"), modernTimeout, &entries) {
		return nil
	}

	out := make([]model.Block, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Block{Hash: e.Hash, Height: e.Height.Uint()})
	}
	return model.OrderBlocksDescending(out)
}
