package adapter

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"poolCollector/internal/model"
)

const minedBlocksHost = "cryptonote.social"

type otherStats struct {
	Height             Number          `json:"height"`
	HashRate           Number          `json:"hashRate"`
	Miners             Number          `json:"miners"`
	Fee                Number          `json:"fee"`
	Minimum            Number          `json:"minimum"`
	LastBlockFoundTime Number          `json:"lastBlockFoundTime"`
	Blocks             json.RawMessage `json:"blocks"`
}

// other handles pools exposing a single flat stats document at their api URL.
type other struct {
	base
	minedBlocksURL string
}

func (o *other) status(ctx context.Context, pool model.Pool, r *reading) {
	var stats otherStats
	if !o.getLenientJSON(ctx, pool, pool.API, legacyTimeout, &stats) {
		return
	}

	r.online = true
	r.height = stats.Height.Uint()
	r.hashrate = stats.HashRate.Uint()
	r.miners = stats.Miners.Uint()
	r.fee = stats.Fee.OrZero()
	r.lastBlock = math.Trunc(stats.LastBlockFoundTime.Float())
	if stats.Minimum.Valid {
		// minimum is reported in whole coins; payouts are stored in cents.
		r.minPayout = float64(decimal.NewFromFloat(stats.Minimum.Value).Shift(2).IntPart())
	}
}

func (o *other) blocks(ctx context.Context, pool model.Pool) []model.Block {
	if isMinedBlocksPool(pool.API) {
		var raw json.RawMessage
		payload := map[string]string{"Coin": "trtl"}
		if err := o.fetch.postJSON(ctx, o.minedBlocksURL, payload, legacyTimeout, &raw); err != nil {
			o.failed(pool, o.minedBlocksURL, err)
			return nil
		}
		return model.OrderBlocksDescending(decodeBlockList(raw))
	}

	var stats otherStats
	if !o.getLenientJSON(ctx, pool, pool.API, legacyTimeout, &stats) {
		return nil
	}
	return model.OrderBlocksDescending(decodeBlockList(stats.Blocks))
}

func isMinedBlocksPool(api string) bool {
	u, err := url.Parse(api)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == minedBlocksHost || strings.HasSuffix(host, "."+minedBlocksHost)
}

// decodeBlockList accepts a bare list of blocks or an object wrapping one.
func decodeBlockList(raw json.RawMessage) []model.Block {
	if len(raw) == 0 {
		return nil
	}

	var entries []blockEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return toBlocks(entries)
	}

	var wrapped struct {
		MinedBlocks []blockEntry `json:"MinedBlocks"`
		Blocks      []blockEntry `json:"blocks"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil
	}
	if len(wrapped.MinedBlocks) > 0 {
		return toBlocks(wrapped.MinedBlocks)
	}
	return toBlocks(wrapped.Blocks)
}
