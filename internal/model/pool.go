package model

import "strings"

// PoolType selects the adapter that understands a pool's API.
type PoolType string

const (
	TypeForknote   PoolType = "forknote"
	TypeNodeJS     PoolType = "node.js"
	TypeOther      PoolType = "other"
	TypeSolo       PoolType = "solo"
	TypeSnowflake1 PoolType = "snowflake-1"
	TypeSnowflake2 PoolType = "snowflake-2"
)

// PoolTypes lists every supported pool type.
var PoolTypes = []PoolType{
	TypeForknote,
	TypeNodeJS,
	TypeOther,
	TypeSolo,
	TypeSnowflake1,
	TypeSnowflake2,
}

// ParsePoolType lowercases raw. The result may be an unsupported type; see Known.
func ParsePoolType(raw string) PoolType {
	return PoolType(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether t is one of PoolTypes.
func (t PoolType) Known() bool {
	for _, known := range PoolTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	StatusUnknown = 0
	StatusOnline  = 1
)

// Block is one discovered block. Hash is empty when the source did not report it.
type Block struct {
	Hash   string `json:"hash,omitempty"`
	Height uint64 `json:"height"`
}

// Pool is one tracked mining pool with its latest normalized metrics.
type Pool struct {
	ID                        string   `json:"id"`
	Name                      string   `json:"name"`
	URL                       string   `json:"url,omitempty"`
	API                       string   `json:"api"`
	Type                      PoolType `json:"type"`
	MiningAddress             string   `json:"miningAddress"`
	MergedMining              int      `json:"mergedMining"`
	MergedMiningIsParentChain int      `json:"mergedMiningIsParentChain"`

	Height    uint64  `json:"height"`
	Hashrate  uint64  `json:"hashrate"`
	Miners    uint64  `json:"miners"`
	Fee       float64 `json:"fee"`
	Donation  float64 `json:"donation"`
	MinPayout float64 `json:"minPayout"`
	LastBlock int64   `json:"lastBlock"`
	Status    int     `json:"status"`

	Blocks []Block `json:"blocks,omitempty"`
}

// ResetMetrics zeroes every polled field.
func (p *Pool) ResetMetrics() {
	p.Height = 0
	p.Hashrate = 0
	p.Miners = 0
	p.Fee = 0
	p.Donation = 0
	p.MinPayout = 0
	p.LastBlock = 0
	p.Status = StatusUnknown
}

// Clone returns a copy that shares no slices with p.
func (p Pool) Clone() Pool {
	if p.Blocks != nil {
		blocks := make([]Block, len(p.Blocks))
		copy(blocks, p.Blocks)
		p.Blocks = blocks
	}
	return p
}

// BoolToFlag stores a boolean as 0/1.
func BoolToFlag(v bool) int {
	if v {
		return 1
	}
	return 0
}
