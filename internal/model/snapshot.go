package model

// PollingSnapshot is one status tick worth of pool records.
type PollingSnapshot struct {
	Timestamp int64  `json:"timestamp"`
	Pools     []Pool `json:"pools"`
}

// BlocksSnapshot is the recent block list reported for one pool in one block tick.
type BlocksSnapshot struct {
	Timestamp int64   `json:"timestamp"`
	ID        string  `json:"id"`
	Blocks    []Block `json:"blocks"`
}

// NewBlocksSnapshots converts polled pools into per-pool block records.
func NewBlocksSnapshots(timestamp int64, pools []Pool) []BlocksSnapshot {
	out := make([]BlocksSnapshot, 0, len(pools))
	for _, pool := range pools {
		blocks := pool.Blocks
		if blocks == nil {
			blocks = []Block{}
		}
		out = append(out, BlocksSnapshot{
			Timestamp: timestamp,
			ID:        pool.ID,
			Blocks:    blocks,
		})
	}
	return out
}
