package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePoolType(t *testing.T) {
	assert.Equal(t, TypeNodeJS, ParsePoolType(" Node.JS "))
	assert.True(t, ParsePoolType("SNOWFLAKE-2").Known())
	assert.False(t, ParsePoolType("stratum").Known())
}

func TestResetMetrics(t *testing.T) {
	pool := Pool{ID: "abc", Height: 10, Hashrate: 20, Miners: 3, Fee: 1.5, Donation: 0.1, MinPayout: 5, LastBlock: 99, Status: StatusOnline}
	pool.ResetMetrics()

	assert.Equal(t, Pool{ID: "abc"}, pool)
}

func TestCloneDoesNotShareBlocks(t *testing.T) {
	pool := Pool{Blocks: []Block{{Hash: "a", Height: 1}}}
	clone := pool.Clone()
	clone.Blocks[0].Height = 2

	assert.Equal(t, uint64(1), pool.Blocks[0].Height)
}

func TestNewBlocksSnapshots(t *testing.T) {
	snaps := NewBlocksSnapshots(100, []Pool{
		{ID: "a", Blocks: []Block{{Height: 5}}},
		{ID: "b"},
	})

	assert.Len(t, snaps, 2)
	assert.Equal(t, int64(100), snaps[0].Timestamp)
	assert.Equal(t, []Block{}, snaps[1].Blocks)
}
