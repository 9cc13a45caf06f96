package model

import "sort"

// MaxRecentBlocks caps the blocks kept per pool in a BlocksSnapshot.
const MaxRecentBlocks = 30

// HashLength is the hex length of a complete block hash.
const HashLength = 64

// OrderBlocksDescending stable-sorts blocks ascending by height and then
// reverses them in place, so equal heights end up in reverse input order.
func OrderBlocksDescending(blocks []Block) []Block {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Height < blocks[j].Height
	})
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks
}

// CapBlocks keeps the first n entries.
func CapBlocks(blocks []Block, n int) []Block {
	if n >= 0 && len(blocks) > n {
		return blocks[:n]
	}
	return blocks
}
