package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"poolCollector/internal/model"
)

type fakeSource struct {
	hashes map[uint64]string
	fail   map[uint64]bool
}

func (f *fakeSource) BlockHeaderByHeight(_ context.Context, height uint64) (BlockHeader, error) {
	if f.fail[height] {
		return BlockHeader{}, errors.New("node unavailable")
	}
	return BlockHeader{Hash: f.hashes[height], Height: height}, nil
}

func hashOf(c string) string {
	return strings.Repeat(c, model.HashLength)
}

func TestResolverBackfillsAndOrders(t *testing.T) {
	source := &fakeSource{hashes: map[uint64]string{10: hashOf("a")}}
	r := NewResolver(source, nil, nil)

	got := r.Resolve(context.Background(), []model.Block{
		{Height: 5, Hash: hashOf("5")},
		{Height: 10},
		{Height: 7, Hash: hashOf("7")},
	})

	assert.Equal(t, []model.Block{
		{Height: 10, Hash: hashOf("a")},
		{Height: 7, Hash: hashOf("7")},
		{Height: 5, Hash: hashOf("5")},
	}, got)
}

func TestResolverDropsSentinelHash(t *testing.T) {
	source := &fakeSource{hashes: map[uint64]string{8: "0", 9: hashOf("9")}}
	r := NewResolver(source, nil, nil)

	got := r.Resolve(context.Background(), []model.Block{{Height: 8}, {Height: 9, Hash: "short"}})

	assert.Equal(t, []model.Block{{Height: 9, Hash: hashOf("9")}}, got)
}

func TestResolverDropsFailedLookup(t *testing.T) {
	source := &fakeSource{fail: map[uint64]bool{3: true}, hashes: map[uint64]string{4: hashOf("4")}}
	r := NewResolver(source, nil, nil)

	got := r.Resolve(context.Background(), []model.Block{{Height: 3}, {Height: 4}})

	assert.Equal(t, []model.Block{{Height: 4, Hash: hashOf("4")}}, got)
}

func TestResolverWithoutSource(t *testing.T) {
	r := NewResolver(nil, nil, nil)

	got := r.Resolve(context.Background(), []model.Block{{Height: 1}, {Height: 2, Hash: hashOf("2")}})

	assert.Equal(t, []model.Block{{Height: 2, Hash: hashOf("2")}}, got)
}
