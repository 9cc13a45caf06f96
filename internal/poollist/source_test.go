package poollist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolCollector/internal/model"
	"poolCollector/internal/poolid"
)

func serveList(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchListNormalizes(t *testing.T) {
	srv := serveList(t, http.StatusOK, `{"pools": [
		{"name": "b", "api": "https://b/api/", "type": "Node.JS", "miningAddress": "TRTLv1abc", "mergedMining": true, "mergedMiningIsParentChain": false, "height": 99},
		{"name": "a", "api": "https://a/", "type": "forknote", "miningAddress": "TRTLv2def"}
	]}`)

	pools, err := NewSource(srv.URL, nil, nil).FetchList(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)

	first := pools[0]
	assert.Equal(t, "b", first.Name)
	assert.Equal(t, model.TypeNodeJS, first.Type)
	assert.Equal(t, 1, first.MergedMining)
	assert.Equal(t, 0, first.MergedMiningIsParentChain)
	assert.Equal(t, poolid.Generate("TRTLv1abc", "true", "false"), first.ID)
	assert.Equal(t, uint64(0), first.Height)
	assert.Equal(t, model.StatusUnknown, first.Status)

	second := pools[1]
	assert.Equal(t, "a", second.Name)
	assert.Equal(t, 0, second.MergedMining)
	assert.Equal(t, poolid.Generate("TRTLv2def", "", ""), second.ID)
}

func TestFetchListStableIDs(t *testing.T) {
	srv := serveList(t, http.StatusOK, `{"pools": [{"name": "x", "type": "other", "miningAddress": "m", "mergedMining": 1, "mergedMiningIsParentChain": 0}]}`)
	source := NewSource(srv.URL, nil, nil)

	first, err := source.FetchList(context.Background())
	require.NoError(t, err)
	second, err := source.FetchList(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, poolid.Generate("m", "1", "0"), first[0].ID)
}

func TestFetchListUnavailable(t *testing.T) {
	cases := map[string]*httptest.Server{
		"missing pools": serveList(t, http.StatusOK, `{"list": []}`),
		"bad json":      serveList(t, http.StatusOK, `<html>`),
		"server error":  serveList(t, http.StatusBadGateway, `{"pools": []}`),
	}
	for name, srv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSource(srv.URL, nil, nil).FetchList(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSourceUnavailable))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewSource(url, nil, nil).FetchList(context.Background())
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})
}

func TestFetchListEmptyIsValid(t *testing.T) {
	srv := serveList(t, http.StatusOK, `{"pools": []}`)

	pools, err := NewSource(srv.URL, nil, nil).FetchList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pools)
}

func TestTruthy(t *testing.T) {
	for raw, want := range map[string]bool{
		``: false, `null`: false, `false`: false, `0`: false, `""`: false,
		`true`: true, `1`: true, `"yes"`: true, `2.5`: true,
	} {
		assert.Equal(t, want, truthy([]byte(raw)), raw)
	}
}
