package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"poolCollector/internal/model"
)

// newUpstream serves canned bodies keyed by request URI; unknown URIs get 404.
func newUpstream(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testPool(srv *httptest.Server, poolType model.PoolType) model.Pool {
	return model.Pool{
		ID:   "pool-" + string(poolType),
		Name: "test",
		API:  srv.URL + "/",
		Type: poolType,
	}
}

type recordingResolver struct {
	got []model.Block
}

func (r *recordingResolver) Resolve(_ context.Context, blocks []model.Block) []model.Block {
	r.got = append([]model.Block(nil), blocks...)
	return model.OrderBlocksDescending(blocks)
}
