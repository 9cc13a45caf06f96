package chain

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ybbus/jsonrpc/v3"
)

const defaultRPCTimeout = 10 * time.Second

// BlockHeader is the subset of the node's block header used by the collector.
type BlockHeader struct {
	Hash         string `json:"hash"`
	Height       uint64 `json:"height"`
	Timestamp    uint64 `json:"timestamp"`
	Difficulty   uint64 `json:"difficulty"`
	Reward       uint64 `json:"reward"`
	OrphanStatus bool   `json:"orphan_status"`
}

type blockHeaderResponse struct {
	BlockHeader BlockHeader `json:"block_header"`
	Status      string      `json:"status"`
}

// heightParams is sent as the params object, which is what the daemon expects.
type heightParams struct {
	Height uint64 `json:"height"`
}

// Client wraps the node JSON-RPC endpoint and caches resolved headers.
type Client struct {
	rpcClient jsonrpc.RPCClient

	mu          sync.RWMutex
	headerCache map[uint64]BlockHeader
}

// NewClient creates a client for the node JSON-RPC endpoint (usually
// http://host:port/json_rpc). A nil httpClient uses a 10s timeout.
func NewClient(rpcURL string, httpClient *http.Client) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRPCTimeout}
	}
	rpcClient := jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
		HTTPClient:         httpClient,
		AllowUnknownFields: true,
	})
	return &Client{
		rpcClient:   rpcClient,
		headerCache: make(map[uint64]BlockHeader),
	}, nil
}

// BlockHeaderByHeight returns the header of the main-chain block at height.
// Headers carrying a full hash are cached; block hashes at a given height are
// only re-queried when the node returned a placeholder.
func (c *Client) BlockHeaderByHeight(ctx context.Context, height uint64) (BlockHeader, error) {
	c.mu.RLock()
	header, ok := c.headerCache[height]
	c.mu.RUnlock()
	if ok {
		return header, nil
	}

	var resp blockHeaderResponse
	if err := c.rpcClient.CallFor(ctx, &resp, "getblockheaderbyheight", &heightParams{Height: height}); err != nil {
		return BlockHeader{}, fmt.Errorf("getblockheaderbyheight %d: %w", height, err)
	}
	if resp.Status != "" && resp.Status != "OK" {
		return BlockHeader{}, fmt.Errorf("getblockheaderbyheight %d: status %s", height, resp.Status)
	}

	header = resp.BlockHeader
	if isCompleteHash(header.Hash) {
		c.mu.Lock()
		c.headerCache[height] = header
		c.mu.Unlock()
	}
	return header, nil
}
