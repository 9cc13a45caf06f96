package adapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 10 << 20

// NewHTTPClient returns the client used for upstream pool APIs. Many pools
// serve self-signed certificates, so verification can be turned off.
func NewHTTPClient(insecureTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecureTLS}
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{Transport: transport}
}

type fetcher struct {
	client *http.Client
}

// getJSON issues a GET bounded by timeout and decodes the body into out.
func (f *fetcher) getJSON(ctx context.Context, url string, timeout time.Duration, out interface{}) error {
	body, err := f.do(ctx, http.MethodGet, url, nil, timeout)
	if err != nil {
		return err
	}
	return decodeBody(url, body, out)
}

// postJSON issues a POST of payload bounded by timeout and decodes the body into out.
func (f *fetcher) postJSON(ctx context.Context, url string, payload interface{}, timeout time.Duration, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := f.do(ctx, http.MethodPost, url, data, timeout)
	if err != nil {
		return err
	}
	return decodeBody(url, body, out)
}

func (f *fetcher) do(ctx context.Context, method, url string, payload []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d from %s", resp.StatusCode, url)
	}
	return body, nil
}

func decodeBody(url string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// endpoint joins a pool API base and a relative path.
func endpoint(api, path string) string {
	if api != "" && !strings.HasSuffix(api, "/") {
		api += "/"
	}
	return api + path
}
