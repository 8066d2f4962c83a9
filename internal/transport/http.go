package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
)

// HTTP is the fixed-base-URL transport variant.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP builds an HTTP transport against a fixed base URL.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTP) Checkin(ctx context.Context) (*config.CheckinResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/check-in", nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status from check-in")}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	var out config.CheckinResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}
	return &out, nil
}

// Submit receives the serialized-but-uncompressed JSON array of
// EnrichedEvents. HTTP is the only variant for which "over the wire" means
// anything, so zstd compression happens here rather than in the Submitter.
func (h *HTTP) Submit(ctx context.Context, body []byte) error {
	compressed, err := zstdCompress(body)
	if err != nil {
		return &Error{Kind: KindParse, Err: fmt.Errorf("compressing batch: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/events", bytes.NewReader(compressed))
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "zstd")

	resp, err := h.client.Do(req)
	if err != nil {
		return classifyRequestError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status from submit")}
	}
	return nil
}

func (h *HTTP) Close() error { return nil }

func zstdCompress(body []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(body, nil), nil
}

func classifyRequestError(err error) error {
	if strings.Contains(err.Error(), "context deadline exceeded") || strings.Contains(err.Error(), "context canceled") {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
