// Package transport implements the three Transport variants the Worker can
// use to reach the ingestion service: HTTP, SRV-resolved HTTP, and File.
package transport

import (
	"context"
	"fmt"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
)

// Transport is the common contract every variant implements: checkin()
// fetches the latest CheckinResponse, and submit(bytes) delivers one
// already-serialized batch.
type Transport interface {
	// Checkin performs the one-shot configuration/feature-flag fetch.
	Checkin(ctx context.Context) (*config.CheckinResponse, error)

	// Submit uploads one already-serialized batch (a JSON array of
	// EnrichedEvents). Wire-level compression, if any, is each variant's
	// own concern: HTTP zstd-compresses before sending, File writes the
	// bytes as given.
	Submit(ctx context.Context, body []byte) error

	// Close releases any resources (open files, cached DNS answers).
	Close() error
}

// Kind classifies the failure mode of a transport operation so callers
// (the SRV variant's fallback logic, the Submitter's retry logic) can
// decide whether to retry.
type Kind int

const (
	// KindNetwork covers connection refused, DNS failure, and similar.
	KindNetwork Kind = iota
	// KindHTTPStatus covers non-2xx HTTP responses.
	KindHTTPStatus
	// KindParse covers malformed response bodies.
	KindParse
	// KindTimeout covers context deadline/cancellation during the call.
	KindTimeout
)

// Error wraps a transport failure with enough detail to decide
// retryability.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the operation that produced this error should
// be retried against a different endpoint. Non-retryable errors (4xx) are
// surfaced immediately.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}
