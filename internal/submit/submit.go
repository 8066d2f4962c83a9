// Package submit implements the Submitter: it accumulates enriched events,
// batches them by size, byte-length, or time, serializes them, and hands
// batches to a Transport with retrying backoff.
package submit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/determinatesystems/detsys-ids-client/internal/event"
	"github.com/determinatesystems/detsys-ids-client/internal/ids"
	"github.com/determinatesystems/detsys-ids-client/internal/transport"
)

const (
	maxBatchEvents = 100
	maxBatchBytes  = 900 * 1024
	flushInterval  = 30 * time.Second
	maxAttempts    = 5
)

// Submitter buffers EnrichedEvents coming from the Collator and uploads
// them in batches. Enqueue is safe to call from any goroutine; Run owns
// the batching/upload loop and must be started exactly once.
type Submitter struct {
	transport transport.Transport
	log       zerolog.Logger
	onError   func(error)

	eventCh chan event.EnrichedEvent
	flushCh chan chan struct{}
	doneCh  chan struct{}

	dropCount struct {
		mu    sync.Mutex
		count int
	}
}

// New builds a Submitter that uploads through t. onError, if non-nil, is
// invoked best-effort whenever a transport call fails.
func New(t transport.Transport, log zerolog.Logger, onError func(error)) *Submitter {
	return &Submitter{
		transport: t,
		log:       log,
		onError:   onError,
		eventCh:   make(chan event.EnrichedEvent, maxBatchEvents*4),
		flushCh:   make(chan chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Enqueue implements collate.Sink.
func (s *Submitter) Enqueue(e event.EnrichedEvent) {
	s.eventCh <- e
}

// Flush requests an immediate upload of any buffered events and blocks
// until it completes or ctx is done.
func (s *Submitter) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flushCh <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DropCount reports how many events were discarded after exhausting the
// retry budget or because their batch could not be serialized.
func (s *Submitter) DropCount() int {
	s.dropCount.mu.Lock()
	defer s.dropCount.mu.Unlock()
	return s.dropCount.count
}

// Run drives the batching loop until ctx is canceled, then uploads any
// remaining buffered events before returning.
func (s *Submitter) Run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var buf []event.EnrichedEvent
	var bufBytes int

	uploadAndReset := func() {
		if len(buf) == 0 {
			return
		}
		s.upload(ctx, buf)
		buf = nil
		bufBytes = 0
	}

	for {
		select {
		case e := <-s.eventCh:
			buf = append(buf, e)
			bufBytes += estimateSize(e)
			if len(buf) >= maxBatchEvents || bufBytes >= maxBatchBytes {
				uploadAndReset()
			}

		case <-ticker.C:
			uploadAndReset()

		case ack := <-s.flushCh:
			uploadAndReset()
			close(ack)

		case <-ctx.Done():
			s.drain(&buf, &bufBytes)
			ctx = context.WithoutCancel(ctx)
			uploadAndReset()
			return
		}
	}
}

// drain pulls any events already queued on eventCh without blocking, so a
// shutdown flush doesn't lose events that were enqueued moments before
// cancellation.
func (s *Submitter) drain(buf *[]event.EnrichedEvent, bufBytes *int) {
	for {
		select {
		case e := <-s.eventCh:
			*buf = append(*buf, e)
			*bufBytes += estimateSize(e)
		default:
			return
		}
	}
}

// Done reports when Run has returned.
func (s *Submitter) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Submitter) upload(ctx context.Context, events []event.EnrichedEvent) {
	wire := make([]any, len(events))
	for i, e := range events {
		wire[i] = e.ToWire()
	}
	body, err := json.Marshal(wire)
	if err != nil {
		s.log.Error().Err(err).Int("count", len(events)).Msg("failed to serialize batch, dropping")
		s.recordDrop(len(events))
		return
	}

	batchID := ids.NewV4()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	retrier := backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		uploadErr := s.transport.Submit(ctx, body)
		if uploadErr != nil {
			s.log.Warn().Err(uploadErr).Str("batch_id", batchID).Int("attempt", attempt).Msg("batch upload failed")
			s.notifyError(uploadErr)
		}
		return uploadErr
	}, retrier)

	if err != nil {
		s.log.Error().Err(err).Str("batch_id", batchID).Int("count", len(events)).Msg("batch upload exhausted retries, dropping")
		s.recordDrop(len(events))
	}
}

func (s *Submitter) notifyError(err error) {
	if s.onError == nil {
		return
	}
	s.onError(err)
}

func (s *Submitter) recordDrop(n int) {
	s.dropCount.mu.Lock()
	s.dropCount.count += n
	s.dropCount.mu.Unlock()
}

// estimateSize returns the marshaled size of an event's wire form for the
// byte-based batch trigger; it marshals each event once on arrival, apart
// from the marshal of the whole batch at upload.
func estimateSize(e event.EnrichedEvent) int {
	raw, err := json.Marshal(e.ToWire())
	if err != nil {
		return 0
	}
	return len(raw)
}
