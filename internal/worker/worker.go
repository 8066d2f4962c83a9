// Package worker hosts the background task that owns the SystemSnapshotter,
// ConfigurationProxy, Collator, Submitter, and Transport, and orchestrates
// their startup and shutdown.
package worker

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/determinatesystems/detsys-ids-client/internal/collate"
	"github.com/determinatesystems/detsys-ids-client/internal/config"
	"github.com/determinatesystems/detsys-ids-client/internal/correlation"
	"github.com/determinatesystems/detsys-ids-client/internal/event"
	"github.com/determinatesystems/detsys-ids-client/internal/identity"
	"github.com/determinatesystems/detsys-ids-client/internal/snapshot"
	"github.com/determinatesystems/detsys-ids-client/internal/storage"
	"github.com/determinatesystems/detsys-ids-client/internal/submit"
	"github.com/determinatesystems/detsys-ids-client/internal/transport"
)

// Options configures a Worker at construction. Endpoint and Storage mirror
// what a Builder exposes publicly; zero values select the documented
// defaults.
type Options struct {
	LibraryName     string
	LibraryVersion  string
	Endpoint        string
	Storage         storage.Storage
	DefaultDistinct string
	Logger          zerolog.Logger

	// OnTransportError, if non-nil, is invoked best-effort with every
	// transport failure observed during batch upload.
	OnTransportError func(error)
}

// Worker is the background task behind a Recorder. One Worker serves every
// clone of the Recorder that created it.
type Worker struct {
	log       zerolog.Logger
	storage   storage.Storage
	snapshot  *snapshot.Snapshotter
	proxy     *config.Proxy
	collator  *collate.Collator
	submitter *submit.Submitter
	transport transport.Transport

	eventCh      chan event.Event
	droppedSince atomic.Int64
	droppedTotal atomic.Int64

	// loop and submitter.Run are driven by independent contexts so
	// Shutdown can enforce a strict ordering: the loop must
	// finish draining into the Collator (and the Collator's sink writes
	// must have landed in the Submitter's channel) before the Submitter
	// is asked to force-flush and torn down. A single shared context
	// would let both goroutines race to observe cancellation.
	loopCancel   context.CancelFunc
	loopDone     chan struct{}
	submitCancel context.CancelFunc

	doneCh chan struct{}
}

const (
	eventChannelCapacity   = 1024
	initialCheckinDeadline = 10 * time.Second
)

// Start performs the full startup sequence and begins running the
// worker's goroutines. The returned Worker is ready to accept
// events immediately; if the initial check-in fails it keeps retrying in
// the background.
func Start(ctx context.Context, opts Options) *Worker {
	log := opts.Logger

	corr := correlation.Load(log)

	store := opts.Storage
	if store == nil {
		store = storage.NoOp{}
	}

	id := identity.Resolve(store, corr, identity.WithCallerDistinctID(opts.DefaultDistinct))

	snapper := snapshot.New(snapshot.DefaultConfig())
	proxy := config.New()

	disabled := os.Getenv("DETSYS_IDS_TELEMETRY") == "disabled"

	tr := transport.Select(opts.Endpoint)
	sub := submit.New(tr, log, opts.OnTransportError)

	lib := event.Library{Name: opts.LibraryName, Version: opts.LibraryVersion}
	collator := collate.New(id, corr, snapper, proxy, lib, sub, log, disabled)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	submitCtx, submitCancel := context.WithCancel(context.Background())

	w := &Worker{
		log:          log,
		storage:      store,
		snapshot:     snapper,
		proxy:        proxy,
		collator:     collator,
		submitter:    sub,
		transport:    tr,
		eventCh:      make(chan event.Event, eventChannelCapacity),
		loopCancel:   loopCancel,
		loopDone:     make(chan struct{}),
		submitCancel: submitCancel,
		doneCh:       make(chan struct{}),
	}

	w.initialCheckin(ctx)

	go sub.Run(submitCtx)
	go w.loop(loopCtx)

	return w
}

// Enqueue submits a base Event for enrichment. It never blocks on
// backpressure: if the bounded channel is full, the oldest pending event
// is dropped to make room and a running drop counter is incremented.
// A nil Timestamp is stamped with the current wall time here, at
// submission. Once the event loop has stopped during Shutdown, Enqueue
// discards e.
func (w *Worker) Enqueue(e event.Event) {
	select {
	case <-w.loopDone:
		return
	default:
	}
	if e.Timestamp == nil {
		now := time.Now()
		e.Timestamp = &now
	}
	for {
		select {
		case w.eventCh <- e:
			return
		default:
		}

		select {
		case <-w.eventCh:
			w.droppedSince.Add(1)
			w.droppedTotal.Add(1)
		default:
		}
	}
}

// Feature exposes the ConfigurationProxy to the Recorder.
func (w *Worker) Feature(name string) (config.FeatureFlag, bool) {
	return w.proxy.Feature(name)
}

// Flush forces a Submitter upload and waits for completion or ctx.
func (w *Worker) Flush(ctx context.Context) error {
	return w.submitter.Flush(ctx)
}

// DropCount reports the running total of events dropped by the
// Recorder-to-Collator channel's drop-oldest backpressure, since process
// start. It is cumulative, unlike the transient per-event
// $library_dropped_events count the Collator attaches to the next event.
func (w *Worker) DropCount() int {
	return int(w.droppedTotal.Load())
}

// SubmitDropCount reports events dropped by the Submitter after exhausting
// its upload retry budget or failing to serialize a batch, a distinct
// failure mode from channel backpressure.
func (w *Worker) SubmitDropCount() int {
	return w.submitter.DropCount()
}

// Shutdown runs an ordered sequence: (1) stop accepting new
// events, (2) drain pending enrichments in the Collator, (3) force a
// final Submitter flush, (4) await Submitter completion or the deadline,
// (5) flush Storage, (6) tear down Transport. If the deadline elapses
// mid-sequence, remaining work is abandoned.
func (w *Worker) Shutdown(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	ctx, cancelDeadline := context.WithDeadline(context.Background(), deadline)
	defer cancelDeadline()

	w.loopCancel() // (1) stop accepting

	select {
	case <-w.loopDone: // (2) collator drain has landed in the submitter's channel
	case <-ctx.Done():
		w.log.Warn().Msg("shutdown deadline elapsed waiting for collator drain, abandoning remaining work")
		w.submitCancel()
		close(w.doneCh)
		return
	}

	if err := w.submitter.Flush(ctx); err != nil { // (3) force final flush
		w.log.Warn().Msg("shutdown deadline elapsed waiting for final flush")
	}

	w.submitCancel()
	select {
	case <-w.submitter.Done(): // (4) await submitter completion
	case <-ctx.Done():
		w.log.Warn().Msg("shutdown deadline elapsed waiting for submitter, abandoning remaining work")
	}

	if err := w.storage.Flush(); err != nil { // (5)
		w.log.Warn().Err(err).Msg("failed to flush storage on shutdown")
	}

	if err := w.transport.Close(); err != nil { // (6)
		w.log.Warn().Err(err).Msg("failed to close transport on shutdown")
	}

	close(w.doneCh)
}

// Done reports when Shutdown has completed.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.loopDone)
	for {
		select {
		case e := <-w.eventCh:
			w.collator.Collate(ctx, e, int(w.droppedSince.Swap(0)))
		case <-ctx.Done():
			w.drainRemaining(ctx)
			return
		}
	}
}

// drainRemaining collates whatever was already queued before shutdown was
// requested, so events enqueued moments before cancellation aren't lost.
func (w *Worker) drainRemaining(ctx context.Context) {
	for {
		select {
		case e := <-w.eventCh:
			w.collator.Collate(ctx, e, int(w.droppedSince.Swap(0)))
		default:
			return
		}
	}
}

// initialCheckin performs the startup check-in. On failure it is retried
// in the background with exponential backoff while the worker continues
// accepting events.
func (w *Worker) initialCheckin(ctx context.Context) {
	attemptCtx, cancel := context.WithTimeout(ctx, initialCheckinDeadline)
	defer cancel()

	resp, err := w.transport.Checkin(attemptCtx)
	if err == nil {
		w.proxy.Update(*resp)
		return
	}

	w.log.Warn().Err(err).Msg("initial check-in failed, retrying in background")
	go w.retryCheckinInBackground()
}

func (w *Worker) retryCheckinInBackground() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 10 * time.Minute

	_ = backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), initialCheckinDeadline)
		defer cancel()

		resp, err := w.transport.Checkin(ctx)
		if err != nil {
			w.log.Warn().Err(err).Msg("background check-in retry failed")
			return err
		}
		w.proxy.Update(*resp)
		return nil
	}, bo)
}
