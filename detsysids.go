// Package detsysids is a client library for Determinate Systems' ingestion
// and feature-flag service. It lets an embedding program fetch
// configuration and feature flags at startup and emit a stream of
// telemetry events enriched with host and run context, batched,
// compressed, and delivered over a transport that tolerates endpoint
// rotation and transient failure.
package detsysids

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
	"github.com/determinatesystems/detsys-ids-client/internal/event"
	"github.com/determinatesystems/detsys-ids-client/internal/storage"
	"github.com/determinatesystems/detsys-ids-client/internal/worker"
)

// ConfigError reports an invalid Builder configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("detsysids: %s: %s", e.Field, e.Message)
}

// TimeoutError is returned by Flush and Shutdown when their deadline
// elapses before the underlying operation completes.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("detsysids: %s timed out", e.Op)
}

// FeatureFlag is the last-known value of a named feature flag.
type FeatureFlag = config.FeatureFlag

// Builder configures and produces a Recorder.
type Builder struct {
	name    string
	version string

	endpoint        string
	store           storage.Storage
	defaultDistinct string
	diagnosticHook  func(error)
	logger          zerolog.Logger
}

// NewBuilder starts a Builder for a library identifying itself as
// name/version in every emitted event's $lib/$lib_version properties.
func NewBuilder(name, version string) *Builder {
	return &Builder{
		name:    name,
		version: version,
		logger:  zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger(),
	}
}

// WithEndpoint overrides the default SRV-resolved transport with an
// explicit endpoint. Accepted forms: a bare https:// URL, or a file://
// path for local/debug delivery.
func (b *Builder) WithEndpoint(endpoint string) *Builder {
	b.endpoint = endpoint
	return b
}

// WithStorage supplies a persistent key/value Storage for stable
// identifiers. Defaults to a no-op, in-memory store.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.store = s
	return b
}

// WithDefaultDistinctID supplies the caller's preferred distinct_id,
// used only when neither Storage nor correlation data resolves one.
func (b *Builder) WithDefaultDistinctID(id string) *Builder {
	b.defaultDistinct = id
	return b
}

// WithDiagnosticHook attaches a callback invoked best-effort with
// transport errors observed during batch upload.
func (b *Builder) WithDiagnosticHook(hook func(error)) *Builder {
	b.diagnosticHook = hook
	return b
}

// WithLogger overrides the default structured logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// Build validates the Builder's configuration and starts the background
// Worker, returning a Recorder handle ready for use.
func (b *Builder) Build(ctx context.Context) (*Recorder, error) {
	if b.name == "" {
		return nil, &ConfigError{Field: "name", Message: "library name must not be empty"}
	}
	if b.version == "" {
		return nil, &ConfigError{Field: "version", Message: "library version must not be empty"}
	}

	w := worker.Start(ctx, worker.Options{
		LibraryName:      b.name,
		LibraryVersion:   b.version,
		Endpoint:         b.endpoint,
		Storage:          b.store,
		DefaultDistinct:  b.defaultDistinct,
		Logger:           b.logger,
		OnTransportError: b.diagnosticHook,
	})

	return &Recorder{w: w, sticky: newStickyFacts()}, nil
}

// Recorder is the public, cheaply cloneable handle an embedding program
// uses to record events and read feature flags. Every clone
// shares the same background Worker; state specific to one handle (sticky
// facts) is not shared across clones.
type Recorder struct {
	w      *worker.Worker
	sticky *stickyFacts
}

// Record enqueues a telemetry event. It never blocks on network and never
// returns an error: fire-and-forget by contract. If the
// Recorder-to-Collator channel is over capacity, the oldest pending event
// is dropped and a running counter is surfaced on a later event.
func (r *Recorder) Record(name string, properties map[string]any, groups map[string]string) {
	r.w.Enqueue(event.Event{
		Name:       name,
		Properties: r.sticky.apply(properties),
		Groups:     groups,
	})
}

// RecordFor is like Record but attaches an explicit distinct_id, overriding
// the handle's resolved default for this one event.
func (r *Recorder) RecordFor(distinctID, name string, properties map[string]any, groups map[string]string) {
	r.w.Enqueue(event.Event{
		Name:       name,
		DistinctID: distinctID,
		Properties: r.sticky.apply(properties),
		Groups:     groups,
	})
}

// SetFact attaches a sticky property merged into every subsequent event
// recorded through this handle (and its future clones), with the highest
// precedence among property sources.
func (r *Recorder) SetFact(key string, value any) {
	r.sticky.set(key, value)
}

// GetFeature returns the last-known value of a feature flag from the
// ConfigurationProxy. It never blocks on network; before the first
// check-in completes it reports ok=false.
func (r *Recorder) GetFeature(name string) (FeatureFlag, bool) {
	return r.w.Feature(name)
}

// Flush signals the Submitter to upload pending events and waits for
// acknowledgment or timeout.
func (r *Recorder) Flush(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.w.Flush(ctx); err != nil {
		return &TimeoutError{Op: "flush"}
	}
	return nil
}

// Shutdown flushes and stops the Worker. After it returns, further Record
// calls on any clone of this handle are no-ops.
func (r *Recorder) Shutdown(timeout time.Duration) {
	r.w.Shutdown(timeout)
}

// Clone produces a second handle sharing the same Worker. Sticky facts set
// on the clone do not affect the original handle, and vice versa: a sticky
// fact is attached to one handle, not to the Worker it shares with others.
func (r *Recorder) Clone() *Recorder {
	return &Recorder{w: r.w, sticky: r.sticky.fork()}
}

// DropCount reports the cumulative number of events dropped by
// drop-oldest backpressure on the path from Record to the Collator, since
// the Recorder was built.
func (r *Recorder) DropCount() int {
	return r.w.DropCount()
}

// SubmitDropCount reports events dropped by the Submitter after
// exhausting its upload retry budget or failing to serialize a batch, for
// diagnostics.
func (r *Recorder) SubmitDropCount() int {
	return r.w.SubmitDropCount()
}
