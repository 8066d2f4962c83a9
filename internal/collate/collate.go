// Package collate implements the Collator: it merges a base Event with a
// system snapshot, correlation data, identity, and configuration-provided
// properties into an EnrichedEvent, then forwards it for submission.
package collate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
	"github.com/determinatesystems/detsys-ids-client/internal/correlation"
	"github.com/determinatesystems/detsys-ids-client/internal/event"
	"github.com/determinatesystems/detsys-ids-client/internal/identity"
	"github.com/determinatesystems/detsys-ids-client/internal/ids"
	"github.com/determinatesystems/detsys-ids-client/internal/snapshot"
)

// Sink is the downstream consumer of enriched events: the Submitter, in
// production, or a test double.
type Sink interface {
	Enqueue(event.EnrichedEvent)
}

// Collator runs the enrichment pipeline for every Event received from the
// Recorder. A single Collator is owned by one Worker and is not safe for
// concurrent use from multiple goroutines; the worker feeds it serially
// from its event channel.
type Collator struct {
	id          identity.Identity
	corr        correlation.Data
	snapshotter *snapshot.Snapshotter
	proxy       *config.Proxy
	library     event.Library
	sink        Sink
	log         zerolog.Logger

	// disabled mirrors DETSYS_IDS_TELEMETRY=disabled : events
	// are discarded rather than forwarded, but the Collator is still
	// constructed and wired so check-ins keep flowing independently.
	disabled bool

	now func() time.Time
}

// New builds a Collator bound to one worker's identity, correlation data,
// snapshotter, and configuration proxy.
func New(
	id identity.Identity,
	corr correlation.Data,
	snapshotter *snapshot.Snapshotter,
	proxy *config.Proxy,
	lib event.Library,
	sink Sink,
	log zerolog.Logger,
	disabled bool,
) *Collator {
	return &Collator{
		id:          id,
		corr:        corr,
		snapshotter: snapshotter,
		proxy:       proxy,
		library:     lib,
		sink:        sink,
		log:         log,
		disabled:    disabled,
		now:         time.Now,
	}
}

// Collate enriches a base Event and hands it to the Sink. If telemetry is
// disabled, the event is dropped. droppedEvents is the number
// of backpressure-dropped events observed since the last call; when
// nonzero it is surfaced as $library_dropped_events on this event.
func (c *Collator) Collate(ctx context.Context, base event.Event, droppedEvents int) {
	if c.disabled {
		return
	}

	ts := c.now()
	if base.Timestamp != nil {
		ts = *base.Timestamp
	}

	distinctID := base.DistinctID
	if distinctID == "" {
		distinctID = c.id.DistinctID
	}

	groups := mergeGroups(c.corr.Groups, base.Groups)

	snap := c.snapshotter.Snapshot(ctx)

	props := mergeProperties(c.proxy, c.corr.Extra, base.Properties)
	if droppedEvents > 0 {
		props["$library_dropped_events"] = droppedEvents
	}

	enriched := event.EnrichedEvent{
		UUID:           ids.NewV7(),
		Name:           base.Name,
		DistinctID:     distinctID,
		SessionID:      c.id.SessionID,
		DeviceID:       c.id.DeviceID,
		AnonDistinctID: c.id.AnonDistinctID,
		Timestamp:      ts,
		Properties:     props,
		Groups:         groups,
		Snapshot:       snap.Fields(),
		Correlation:    c.corr.Extra,
		Library:        c.library,
	}

	c.log.Debug().Str("event", base.Name).Str("uuid", enriched.UUID).Msg("event collated")
	c.sink.Enqueue(enriched)
}

// mergeGroups unions correlation-supplied groups with caller-supplied
// groups; the caller wins on key collision.
func mergeGroups(corrGroups, callerGroups map[string]string) map[string]string {
	if len(corrGroups) == 0 && len(callerGroups) == 0 {
		return nil
	}
	merged := make(map[string]string, len(corrGroups)+len(callerGroups))
	for k, v := range corrGroups {
		merged[k] = v
	}
	for k, v := range callerGroups {
		merged[k] = v
	}
	return merged
}

// mergeProperties applies the precedence order among the non-identity
// property sources: the map held in the ConfigurationProxy's
// "default_event_properties" option (no other option is merged into event
// properties), then correlation extras,
// then caller-provided properties (which, by the time they reach the
// Collator, already carry the Recorder's sticky facts merged in with
// sticky winning, as the final and highest-precedence step).
func mergeProperties(proxy *config.Proxy, correlationExtra, callerProps map[string]any) map[string]any {
	merged := map[string]any{}
	if v, ok := proxy.Option("default_event_properties"); ok {
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				merged[k] = val
			}
		}
	}
	for k, v := range correlationExtra {
		merged[k] = v
	}
	for k, v := range callerProps {
		merged[k] = v
	}
	return merged
}
