// Package event defines the base and enriched event types that flow
// through the pipeline: Recorder -> Collator -> Submitter.
package event

import "time"

// Event is the base record supplied by the caller through the Recorder. If
// Timestamp is nil, the Recorder fills current wall time at submission.
type Event struct {
	Name       string
	DistinctID string
	Properties map[string]any
	Groups     map[string]string
	Timestamp  *time.Time
}

// Library identifies the embedding library, attached to every EnrichedEvent
// under the $lib/$lib_version properties.
type Library struct {
	Name    string
	Version string
}

// EnrichedEvent is the superset of Event produced by the Collator: resolved
// identity, a system snapshot, and correlation data merged in. It is
// immutable once constructed.
type EnrichedEvent struct {
	UUID           string
	Name           string
	DistinctID     string
	SessionID      string
	DeviceID       string
	AnonDistinctID string
	Timestamp      time.Time
	Properties     map[string]any
	Groups         map[string]string
	Snapshot       map[string]any
	Correlation    map[string]any
	Library        Library
}

// wireEvent is the PostHog-compatible JSON shape: uuid, event (name),
// distinct_id, timestamp (RFC 3339), and a properties object containing
// $session_id, $device_id, $anon_distinct_id, $groups, $lib, $lib_version,
// plus snapshot and caller fields.
type wireEvent struct {
	UUID       string         `json:"uuid"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Timestamp  string         `json:"timestamp"`
	Properties map[string]any `json:"properties"`
}

// ToWire flattens an EnrichedEvent into the PostHog-compatible shape
// expected by the ingestion endpoint. Properties precedence (lowest to
// highest): snapshot fields, correlation extras, caller properties, then
// the reserved identity/library keys, which always win.
func (e EnrichedEvent) ToWire() any {
	props := make(map[string]any, len(e.Snapshot)+len(e.Correlation)+len(e.Properties)+6)

	for k, v := range e.Snapshot {
		props[k] = v
	}
	for k, v := range e.Correlation {
		props[k] = v
	}
	for k, v := range e.Properties {
		props[k] = v
	}

	props["$session_id"] = e.SessionID
	props["$device_id"] = e.DeviceID
	props["$anon_distinct_id"] = e.AnonDistinctID
	if len(e.Groups) > 0 {
		props["$groups"] = e.Groups
	}
	props["$lib"] = e.Library.Name
	props["$lib_version"] = e.Library.Version

	return wireEvent{
		UUID:       e.UUID,
		Event:      e.Name,
		DistinctID: e.DistinctID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Properties: props,
	}
}

// Batch is an ordered sequence of EnrichedEvents with a batch ID and an
// upload-attempt counter. The Submitter does not build Batch values: it
// keeps the batch ID and attempt count as locals of each upload.
type Batch struct {
	ID      string
	Events  []EnrichedEvent
	Attempt int
}
