// Package identity resolves the stable identifiers attached to every event
// for the lifetime of a worker.
package identity

import (
	"encoding/json"
	"os"

	"github.com/determinatesystems/detsys-ids-client/internal/correlation"
	"github.com/determinatesystems/detsys-ids-client/internal/ids"
	"github.com/determinatesystems/detsys-ids-client/internal/storage"
)

// identityFilePath is a read-only file an enclosing environment may drop
// identity hints into. It is consulted as a Storage-equivalent source,
// ahead of correlation data but behind the pluggable Storage. A var, not a
// const, so tests can point it at a fixture.
var identityFilePath = "/var/lib/determinate/identity.json"

// identityFile is the shape of identityFilePath's contents. Every field is
// optional; a missing or unparseable file yields a zero value and
// resolution proceeds to the next source.
type identityFile struct {
	DistinctID     string `json:"distinct_id"`
	AnonDistinctID string `json:"anon_distinct_id"`
	DeviceID       string `json:"device_id"`
}

func loadIdentityFile() identityFile {
	data, err := os.ReadFile(identityFilePath)
	if err != nil {
		return identityFile{}
	}
	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return identityFile{}
	}
	return f
}

// Identity holds the four sticky fields resolved once at worker startup.
// Once resolved, a field's value is stable for the process lifetime even
// if Storage is later updated by another actor.
type Identity struct {
	DistinctID     string
	AnonDistinctID string
	DeviceID       string
	SessionID      string
}

// caller carries the optional caller-supplied defaults a Builder may set
// before the worker starts.
type caller struct {
	distinctID string
}

// Option configures identity resolution.
type Option func(*caller)

// WithCallerDistinctID supplies the caller's preferred default distinct_id,
// used only when neither Storage nor correlation data has a value.
func WithCallerDistinctID(id string) Option {
	return func(c *caller) { c.distinctID = id }
}

const (
	storageKeyDistinctID     = "distinct_id"
	storageKeyAnonDistinctID = "anon_distinct_id"
	storageKeyDeviceID       = "device_id"
)

// Resolve computes the four identity fields from Storage, the read-only
// identity file, correlation data, and caller defaults, in that precedence
// order. session_id has no Storage slot: it is correlation-provided or
// freshly generated every process start, held for process lifetime.
//
// Newly generated identifiers are persisted back to Storage so the next
// process start observes the same resolved value.
func Resolve(store storage.Storage, corr correlation.Data, opts ...Option) Identity {
	c := &caller{}
	for _, opt := range opts {
		opt(c)
	}

	file := loadIdentityFile()

	id := Identity{
		DistinctID:     resolveField(store, storageKeyDistinctID, file.DistinctID, corr.AnonDistinctID, c.distinctID),
		AnonDistinctID: resolveField(store, storageKeyAnonDistinctID, file.AnonDistinctID, corr.AnonDistinctID, ""),
		DeviceID:       resolveField(store, storageKeyDeviceID, file.DeviceID, corr.DeviceID, ""),
	}

	if corr.SessionID != "" {
		id.SessionID = corr.SessionID
	} else {
		id.SessionID = ids.NewV4()
	}

	return id
}

// resolveField implements the shared precedence: Storage -> identity file ->
// correlation -> caller -> generated v4, persisting a freshly generated
// value back to Storage so it survives the next process start.
func resolveField(store storage.Storage, key, fromFile, fromCorrelation, fromCaller string) string {
	if v, ok := store.Get(key); ok && v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	if fromCorrelation != "" {
		return fromCorrelation
	}
	if fromCaller != "" {
		return fromCaller
	}

	generated := ids.NewV4()
	_ = store.Set(key, generated)
	return generated
}
