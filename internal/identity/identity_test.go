package identity

import (
	"os"
	"testing"

	"github.com/determinatesystems/detsys-ids-client/internal/correlation"
	"github.com/determinatesystems/detsys-ids-client/internal/storage"
)

func TestResolvePrefersStorageOverEverything(t *testing.T) {
	store, err := storage.NewFile(t.TempDir() + "/state.json")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := store.Set("distinct_id", "from-storage"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	id := Resolve(store, correlation.Data{AnonDistinctID: "from-correlation"}, WithCallerDistinctID("from-caller"))
	if id.DistinctID != "from-storage" {
		t.Errorf("DistinctID = %q, want from-storage", id.DistinctID)
	}
}

func TestResolveFallsBackToCorrelationThenCaller(t *testing.T) {
	empty := storage.NoOp{}

	id := Resolve(empty, correlation.Data{AnonDistinctID: "from-correlation"}, WithCallerDistinctID("from-caller"))
	if id.DistinctID != "from-correlation" {
		t.Errorf("DistinctID = %q, want from-correlation", id.DistinctID)
	}

	id2 := Resolve(empty, correlation.Data{}, WithCallerDistinctID("from-caller"))
	if id2.DistinctID != "from-caller" {
		t.Errorf("DistinctID = %q, want from-caller", id2.DistinctID)
	}
}

func TestResolveGeneratesAndPersistsWhenNothingAvailable(t *testing.T) {
	path := t.TempDir() + "/state.json"
	store, err := storage.NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	id := Resolve(store, correlation.Data{})
	if id.DistinctID == "" {
		t.Fatalf("expected generated distinct_id")
	}

	v, ok := store.Get("distinct_id")
	if !ok || v != id.DistinctID {
		t.Fatalf("expected generated distinct_id persisted to storage, got (%q, %v)", v, ok)
	}
}

func TestResolveSessionIDFromCorrelation(t *testing.T) {
	id := Resolve(storage.NoOp{}, correlation.Data{SessionID: "sess-fixed"})
	if id.SessionID != "sess-fixed" {
		t.Errorf("SessionID = %q, want sess-fixed", id.SessionID)
	}
}

func TestResolveSessionIDGeneratedWhenAbsent(t *testing.T) {
	id := Resolve(storage.NoOp{}, correlation.Data{})
	if id.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func withIdentityFile(t *testing.T, contents string) {
	t.Helper()
	path := t.TempDir() + "/identity.json"
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	prev := identityFilePath
	identityFilePath = path
	t.Cleanup(func() { identityFilePath = prev })
}

func TestResolveFileBeatsCorrelationButNotStorage(t *testing.T) {
	withIdentityFile(t, `{"distinct_id":"from-file","device_id":"device-from-file"}`)

	id := Resolve(storage.NoOp{}, correlation.Data{AnonDistinctID: "from-correlation", DeviceID: "device-from-correlation"})
	if id.DistinctID != "from-file" {
		t.Errorf("DistinctID = %q, want from-file", id.DistinctID)
	}
	if id.DeviceID != "device-from-file" {
		t.Errorf("DeviceID = %q, want device-from-file", id.DeviceID)
	}

	store, err := storage.NewFile(t.TempDir() + "/state.json")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := store.Set("distinct_id", "from-storage"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	id2 := Resolve(store, correlation.Data{})
	if id2.DistinctID != "from-storage" {
		t.Errorf("DistinctID = %q, want from-storage", id2.DistinctID)
	}
}

func TestResolveMissingIdentityFileFallsThrough(t *testing.T) {
	withIdentityFile(t, "")

	id := Resolve(storage.NoOp{}, correlation.Data{AnonDistinctID: "from-correlation"})
	if id.DistinctID != "from-correlation" {
		t.Errorf("DistinctID = %q, want from-correlation", id.DistinctID)
	}
}
