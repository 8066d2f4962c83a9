package ids

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewV4IsParsableAndVersion4(t *testing.T) {
	id := NewV4()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("NewV4 produced unparsable id: %v", err)
	}
	if parsed.Version() != 4 {
		t.Errorf("expected version 4, got %d", parsed.Version())
	}
}

func TestNewV7IsMonotonicallyTimeOrdered(t *testing.T) {
	var prev string
	for i := 0; i < 50; i++ {
		id := NewV7()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("NewV7 produced unparsable id: %v", err)
		}
		if parsed.Version() != 7 {
			t.Errorf("expected version 7, got %d", parsed.Version())
		}
		// UUIDv7's big-endian millisecond timestamp occupies the leading
		// hex digits, so lexicographic string order tracks time order.
		if i > 0 && id < prev {
			t.Errorf("expected time-ordered ids, got %s after %s", id, prev)
		}
		prev = id
	}
}

func TestIDsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewV7()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
