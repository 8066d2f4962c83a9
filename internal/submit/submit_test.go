package submit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
	"github.com/determinatesystems/detsys-ids-client/internal/event"
	"github.com/determinatesystems/detsys-ids-client/internal/transport"
)

type fakeTransport struct {
	mu      sync.Mutex
	batches [][]byte
	fail    int
}

func (f *fakeTransport) Checkin(ctx context.Context) (*config.CheckinResponse, error) {
	return &config.CheckinResponse{}, nil
}

func (f *fakeTransport) Submit(ctx context.Context, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return &transport.Error{Kind: transport.KindNetwork, Err: context.DeadlineExceeded}
	}
	f.batches = append(f.batches, body)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newEvent(name string) event.EnrichedEvent {
	return event.EnrichedEvent{UUID: name, Name: name, Timestamp: time.Now()}
}

func TestSubmitterFlushUploadsBufferedEvents(t *testing.T) {
	ft := &fakeTransport{}
	s := New(ft, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(newEvent("a"))
	s.Enqueue(newEvent("b"))

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if ft.batchCount() != 1 {
		t.Fatalf("expected 1 uploaded batch, got %d", ft.batchCount())
	}

	var decoded []map[string]any
	if err := json.Unmarshal(ft.batches[0], &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 events in batch, got %d", len(decoded))
	}
}

func TestSubmitterSizeTriggerFlushesAutomatically(t *testing.T) {
	ft := &fakeTransport{}
	s := New(ft, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < maxBatchEvents; i++ {
		s.Enqueue(newEvent("e"))
	}

	deadline := time.After(2 * time.Second)
	for {
		if ft.batchCount() >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for size-triggered flush")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubmitterShutdownFlushesRemainingEvents(t *testing.T) {
	ft := &fakeTransport{}
	s := New(ft, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	s.Enqueue(newEvent("last"))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to finish")
	}

	if ft.batchCount() != 1 {
		t.Fatalf("expected shutdown to flush 1 batch, got %d", ft.batchCount())
	}
}

func TestSubmitterRetriesThenSucceeds(t *testing.T) {
	ft := &fakeTransport{fail: 2}
	s := New(ft, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(newEvent("a"))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if ft.batchCount() != 1 {
		t.Fatalf("expected eventual success after retries, got %d batches", ft.batchCount())
	}
	if s.DropCount() != 0 {
		t.Fatalf("expected no drops on eventual success, got %d", s.DropCount())
	}
}

func TestSubmitterDropsAfterExhaustingRetries(t *testing.T) {
	ft := &fakeTransport{fail: 100}
	s := New(ft, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(newEvent("a"))
	s.Enqueue(newEvent("b"))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if s.DropCount() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", s.DropCount())
	}
}
