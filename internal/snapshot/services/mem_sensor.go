package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemResult holds the memory facts the snapshot wire format emits.
type MemResult struct {
	Total uint64
}

type MemSensor struct{}

func NewMemSensor() *MemSensor {
	return &MemSensor{}
}

func (s *MemSensor) Name() string {
	return "Memory"
}

func (s *MemSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *MemSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *MemSensor) Collect(ctx context.Context) (any, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual memory: %w", err)
	}

	return MemResult{Total: v.Total}, nil
}
