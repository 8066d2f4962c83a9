package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUResult holds the CPU facts the snapshot wire format emits.
type CPUResult struct {
	Cores int
}

type CPUSensor struct{}

func NewCPUSensor() *CPUSensor {
	return &CPUSensor{}
}

func (s *CPUSensor) Name() string {
	return "CPU"
}

func (s *CPUSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *CPUSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *CPUSensor) Collect(ctx context.Context) (any, error) {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu core count: %w", err)
	}

	return CPUResult{Cores: cores}, nil
}
