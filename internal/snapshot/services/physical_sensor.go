package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/sensors"
)

// PhysicalResult holds every zone's temperature; only the hottest one
// ends up in the snapshot, but picking it requires seeing them all.
type PhysicalResult struct {
	Temperatures []float64
}

type PhysicalSensor struct{}

func NewPhysicalSensor() *PhysicalSensor {
	return &PhysicalSensor{}
}

func (s *PhysicalSensor) Name() string {
	return "Physical"
}

func (s *PhysicalSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *PhysicalSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *PhysicalSensor) Collect(ctx context.Context) (any, error) {
	data, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get temperatures: %w", err)
	}

	temps := make([]float64, len(data))
	for i, t := range data {
		temps[i] = t.Temperature
	}

	return PhysicalResult{Temperatures: temps}, nil
}
