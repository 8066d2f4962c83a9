package services

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/disk"
)

// UsageStat describes space usage for the volume backing a path.
type UsageStat struct {
	Path              string
	Fstype            string
	Total             uint64
	Free              uint64
	Used              uint64
	UsedPercent       float64
	InodesTotal       uint64
	InodesUsed        uint64
	InodesFree        uint64
	InodesUsedPercent float64
}

// DiskResult holds usage for the volume containing the current working
// directory.
type DiskResult struct {
	Usage []UsageStat
}

type DiskSensor struct{}

func NewDiskSensor() *DiskSensor {
	return &DiskSensor{}
}

func (s *DiskSensor) Name() string {
	return "Disk"
}

func (s *DiskSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *DiskSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *DiskSensor) Collect(ctx context.Context) (any, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	u, err := disk.UsageWithContext(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage for %q: %w", cwd, err)
	}

	return DiskResult{
		Usage: []UsageStat{{
			Path:              u.Path,
			Fstype:            u.Fstype,
			Total:             u.Total,
			Free:              u.Free,
			Used:              u.Used,
			UsedPercent:       u.UsedPercent,
			InodesTotal:       u.InodesTotal,
			InodesUsed:        u.InodesUsed,
			InodesFree:        u.InodesFree,
			InodesUsedPercent: u.InodesUsedPercent,
		}},
	}, nil
}
