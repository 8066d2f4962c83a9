package services

import "github.com/shirou/gopsutil/v4/load"

// LoadAvg1m returns the 1-minute load average. Kept as a package-level
// helper rather than a Sensor because it has no connect/disconnect
// lifecycle worth modeling.
func LoadAvg1m() (float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}
