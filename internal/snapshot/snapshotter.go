package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/determinatesystems/detsys-ids-client/internal/snapshot/services"
)

// Snapshotter produces Snapshot values on demand, caching the last one it
// produced for Config.TTL so a burst of events does not re-run host queries
// for each one.
//
// Errors in individual sensors are never fatal: a failing field is recorded
// as its zero value and Snapshot() always succeeds.
type Snapshotter struct {
	cfg Config

	cpuSensor      services.Sensor
	memSensor      services.Sensor
	diskSensor     services.Sensor
	hostSensor     services.Sensor
	physicalSensor services.Sensor

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time

	now func() time.Time
}

// New constructs a Snapshotter with the given configuration.
func New(cfg Config) *Snapshotter {
	return &Snapshotter{
		cfg:            cfg,
		cpuSensor:      services.NewCPUSensor(),
		memSensor:      services.NewMemSensor(),
		diskSensor:     services.NewDiskSensor(),
		hostSensor:     services.NewHostSensor(),
		physicalSensor: services.NewPhysicalSensor(),
		now:            time.Now,
	}
}

type cpuResult struct {
	res services.CPUResult
	err error
}

type memResult struct {
	res services.MemResult
	err error
}

type diskResult struct {
	res services.DiskResult
	err error
}

type hostResult struct {
	res services.HostResult
	err error
}

type physicalResult struct {
	res services.PhysicalResult
	err error
}

// Snapshot returns a fresh or cached Snapshot, whichever the TTL allows.
func (s *Snapshotter) Snapshot(ctx context.Context) *Snapshot {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.cfg.TTL {
		cached := *s.cached
		s.mu.Unlock()
		return &cached
	}
	s.mu.Unlock()

	fresh := s.collect(ctx)

	s.mu.Lock()
	s.cached = fresh
	s.cachedAt = fresh.collectedAt
	s.mu.Unlock()

	out := *fresh
	return &out
}

// collect runs every sensor concurrently, fanning out across channels and
// a shared WaitGroup.
func (s *Snapshotter) collect(ctx context.Context) *Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CollectTimeout)
	defer cancel()

	cpuCh := make(chan cpuResult, 1)
	memCh := make(chan memResult, 1)
	diskCh := make(chan diskResult, 1)
	hostCh := make(chan hostResult, 1)
	physCh := make(chan physicalResult, 1)

	var wg sync.WaitGroup
	wg.Add(4)
	if s.cfg.EnableThermal {
		wg.Add(1)
	}

	go func() {
		defer wg.Done()
		res, err := s.cpuSensor.Collect(ctx)
		if err != nil {
			cpuCh <- cpuResult{err: err}
			return
		}
		cpuCh <- cpuResult{res: res.(services.CPUResult)}
	}()

	go func() {
		defer wg.Done()
		res, err := s.memSensor.Collect(ctx)
		if err != nil {
			memCh <- memResult{err: err}
			return
		}
		memCh <- memResult{res: res.(services.MemResult)}
	}()

	go func() {
		defer wg.Done()
		res, err := s.diskSensor.Collect(ctx)
		if err != nil {
			diskCh <- diskResult{err: err}
			return
		}
		diskCh <- diskResult{res: res.(services.DiskResult)}
	}()

	go func() {
		defer wg.Done()
		res, err := s.hostSensor.Collect(ctx)
		if err != nil {
			hostCh <- hostResult{err: err}
			return
		}
		hostCh <- hostResult{res: res.(services.HostResult)}
	}()

	if s.cfg.EnableThermal {
		go func() {
			defer wg.Done()
			res, err := s.physicalSensor.Collect(ctx)
			if err != nil {
				physCh <- physicalResult{err: err}
				return
			}
			physCh <- physicalResult{res: res.(services.PhysicalResult)}
		}()
	}

	wg.Wait()
	close(cpuCh)
	close(memCh)
	close(diskCh)
	close(hostCh)
	if s.cfg.EnableThermal {
		close(physCh)
	}

	out := &Snapshot{
		Arch:        runtimeArch(),
		Locale:      detectLocale(),
		Timezone:    detectTimezone(),
		InCI:        detectInCI(),
		collectedAt: s.now(),
	}

	if cpuRes := <-cpuCh; cpuRes.err == nil {
		out.CPUCount = cpuRes.res.Cores
	}

	if memRes := <-memCh; memRes.err == nil {
		out.MemBytes = memRes.res.Total
	}

	if diskRes := <-diskCh; diskRes.err == nil {
		rootUsage := rootDiskUsage(diskRes.res)
		out.DiskUsedBytes = rootUsage.Used
		out.DiskTotalBytes = rootUsage.Total
	}

	if hostRes := <-hostCh; hostRes.err == nil {
		out.OS = hostRes.res.OS
		out.OSVersion = hostRes.res.PlatformVersion
		out.HostnameHash = hashHostname(hostRes.res.Hostname)
		kernel := hostRes.res.KernelVersion
		out.KernelVersion = &kernel
		family := hostRes.res.PlatformFamily
		out.PlatformFamily = &family
	}

	if s.cfg.EnableThermal {
		if physRes := <-physCh; physRes.err == nil && len(physRes.res.Temperatures) > 0 {
			// Report the hottest zone as the representative thermal state.
			hottest := physRes.res.Temperatures[0]
			for _, t := range physRes.res.Temperatures[1:] {
				if t > hottest {
					hottest = t
				}
			}
			state := thermalBucket(hottest)
			out.ThermalState = &state
		}
	}

	if load, ok := loadAvg1m(); ok {
		out.LoadAvg1m = &load
	}

	return out
}

// rootDiskUsage picks the usage entry for "/" if there is one, otherwise
// the first entry. DiskSensor reports a single entry, for the volume that
// holds the current working directory.
func rootDiskUsage(res services.DiskResult) services.UsageStat {
	for _, u := range res.Usage {
		if u.Path == "/" {
			return u
		}
	}
	if len(res.Usage) > 0 {
		return res.Usage[0]
	}
	return services.UsageStat{}
}

func thermalBucket(celsius float64) string {
	switch {
	case celsius >= 90:
		return "critical"
	case celsius >= 75:
		return "hot"
	case celsius >= 50:
		return "warm"
	default:
		return "nominal"
	}
}

// loadAvg1m is collected alongside CPU as a cheap diagnostic extra.
func loadAvg1m() (float64, bool) {
	avg, err := services.LoadAvg1m()
	if err != nil {
		return 0, false
	}
	return avg, true
}
