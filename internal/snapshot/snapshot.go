package snapshot

import "time"

// Snapshot is a perishable view of volatile host facts, attached to every
// enriched event. It must not be reused across events emitted more than
// Config.TTL apart; the Snapshotter enforces that by regenerating it on
// demand.
type Snapshot struct {
	OS              string
	OSVersion       string
	Arch            string
	HostnameHash    string
	CPUCount        int
	MemBytes        uint64
	DiskUsedBytes   uint64
	DiskTotalBytes  uint64
	Locale          string
	Timezone        string
	InCI            bool
	ThermalState    *string
	KernelVersion   *string
	PlatformFamily  *string
	LoadAvg1m       *float64
	collectedAt     time.Time
}

// CollectedAt reports when this Snapshot was produced, for callers that want
// to reason about staleness themselves (e.g. tests).
func (s Snapshot) CollectedAt() time.Time {
	return s.collectedAt
}

// Fields returns the snapshot as a map of "$"-prefixed properties, the form
// the Collator merges into an EnrichedEvent.
func (s Snapshot) Fields() map[string]any {
	f := map[string]any{
		"$os":               s.OS,
		"$os_version":       s.OSVersion,
		"$arch":             s.Arch,
		"$hostname_hash":    s.HostnameHash,
		"$cpu_count":        s.CPUCount,
		"$mem_bytes":        s.MemBytes,
		"$disk_used_bytes":  s.DiskUsedBytes,
		"$disk_total_bytes": s.DiskTotalBytes,
		"$locale":           s.Locale,
		"$timezone":         s.Timezone,
		"$in_ci":            s.InCI,
	}
	if s.ThermalState != nil {
		f["$thermal_state"] = *s.ThermalState
	}
	if s.KernelVersion != nil {
		f["$kernel_version"] = *s.KernelVersion
	}
	if s.PlatformFamily != nil {
		f["$platform_family"] = *s.PlatformFamily
	}
	if s.LoadAvg1m != nil {
		f["$load_avg_1m"] = *s.LoadAvg1m
	}
	return f
}
