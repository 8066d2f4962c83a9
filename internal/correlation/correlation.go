// Package correlation parses the DETSYS_CORRELATION environment variable
// into identity hints and extra event properties.
package correlation

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
)

const envVar = "DETSYS_CORRELATION"

// reserved keys are pulled out of the parsed object rather than merged into
// every event's properties verbatim.
const (
	keySessionID      = "$session_id"
	keyAnonDistinctID = "$anon_distinct_id"
	keyDeviceID       = "$device_id"
	keyGroups         = "$groups"
)

// Data holds the parsed correlation context for a process lifetime.
type Data struct {
	SessionID      string
	AnonDistinctID string
	DeviceID       string
	Groups         map[string]string

	// Extra holds every non-reserved key, merged into every event's
	// properties.
	Extra map[string]any
}

// Load reads and parses DETSYS_CORRELATION. A missing variable yields an
// empty Data with no error; a malformed value is logged and ignored,
// also yielding empty Data.
func Load(log zerolog.Logger) Data {
	raw := os.Getenv(envVar)
	if raw == "" {
		return Data{Extra: map[string]any{}}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		log.Warn().Err(err).Str("env", envVar).Msg("failed to parse correlation data, ignoring")
		return Data{Extra: map[string]any{}}
	}

	return parse(obj)
}

func parse(obj map[string]any) Data {
	d := Data{Extra: map[string]any{}}

	for k, v := range obj {
		switch k {
		case keySessionID:
			if s, ok := v.(string); ok {
				d.SessionID = s
			}
		case keyAnonDistinctID:
			if s, ok := v.(string); ok {
				d.AnonDistinctID = s
			}
		case keyDeviceID:
			if s, ok := v.(string); ok {
				d.DeviceID = s
			}
		case keyGroups:
			if m, ok := v.(map[string]any); ok {
				groups := make(map[string]string, len(m))
				for gk, gv := range m {
					if gs, ok := gv.(string); ok {
						groups[gk] = gs
					}
				}
				d.Groups = groups
			}
		default:
			d.Extra[k] = v
		}
	}

	return d
}
