package transport

import (
	"os"
	"strings"
)

const defaultSRVRecord = "_detsys-ids._tcp.ingest.determinate.systems"

// Select picks the Transport variant: File if the endpoint (or
// DETSYS_IDS_TRANSPORT) begins with "file://"; SRV-resolved HTTP against
// the compiled-in record if no endpoint is supplied; HTTP against the
// supplied URL if it contains "://"; otherwise SRV-resolved HTTP, taking
// the bare name as the SRV record name.
func Select(endpoint string) Transport {
	if override := os.Getenv("DETSYS_IDS_TRANSPORT"); override != "" {
		endpoint = override
	}

	switch {
	case strings.HasPrefix(endpoint, "file://"):
		path := strings.TrimPrefix(endpoint, "file://")
		if path == "" {
			path = os.Getenv("DETSYS_IDS_CHECKIN_FILE")
		}
		return NewFile(path)
	case endpoint == "":
		return NewSRV(defaultSRVRecord, "https")
	case strings.Contains(endpoint, "://"):
		return NewHTTP(endpoint)
	default:
		return NewSRV(endpoint, "https")
	}
}
