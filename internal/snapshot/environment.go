package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strings"
	"time"
)

// ciEnvVars are well-known CI indicators, consulted in order after the
// explicit DETSYS_IDS_IN_CI override. No CI-detection dependency is
// available in the dependency graph this module draws from, so the table
// is hand-rolled.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"TRAVIS",
	"JENKINS_URL",
	"BUILDKITE",
	"TEAMCITY_VERSION",
	"APPVEYOR",
	"DRONE",
	"TF_BUILD",
	"BITBUCKET_BUILD_NUMBER",
}

func detectInCI() bool {
	switch os.Getenv("DETSYS_IDS_IN_CI") {
	case "1":
		return true
	case "":
		// fall through to heuristics
	default:
		// any other explicit value defers to heuristics
	}
	for _, key := range ciEnvVars {
		if v := os.Getenv(key); v != "" && v != "0" && v != "false" {
			return true
		}
	}
	return false
}

// hashHostname SHA-256's and truncates a hostname so it can be carried in
// telemetry without leaking the literal machine name.
func hashHostname(hostname string) string {
	sum := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(sum[:])[:16]
}

func detectLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return normalizeLocale(v)
		}
	}
	return "C"
}

func normalizeLocale(raw string) string {
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	if idx := strings.IndexByte(raw, '@'); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

func detectTimezone() string {
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	return "UTC"
}

func runtimeArch() string {
	return runtime.GOARCH
}
