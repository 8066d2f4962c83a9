package snapshot

import "testing"

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"en_US.UTF-8":       "en_US",
		"fr_FR.UTF-8@euro":  "fr_FR",
		"C":                 "C",
		"ja_JP":             "ja_JP",
	}
	for in, want := range cases {
		if got := normalizeLocale(in); got != want {
			t.Errorf("normalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectInCIExplicitOverride(t *testing.T) {
	t.Setenv("DETSYS_IDS_IN_CI", "1")
	if !detectInCI() {
		t.Fatalf("expected DETSYS_IDS_IN_CI=1 to force CI mode")
	}
}

func TestDetectInCIHeuristic(t *testing.T) {
	t.Setenv("DETSYS_IDS_IN_CI", "")
	t.Setenv("GITHUB_ACTIONS", "true")
	if !detectInCI() {
		t.Fatalf("expected GITHUB_ACTIONS heuristic to detect CI")
	}
}

func TestHashHostnameIsStableAndTruncated(t *testing.T) {
	a := hashHostname("my-laptop")
	b := hashHostname("my-laptop")
	if a != b {
		t.Fatalf("expected stable hash for same input")
	}
	if len(a) != 16 {
		t.Fatalf("expected truncated hash length 16, got %d", len(a))
	}
	if hashHostname("other-host") == a {
		t.Fatalf("expected different hostnames to hash differently")
	}
}
