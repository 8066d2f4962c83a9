package config

import "testing"

func TestProxyFeatureBeforeCheckinReportsMissing(t *testing.T) {
	p := New()
	if p.Loaded() {
		t.Fatalf("expected fresh proxy to be unloaded")
	}
	if _, ok := p.Feature("new-ui"); ok {
		t.Fatalf("expected no feature before first check-in")
	}
}

func TestProxyUpdateThenFeature(t *testing.T) {
	p := New()
	p.Update(CheckinResponse{
		Options: map[string]any{"sample_rate": 0.5},
		Features: map[string]FeatureFlag{
			"new-ui": {Variant: "enabled", Payload: map[string]any{"rollout": 25}},
		},
	})

	if !p.Loaded() {
		t.Fatalf("expected proxy to be loaded after Update")
	}

	f, ok := p.Feature("new-ui")
	if !ok {
		t.Fatalf("expected new-ui feature to be present")
	}
	if f.Variant != "enabled" {
		t.Errorf("Variant = %q, want enabled", f.Variant)
	}

	if _, ok := p.Feature("nonexistent"); ok {
		t.Fatalf("expected unknown feature to report missing")
	}

	v, ok := p.Option("sample_rate")
	if !ok || v != 0.5 {
		t.Fatalf("Option(sample_rate) = (%v, %v), want (0.5, true)", v, ok)
	}
}

func TestProxyEndpointOverride(t *testing.T) {
	p := New()
	if _, ok := p.EndpointOverride(); ok {
		t.Fatalf("expected no override before check-in")
	}

	override := "https://eu.example.com"
	p.Update(CheckinResponse{EndpointOverride: &override})

	got, ok := p.EndpointOverride()
	if !ok || got != override {
		t.Fatalf("EndpointOverride = (%q, %v), want (%q, true)", got, ok, override)
	}
}

func TestProxyUpdateReplacesAtomically(t *testing.T) {
	p := New()
	p.Update(CheckinResponse{Features: map[string]FeatureFlag{"a": {Variant: "x"}}})
	p.Update(CheckinResponse{Features: map[string]FeatureFlag{"b": {Variant: "y"}}})

	if _, ok := p.Feature("a"); ok {
		t.Fatalf("expected stale feature to be gone after replacement")
	}
	if f, ok := p.Feature("b"); !ok || f.Variant != "y" {
		t.Fatalf("expected replaced feature b=y, got %+v, %v", f, ok)
	}
}
