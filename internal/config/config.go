// Package config implements the ConfigurationProxy: the front-end's view of
// the last successful check-in response.
package config

import "sync/atomic"

// FeatureFlag is a single evaluated feature flag from a check-in response.
type FeatureFlag struct {
	Variant string `json:"variant"`
	Payload any    `json:"payload,omitempty"`
}

// CheckinResponse is the parsed body of a GET /check-in call.
type CheckinResponse struct {
	Options         map[string]any         `json:"options"`
	Features        map[string]FeatureFlag `json:"features"`
	EndpointOverride *string               `json:"endpoint_override,omitempty"`
}

// Proxy holds the most recent CheckinResponse. Reads never block a writer:
// it is built on atomic.Pointer so get_feature never contends with the
// worker's single writer goroutine.
type Proxy struct {
	current atomic.Pointer[CheckinResponse]
}

// New returns an empty Proxy; get_feature returns the zero value until the
// first check-in completes.
func New() *Proxy {
	return &Proxy{}
}

// Update replaces the stored response atomically. Called only by the
// worker goroutine that owns the Transport.
func (p *Proxy) Update(resp CheckinResponse) {
	p.current.Store(&resp)
}

// Feature returns the named flag's last-known value and whether a check-in
// has populated it. If no check-in has completed, or the flag is unknown,
// ok is false.
func (p *Proxy) Feature(name string) (FeatureFlag, bool) {
	resp := p.current.Load()
	if resp == nil {
		return FeatureFlag{}, false
	}
	f, ok := resp.Features[name]
	return f, ok
}

// Option returns the named top-level option value from the last check-in.
func (p *Proxy) Option(name string) (any, bool) {
	resp := p.current.Load()
	if resp == nil {
		return nil, false
	}
	v, ok := resp.Options[name]
	return v, ok
}

// EndpointOverride returns the transport endpoint override from the last
// check-in, if the service supplied one.
func (p *Proxy) EndpointOverride() (string, bool) {
	resp := p.current.Load()
	if resp == nil || resp.EndpointOverride == nil {
		return "", false
	}
	return *resp.EndpointOverride, true
}

// Loaded reports whether any check-in has ever completed.
func (p *Proxy) Loaded() bool {
	return p.current.Load() != nil
}
