package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
)

// endpoint is one resolved SRV target.
type endpoint struct {
	host     string
	port     uint16
	priority uint16
	weight   uint16
}

func (e endpoint) baseURL(scheme string) string {
	return fmt.Sprintf("%s://%s:%d", scheme, e.host, e.port)
}

// SRV is the SRV-resolved HTTP transport variant. At construction, the record name is
// resolved to a list of endpoints; resolution is cached for the DNS TTL.
// Each operation rotates through endpoints in priority-then-weight order,
// falling over to the next endpoint on a retryable error.
type SRV struct {
	recordName string
	scheme     string
	resolver   func(name string) ([]endpoint, time.Duration, error)

	mu          sync.Mutex
	endpoints   []endpoint
	resolvedAt  time.Time
	ttl         time.Duration
	rotateIndex int
}

// NewSRV builds an SRV-resolved transport for the given DNS SRV record
// name (e.g. "_detsys-ids._tcp.ingest.example.com"), using scheme ("http"
// or "https") for the resolved endpoints.
func NewSRV(recordName, scheme string) *SRV {
	return &SRV{
		recordName: recordName,
		scheme:     scheme,
		resolver:   resolveSRV,
	}
}

func (s *SRV) Checkin(ctx context.Context) (*config.CheckinResponse, error) {
	var out *config.CheckinResponse
	err := s.withEndpoints(ctx, func(base string) error {
		resp, err := NewHTTP(base).Checkin(ctx)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

func (s *SRV) Submit(ctx context.Context, body []byte) error {
	return s.withEndpoints(ctx, func(base string) error {
		return NewHTTP(base).Submit(ctx, body)
	})
}

func (s *SRV) Close() error { return nil }

// withEndpoints resolves (or reuses a cached resolution of) the SRV record,
// then tries each endpoint in rotation order until one succeeds or a
// non-retryable error occurs.
func (s *SRV) withEndpoints(ctx context.Context, try func(baseURL string) error) error {
	endpoints, err := s.resolve(ctx)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("resolving %s: %w", s.recordName, err)}
	}
	if len(endpoints) == 0 {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("no SRV endpoints for %s", s.recordName)}
	}

	order := rotationOrder(endpoints, s.nextRotateIndex())

	var lastErr error
	for _, ep := range order {
		lastErr = try(ep.baseURL(s.scheme))
		if lastErr == nil {
			return nil
		}
		te, ok := lastErr.(*Error)
		if !ok || !te.Retryable() {
			return lastErr
		}
	}
	return lastErr
}

func (s *SRV) nextRotateIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.rotateIndex
	s.rotateIndex++
	return idx
}

func (s *SRV) resolve(ctx context.Context) ([]endpoint, error) {
	s.mu.Lock()
	if len(s.endpoints) > 0 && time.Since(s.resolvedAt) < s.ttl {
		defer s.mu.Unlock()
		return s.endpoints, nil
	}
	s.mu.Unlock()

	endpoints, ttl, err := s.resolver(s.recordName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.endpoints = endpoints
	s.resolvedAt = time.Now()
	s.ttl = ttl
	s.mu.Unlock()

	return endpoints, nil
}

// rotationOrder sorts endpoints by priority ascending and, within a
// priority, by weight descending (endpoints with equal priority and weight
// keep the order resolveSRV shuffled them into); weight is not used for
// random selection. It then rotates the start point by startAt across the
// whole sorted list so consecutive calls begin at a different endpoint.
func rotationOrder(endpoints []endpoint, startAt int) []endpoint {
	sorted := make([]endpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].weight > sorted[j].weight
	})

	if len(sorted) == 0 {
		return sorted
	}
	offset := startAt % len(sorted)
	return append(sorted[offset:], sorted[:offset]...)
}

func resolveSRV(name string) ([]endpoint, time.Duration, error) {
	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || conf == nil || len(conf.Servers) == 0 {
		return nil, 0, fmt.Errorf("loading resolver config: %w", err)
	}

	server := net.JoinHostPort(conf.Servers[0], conf.Port)
	reply, _, err := client.Exchange(msg, server)
	if err != nil {
		return nil, 0, err
	}
	if reply == nil || reply.Rcode != dns.RcodeSuccess {
		return nil, 0, fmt.Errorf("SRV lookup for %s failed with rcode %d", name, rcode(reply))
	}

	var endpoints []endpoint
	var minTTL uint32 = ^uint32(0)
	for _, rr := range reply.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		endpoints = append(endpoints, endpoint{
			host:     trimTrailingDot(srv.Target),
			port:     srv.Port,
			priority: srv.Priority,
			weight:   srv.Weight,
		})
		if srv.Hdr.Ttl < minTTL {
			minTTL = srv.Hdr.Ttl
		}
	}
	if len(endpoints) == 0 {
		minTTL = 60
	}

	shuffleWithinPriority(endpoints)
	return endpoints, time.Duration(minTTL) * time.Second, nil
}

func rcode(msg *dns.Msg) int {
	if msg == nil {
		return -1
	}
	return msg.Rcode
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

func shuffleWithinPriority(endpoints []endpoint) {
	rand.Shuffle(len(endpoints), func(i, j int) {
		endpoints[i], endpoints[j] = endpoints[j], endpoints[i]
	})
}
