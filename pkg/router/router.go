// Package router decides, for each inbound request, whether a mapping
// answers it locally, whether it is proxied, or whether nothing handles it.
//
// Resolution is an ordered policy evaluated without I/O:
//
//  1. control-plane mappings (absolute precedence)
//  2. all other mappings (recorded or static non-control-plane)
//  3. the global proxy configuration, when present
//  4. no match
//
// Within a tier the winner has the highest Priority, then the highest match
// score (most specific), then the most recent registration.
package router

import (
	"errors"

	"github.com/getmockd/mockrelay/internal/matching"
	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/mapping"
)

// ErrNoMappingMatched is reported when no mapping matches and no proxy is
// configured.
var ErrNoMappingMatched = errors.New("no matching mapping")

// Route is the outcome of resolution.
type Route string

const (
	RouteRespond Route = "respond"
	RouteProxy   Route = "proxy"
	RouteNone    Route = "none"
)

// Decision describes how a request is handled.
type Decision struct {
	Route Route

	// Mapping is the selected mapping; nil for the global proxy fallback
	// and for RouteNone.
	Mapping *mapping.Mapping

	// Score is the match score of Mapping.
	Score int

	// Upstream is the base URL to forward to when Route is RouteProxy.
	Upstream string

	// Proxy is the proxy configuration governing forwarding and recording.
	// For mapping-level proxy actions it is derived from the global
	// configuration with the upstream replaced.
	Proxy *config.ProxyConfig
}

// Err returns ErrNoMappingMatched for RouteNone.
func (d Decision) Err() error {
	if d.Route == RouteNone {
		return ErrNoMappingMatched
	}
	return nil
}

// Resolve applies the resolution policy. cfg may be nil.
func Resolve(req *exchange.Request, snap *mapping.Snapshot, cfg *config.ProxyConfig) Decision {
	if m, score := selectTier(req, snap, true); m != nil {
		return decide(m, score, cfg)
	}
	if m, score := selectTier(req, snap, false); m != nil {
		return decide(m, score, cfg)
	}
	if cfg != nil && cfg.URL != "" {
		return Decision{Route: RouteProxy, Upstream: cfg.URL, Proxy: cfg}
	}
	return Decision{Route: RouteNone}
}

func decide(m *mapping.Mapping, score int, cfg *config.ProxyConfig) Decision {
	if m.Kind() == mapping.ActionProxy {
		pc := config.ProxyConfig{}
		if cfg != nil {
			pc = cfg.Clone()
		}
		pc.URL = m.Proxy.URL
		return Decision{Route: RouteProxy, Mapping: m, Score: score, Upstream: m.Proxy.URL, Proxy: &pc}
	}
	return Decision{Route: RouteRespond, Mapping: m, Score: score}
}

// selectTier returns the best matching mapping whose ControlPlane flag
// equals controlPlane.
func selectTier(req *exchange.Request, snap *mapping.Snapshot, controlPlane bool) (*mapping.Mapping, int) {
	var best *mapping.Mapping
	bestScore := 0

	for _, m := range snap.Mappings() {
		if m.ControlPlane != controlPlane {
			continue
		}
		res := matching.Match(&m.Request, req)
		if !res.Matched {
			continue
		}
		if best == nil || better(m, res.Score, best, bestScore) {
			best, bestScore = m, res.Score
		}
	}
	return best, bestScore
}

func better(m *mapping.Mapping, score int, cur *mapping.Mapping, curScore int) bool {
	if m.Priority != cur.Priority {
		return m.Priority > cur.Priority
	}
	if score != curScore {
		return score > curScore
	}
	return m.Seq > cur.Seq
}

// ControlPlaneMatch returns the control-plane mapping that would answer req,
// or nil.
func ControlPlaneMatch(req *exchange.Request, snap *mapping.Snapshot) *mapping.Mapping {
	m, _ := selectTier(req, snap, true)
	return m
}
