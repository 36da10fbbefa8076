package kuaishou

import (
	"net/http"
	"sync/atomic"
)

// fallbackUserAgent is used when the pool is constructed without agents.
const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// HeaderPool hands out browser-like request headers for Kuaishou hosts.
// User agents rotate round-robin so consecutive requests do not present a
// single fingerprint; Referer and Origin stay pinned to the values the
// site checks.
type HeaderPool struct {
	userAgents []string
	referer    string
	origin     string
	next       atomic.Uint64
}

// NewHeaderPool builds a pool over the given user agents. The slice is
// copied; an empty slice falls back to a single stock agent.
func NewHeaderPool(userAgents []string, referer, origin string) *HeaderPool {
	agents := make([]string, len(userAgents))
	copy(agents, userAgents)
	if len(agents) == 0 {
		agents = []string{fallbackUserAgent}
	}
	return &HeaderPool{
		userAgents: agents,
		referer:    referer,
		origin:     origin,
	}
}

// UserAgent returns the next agent in rotation. Safe for concurrent use.
func (p *HeaderPool) UserAgent() string {
	n := p.next.Add(1) - 1
	return p.userAgents[n%uint64(len(p.userAgents))]
}

// Referer returns the pinned referer value.
func (p *HeaderPool) Referer() string {
	return p.referer
}

// Apply stamps the spoofed headers onto req.
func (p *HeaderPool) Apply(req *http.Request) {
	req.Header.Set("User-Agent", p.UserAgent())
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if p.referer != "" {
		req.Header.Set("Referer", p.referer)
	}
	if p.origin != "" {
		req.Header.Set("Origin", p.origin)
	}
}
