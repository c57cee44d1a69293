// Package headers provides browser-like request headers for dictionary sites
// that refuse obvious bots.
package headers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

// DefaultUserAgents is used when no user agents are configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/76.0.3809.132 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Profile is one set of request headers.
type Profile struct {
	UserAgent string
}

// Header returns the full header set for the profile.
func (p Profile) Header() http.Header {
	h := make(http.Header)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Charset", "utf-8,*;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Accept-Language", "utf-8, *;q=0.5")
	h.Set("User-Agent", p.UserAgent)
	return h
}

// Apply copies the profile headers onto req, keeping headers already set.
func (p Profile) Apply(req *http.Request) {
	for k, v := range p.Header() {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
}

// Pool rotates header profiles using atomic round-robin selection.
type Pool struct {
	profiles []Profile
	counter  atomic.Uint64
}

// NewPool creates a Pool with one profile per user agent.
// At least one user agent is required.
func NewPool(userAgents []string) (*Pool, error) {
	var profiles []Profile
	for _, ua := range userAgents {
		ua = strings.TrimSpace(ua)
		if ua == "" {
			continue
		}
		profiles = append(profiles, Profile{UserAgent: ua})
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("headers: at least one user agent is required")
	}
	slog.Debug("header pool initialised", "profiles", len(profiles))
	return &Pool{profiles: profiles}, nil
}

// Default returns a Pool over DefaultUserAgents.
func Default() *Pool {
	p, _ := NewPool(DefaultUserAgents)
	return p
}

// Next returns the next profile using round-robin selection.
// This is safe for concurrent use.
func (p *Pool) Next() Profile {
	idx := p.counter.Add(1) - 1
	return p.profiles[idx%uint64(len(p.profiles))]
}

// Len returns the number of profiles in the pool.
func (p *Pool) Len() int {
	return len(p.profiles)
}
