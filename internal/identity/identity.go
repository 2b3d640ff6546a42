// Package identity chooses the client identity (User-Agent) attached to each
// outbound request. Rotation is a courtesy against naive blocking, not part
// of the collection algorithm, so it is injected as a policy.
package identity

import (
	"math/rand/v2"
	"net/http"
	"sync"
)

// DefaultUserAgents is the fixed rotation set used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
}

// Random picks a user agent uniformly at random per call.
type Random struct {
	agents []string
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewRandom builds a Random policy. An empty list falls back to
// DefaultUserAgents.
func NewRandom(agents []string) *Random {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &Random{
		agents: append([]string(nil), agents...),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Headers returns a fresh header set with a randomly chosen User-Agent.
func (r *Random) Headers() http.Header {
	r.mu.Lock()
	agent := r.agents[r.rng.IntN(len(r.agents))]
	r.mu.Unlock()
	return userAgent(agent)
}

// RoundRobin cycles through the agents in order. Tests use it for
// deterministic identities.
type RoundRobin struct {
	agents []string
	mu     sync.Mutex
	next   int
}

// NewRoundRobin builds a RoundRobin policy.
func NewRoundRobin(agents ...string) *RoundRobin {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &RoundRobin{agents: append([]string(nil), agents...)}
}

// Headers returns the next agent in the cycle.
func (r *RoundRobin) Headers() http.Header {
	r.mu.Lock()
	agent := r.agents[r.next%len(r.agents)]
	r.next++
	r.mu.Unlock()
	return userAgent(agent)
}

func userAgent(agent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", agent)
	return h
}
