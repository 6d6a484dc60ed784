// Package registry is botty's id/name/label index over live and exited
// Agents: name validation and auto-generated handles, Selector
// resolution, and garbage collection of exited agents (spec §4.9).
package registry

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/ianremillard/botty/internal/agent"
	"github.com/ianremillard/botty/internal/wordlist"
)

var nameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidateName reports whether name meets spec §3's id rule: lowercase
// alphanumerics and hyphens, 1-64 chars.
func ValidateName(name string) bool {
	return nameRE.MatchString(name)
}

// Selector addresses one or more agents (spec §4.9).
type Selector struct {
	ID        string // exact id/name match
	Label     string // all live agents tagged with this label
	ProcMatch *regexp.Regexp
	All       bool
}

// Registry owns every Agent by value (by reference, but exclusively):
// every other subsystem holds a revocable id, never a raw pointer,
// consistent with spec §4 ("Ownership: the Registry owns Agents by
// value... a handle that no longer resolves yields AgentNotFound").
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	rng    *rand.Rand
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		agents: make(map[string]*agent.Agent),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ErrNameInUse is returned by Reserve when the requested name collides
// with an agent still in the registry: a live one, or an exited one not
// yet removed by Gc.
var ErrNameInUse = fmt.Errorf("name already in use")

// Reserve validates (or generates) an id for a new agent and reserves a
// placeholder slot for it, so callers can start the underlying process
// knowing the id won't be claimed by a racing spawn. Call Add once the
// Agent is constructed, or Release if construction failed.
func (r *Registry) Reserve(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if !ValidateName(name) {
			return "", fmt.Errorf("invalid name %q: must be lowercase alphanumerics/hyphens, 1-64 chars", name)
		}
		if _, exists := r.agents[name]; exists {
			return "", ErrNameInUse
		}
		r.agents[name] = nil
		return name, nil
	}

	capacity := wordlist.Capacity()
	for attempt := 0; attempt < capacity*2 && attempt < 10000; attempt++ {
		h := wordlist.Handle(r.rng)
		if _, exists := r.agents[h]; !exists {
			r.agents[h] = nil
			return h, nil
		}
	}
	return "", fmt.Errorf("could not find a free auto-generated handle")
}

// Release undoes a Reserve whose Agent construction failed.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.agents[id]; ok && v == nil {
		delete(r.agents, id)
	}
}

// Add installs a constructed Agent into a slot previously returned by
// Reserve.
func (r *Registry) Add(a *agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// Get resolves a single id/name to its Agent, or reports not-found.
func (r *Registry) Get(id string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok && a != nil
}

// All returns every known agent (including exited ones still retained
// for `list --all`).
func (r *Registry) All() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Resolve applies a Selector and returns the matching agents. Per spec
// §4.9: ids/names are exact; a label selects all live agents tagged
// with it; proc_match matches argv[0]'s basename; All matches
// everything. An empty, non-All Selector (no ID/Label/ProcMatch set)
// resolves to no agents.
func (r *Registry) Resolve(sel Selector) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sel.All {
		out := make([]*agent.Agent, 0, len(r.agents))
		for _, a := range r.agents {
			if a != nil {
				out = append(out, a)
			}
		}
		return out
	}

	if sel.ID != "" {
		if a, ok := r.agents[sel.ID]; ok && a != nil {
			return []*agent.Agent{a}
		}
		return nil
	}

	if sel.Label != "" {
		var out []*agent.Agent
		for _, a := range r.agents {
			if a == nil || a.State() == agent.Exited {
				continue
			}
			for _, l := range a.Labels {
				if l == sel.Label {
					out = append(out, a)
					break
				}
			}
		}
		return out
	}

	if sel.ProcMatch != nil {
		var out []*agent.Agent
		for _, a := range r.agents {
			if a == nil || len(a.Argv) == 0 {
				continue
			}
			if sel.ProcMatch.MatchString(basename(a.Argv[0])) {
				out = append(out, a)
			}
		}
		return out
	}

	return nil
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Gc removes every Exited agent from the registry and returns how many
// were dropped. Live agents are left untouched.
func (r *Registry) Gc() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, a := range r.agents {
		if a != nil && a.State() == agent.Exited {
			delete(r.agents, id)
			n++
		}
	}
	return n
}

// LiveCount returns the number of live (non-Exited) agents, used by the
// orchestrator's --exit-when-empty policy.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.agents {
		if a != nil && a.State() != agent.Exited {
			n++
		}
	}
	return n
}
