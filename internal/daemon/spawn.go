package daemon

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ianremillard/botty/internal/agent"
	"github.com/ianremillard/botty/internal/proto"
	"github.com/ianremillard/botty/internal/registry"
)

// spawnError pairs an ErrKind (spec §7) with a message, so handleSpawn
// can turn it directly into a Response without the caller re-deriving
// which kind applies.
type spawnError struct {
	kind string
	err  error
}

func (e *spawnError) Error() string { return e.err.Error() }

// spawn implements Request{Kind: spawn} end to end: name reservation,
// dependency gating (--after/--wait-for, spec §4.8), process start, and
// registry installation. It never returns a half-registered agent: on
// any failure past Reserve it releases the name back to the registry.
func (s *Server) spawn(req proto.Request) (*agent.Agent, *spawnError) {
	if s.isDraining() {
		return nil, &spawnError{proto.ErrUsage, fmt.Errorf("server is shutting down, refusing new spawns")}
	}
	if len(req.Argv) == 0 {
		return nil, &spawnError{proto.ErrUsage, fmt.Errorf("spawn requires a non-empty argv")}
	}

	id, err := s.reg.Reserve(req.Name)
	if err != nil {
		if err == registry.ErrNameInUse {
			return nil, &spawnError{proto.ErrNameInUse, err}
		}
		return nil, &spawnError{proto.ErrUsage, err}
	}

	if err := s.waitForDeps(req); err != nil {
		s.reg.Release(id)
		return nil, &spawnError{proto.ErrTimeout, err}
	}

	rows, cols := req.Rows, req.Cols
	if rows <= 0 {
		rows = s.cfg.DefaultRows
	}
	if cols <= 0 {
		cols = s.cfg.DefaultCols
	}

	env := envSlice(req.Env)
	limits := agent.Limits{
		Timeout:   time.Duration(req.TimeoutS * float64(time.Second)),
		MaxOutput: req.MaxOutput,
	}

	a, err := agent.New(id, req.Argv, env, req.Labels, rows, cols, limits, s.cfg.TranscriptCapacity, s.bus)
	if err != nil {
		s.reg.Release(id)
		return nil, &spawnError{proto.ErrSpawnFailed, err}
	}
	s.reg.Add(a)

	n := s.nextID()
	log.Printf("spawn#%d: agent %s pid=%d argv=%v", n, a.ID, a.PID(), a.Argv)

	return a, nil
}

// waitForDeps blocks until every dependency named in req.After has
// exited and, if req.WaitFor is set ("name:pattern"), until that
// agent's transcript contains pattern (spec §4.8); a --wait-for
// dependency that exits without ever printing pattern fails the spawn.
// It has no timeout of
// its own; a stuck dependency blocks spawn indefinitely, matching "block
// spawn until all reach Exited" in spec.md with no stated deadline.
func (s *Server) waitForDeps(req proto.Request) error {
	for _, dep := range req.After {
		a, ok := s.reg.Get(dep)
		if !ok {
			return fmt.Errorf("--after dependency %q not found", dep)
		}
		<-a.Done()
	}

	if req.WaitFor == "" {
		return nil
	}
	name, pattern, ok := strings.Cut(req.WaitFor, ":")
	if !ok || name == "" || pattern == "" {
		return fmt.Errorf("--wait-for must be NAME:PATTERN, got %q", req.WaitFor)
	}
	a, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("--wait-for dependency %q not found", name)
	}
	res := a.Wait(agent.Predicate{Contains: pattern}, 0)
	if res.Matched {
		return nil
	}
	// Wait reports Exited without re-checking the predicate once the
	// dependency is gone, so look at what it left in its transcript.
	if data, _ := a.TranscriptSnapshot(); strings.Contains(string(data), pattern) {
		return nil
	}
	return fmt.Errorf("--wait-for %s never matched", req.WaitFor)
}

// envSlice turns a map[string]string into the []string "KEY=VALUE" form
// os/exec expects. An empty/nil map means "inherit the daemon's own
// environment", matching the teacher's instance spawn behavior.
func envSlice(m map[string]string) []string {
	if len(m) == 0 {
		return currentEnviron()
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
