// Package daemon implements bottyd: the long-lived process that owns
// every agent PTY, multiplexes framed requests with PTY I/O over a Unix
// domain socket, and coordinates lifecycle (spec §4.6, §4.8).
//
// Each request is a single newline-terminated JSON object; the daemon
// replies with either a single Response line (connection then closes)
// or a Response{Kind:"stream"} line followed by any number of
// StreamItem lines (tail/subscribe/events), or — for Attach only —
// drops JSON framing entirely in favor of a raw full-duplex byte pipe
// (see attach.go).
package daemon

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ianremillard/botty/internal/bus"
	"github.com/ianremillard/botty/internal/config"
	"github.com/ianremillard/botty/internal/registry"
)

// Server is the central supervisor: one Registry, one event Bus, the
// listener, and the draining/shutdown state.
type Server struct {
	cfg config.Config
	reg *registry.Registry
	bus *bus.Bus

	mu       sync.Mutex
	draining bool
	listener net.Listener

	liveConns sync.WaitGroup
	shutdown  chan struct{}
	closeOnce sync.Once

	nextSpawnID uint64 // monotonic counter disambiguating concurrent spawn logs
}

// New returns a Server ready to Run.
func New(cfg config.Config) *Server {
	return &Server{
		cfg:      cfg,
		reg:      registry.New(),
		bus:      bus.New(),
		shutdown: make(chan struct{}),
	}
}

// Run listens on socketPath and serves connections until Shutdown is
// called (by a shutdown request, bottyd's signal handler, or the
// exit-when-empty watcher). It removes a stale
// socket at the same path before listening, matching the teacher's
// daemon startup, and unlinks the socket again on return.
func (s *Server) Run(socketPath string) error {
	os.Remove(socketPath)

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("chmod %s: %w", socketPath, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	defer os.Remove(socketPath)

	log.Printf("bottyd listening on %s", socketPath)

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.liveConns.Wait()
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.liveConns.Add(1)
		go func() {
			defer s.liveConns.Done()
			s.handleConn(conn)
		}()
	}
}

// isDraining reports whether the server has begun shutting down and
// should refuse new spawns (spec §4.8).
func (s *Server) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Shutdown transitions the server to draining, kills every live agent,
// and closes the listener so Run returns once in-flight connections
// finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.draining = true
	l := s.listener
	s.mu.Unlock()

	for _, a := range s.reg.All() {
		a.Kill(9) // SIGKILL; reap observed via a.Done()
	}
	for _, a := range s.reg.All() {
		<-a.Done()
	}

	s.closeOnce.Do(func() { close(s.shutdown) })
	if l != nil {
		l.Close()
	}
}

// ExitWhenEmptyWatch polls the registry's live-agent count and calls
// Shutdown once it has seen at least one agent and then drops back to
// zero. Only started when --exit-when-empty is set at startup (spec
// §4.8: the server never exits on an empty agent set otherwise).
func (s *Server) ExitWhenEmptyWatch(poll time.Duration) {
	sawAgent := false
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			n := s.reg.LiveCount()
			if n > 0 {
				sawAgent = true
			} else if sawAgent {
				s.Shutdown()
				return
			}
		}
	}
}

func (s *Server) nextID() uint64 {
	return atomic.AddUint64(&s.nextSpawnID, 1)
}

// currentEnviron returns the daemon's own environment, the default a
// spawned agent inherits when a request doesn't override it.
func currentEnviron() []string {
	return os.Environ()
}
