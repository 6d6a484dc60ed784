package daemon

import (
	"bufio"
	"log"
	"net"
	"sync"

	"github.com/ianremillard/botty/internal/bus"
	"github.com/ianremillard/botty/internal/proto"
)

// handleAttach implements the Attach bridge (spec §4.7): after a single
// JSON handshake line, the connection drops framing entirely in favor
// of raw full-duplex bytes between the client and the agent's PTY
// master. The initial payload is render_full_screen()'s self-contained
// escape sequence, so a client attaching mid-session sees the current
// UI immediately rather than waiting for new output. The server never
// parses a detach sequence; detach is purely a client-side convention
// (closing its socket is what the server actually observes).
func (s *Server) handleAttach(conn net.Conn, scanner *bufio.Scanner, req proto.Request, connID string) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}

	rows, cols := a.Size()
	if err := proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, Rows: rows, Cols: cols}); err != nil {
		return err
	}
	if _, err := conn.Write(a.Screen.RenderFullScreen()); err != nil {
		return err
	}

	subID, ch := s.bus.Subscribe(bus.Filter{IDs: []string{a.ID}, Kinds: []string{"output", "exited"}}, bus.DefaultQueueSize)
	defer s.bus.Unsubscribe(subID)

	done := make(chan struct{})
	var closeOnce sync.Once
	signalDone := func() { closeOnce.Do(func() { close(done) }) }

	if req.Readonly {
		// Still drain the socket so a dead/closed client is detected
		// promptly rather than leaking the bridge goroutine forever.
		go func() {
			discard := make([]byte, 256)
			for {
				if _, err := conn.Read(discard); err != nil {
					signalDone()
					return
				}
			}
		}()
	} else {
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := conn.Read(buf)
				if n > 0 && !a.WriteRawNonBlocking(append([]byte(nil), buf[:n]...)) {
					log.Printf("conn %s: attach input to %s dropped (write in flight)", connID, a.ID)
				}
				if err != nil {
					signalDone()
					return
				}
			}
		}()
	}

	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return nil
			}
			if item.Event.Kind != bus.KindOutput {
				return nil // agent exited; bridge ends, child's exit is independent of detach
			}
			if _, err := conn.Write(item.Event.Data); err != nil {
				return err
			}
		case <-done:
			return nil
		}
	}
}
