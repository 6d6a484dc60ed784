package daemon

import (
	"net"

	"github.com/ianremillard/botty/internal/bus"
	"github.com/ianremillard/botty/internal/proto"
	"github.com/ianremillard/botty/internal/transcript"
)

// watchDisconnect returns a channel closed once conn's read side returns
// an error (the client closed its socket, or sent unexpected bytes).
// The streaming handlers (tail -f, subscribe, events) use this to cancel
// promptly on client disconnect per spec §5's cancellation
// rule: "Client disconnects cancel any streaming request."
func watchDisconnect(conn net.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()
	return done
}

// handleTail implements the tail request (N, Follow, SinceVersion, Raw)
// behind `tail ID [-n N] [-f] [--replay] [--raw]` (spec §6). Without Follow it replies a single stream with the
// requested slice of transcript bytes then an end marker; with Follow it
// keeps streaming new Output events for this agent until the client
// disconnects or the agent exits.
func (s *Server) handleTail(conn net.Conn, req proto.Request, connID string) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}

	var initial []byte
	switch {
	case req.SinceVersion > 0:
		off, _ := a.TranscriptOffsetAtVersion(a.TranscriptEpoch(), req.SinceVersion)
		initial, _, _ = a.TranscriptSince(off)
	case req.N > 0:
		full, _ := a.TranscriptSnapshot()
		initial = lastNLines(full, req.N)
	default:
		initial, _, _ = a.TranscriptSince(transcript.Offset{})
	}
	if !req.Raw {
		initial = stripSGRBytes(initial)
	}

	if err := proto.WriteLine(conn, proto.Response{Kind: proto.RespStream, StreamOf: "tail"}); err != nil {
		return err
	}
	if len(initial) > 0 {
		if err := proto.WriteLine(conn, proto.StreamItem{Kind: "output", AgentID: a.ID, Data: initial}); err != nil {
			return err
		}
	}
	if !req.Follow {
		return proto.WriteLine(conn, proto.StreamItem{Kind: "end"})
	}

	subID, ch := s.bus.Subscribe(bus.Filter{IDs: []string{a.ID}, Kinds: []string{"output", "exited"}}, bus.DefaultQueueSize)
	defer s.bus.Unsubscribe(subID)

	disconnected := watchDisconnect(conn)
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return proto.WriteLine(conn, proto.StreamItem{Kind: "end"})
			}
			if item.Event.Kind == bus.KindOutput {
				data := item.Event.Data
				if !req.Raw {
					data = stripSGRBytes(data)
				}
				if err := proto.WriteLine(conn, proto.StreamItem{Kind: "output", AgentID: a.ID, Data: data, Lagged: item.Lagged}); err != nil {
					return err
				}
			} else {
				return proto.WriteLine(conn, proto.StreamItem{Kind: "end"})
			}
		case <-disconnected:
			return nil
		}
	}
}

// handleSubscribe implements Subscribe{filter, include_output, format}
// (spec §4.6): a long-lived stream of lifecycle and (optionally) output
// events matching filter, server-side filtered (spec §4.5).
func (s *Server) handleSubscribe(conn net.Conn, req proto.Request, connID string) error {
	filter := toBusFilter(req.Filter)
	if len(filter.Kinds) == 0 {
		filter.Kinds = []string{"spawned", "exited"}
		if req.IncludeOutput {
			filter.Kinds = append(filter.Kinds, "output")
		}
	} else if !req.IncludeOutput {
		filter.Kinds = removeKind(filter.Kinds, "output")
	}

	subID, ch := s.bus.Subscribe(filter, bus.DefaultQueueSize)
	defer s.bus.Unsubscribe(subID)

	if err := proto.WriteLine(conn, proto.Response{Kind: proto.RespStream, StreamOf: "subscribe"}); err != nil {
		return err
	}
	return pumpEvents(conn, ch, watchDisconnect(conn))
}

// handleEvents implements Events{filter}: lifecycle only, Output events
// are excluded regardless of the filter supplied (spec §4.6: "Events{filter}
// (lifecycle only)").
func (s *Server) handleEvents(conn net.Conn, req proto.Request, connID string) error {
	filter := toBusFilter(req.Filter)
	filter.Kinds = removeKind(filter.Kinds, "output")
	if len(filter.Kinds) == 0 {
		filter.Kinds = []string{"spawned", "exited"}
	}

	subID, ch := s.bus.Subscribe(filter, bus.DefaultQueueSize)
	defer s.bus.Unsubscribe(subID)

	if err := proto.WriteLine(conn, proto.Response{Kind: proto.RespStream, StreamOf: "events"}); err != nil {
		return err
	}
	return pumpEvents(conn, ch, watchDisconnect(conn))
}

func pumpEvents(conn net.Conn, ch <-chan bus.Item, disconnected <-chan struct{}) error {
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return proto.WriteLine(conn, proto.StreamItem{Kind: "end"})
			}
			ev := toProtoEvent(item.Event)
			if err := proto.WriteLine(conn, proto.StreamItem{Kind: "event", Event: &ev, Lagged: item.Lagged}); err != nil {
				return err
			}
		case <-disconnected:
			return nil
		}
	}
}

func removeKind(kinds []string, drop string) []string {
	out := kinds[:0]
	for _, k := range kinds {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}

// lastNLines returns the last n newline-delimited lines of data,
// including a trailing partial line if one is in progress.
func lastNLines(data []byte, n int) []byte {
	if n <= 0 || len(data) == 0 {
		return nil
	}
	count := 0
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] == '\n' {
			count++
			if count > n {
				return data[i+1:]
			}
		}
	}
	return data
}
