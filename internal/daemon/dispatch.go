package daemon

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"regexp"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ianremillard/botty/internal/agent"
	"github.com/ianremillard/botty/internal/bus"
	"github.com/ianremillard/botty/internal/proto"
	"github.com/ianremillard/botty/internal/registry"
	"github.com/ianremillard/botty/internal/screen"
	"github.com/ianremillard/botty/internal/transcript"
)

// handleConn services one accepted connection end to end (spec §4.6):
// read exactly one Request, then reply either a single Response line or
// promote to a stream/raw-byte connection, per Kind. Each connection
// gets a short correlation id for log lines, the same shape the bus
// uses for subscription ids (SPEC_FULL.md §11).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()[:8]
	defer func() {
		if r := recover(); r != nil {
			log.Printf("conn %s: recovered from panic in handler: %v", connID, r)
		}
	}()

	scanner := proto.NewScanner(conn)
	req, err := proto.ReadRequest(scanner)
	if err != nil {
		if err != io.EOF {
			log.Printf("conn %s: read request: %v", connID, err)
		}
		return
	}

	if err := s.dispatch(conn, scanner, req, connID); err != nil {
		log.Printf("conn %s: %s: %v", connID, req.Kind, err)
	}
}

func (s *Server) dispatch(conn net.Conn, scanner *bufio.Scanner, req proto.Request, connID string) error {
	switch req.Kind {
	case proto.ReqPing:
		return proto.WriteLine(conn, proto.Ok())
	case proto.ReqSpawn:
		return s.handleSpawn(conn, req)
	case proto.ReqList:
		return s.handleList(conn, req)
	case proto.ReqSend:
		return s.handleSend(conn, req)
	case proto.ReqSendBytes:
		return s.handleSendBytes(conn, req)
	case proto.ReqSnapshot:
		return s.handleSnapshot(conn, req)
	case proto.ReqTail:
		return s.handleTail(conn, req, connID)
	case proto.ReqDump:
		return s.handleDump(conn, req)
	case proto.ReqSubscribe:
		return s.handleSubscribe(conn, req, connID)
	case proto.ReqEvents:
		return s.handleEvents(conn, req, connID)
	case proto.ReqWait:
		return s.handleWait(conn, req)
	case proto.ReqKill:
		return s.handleKill(conn, req)
	case proto.ReqResize:
		return s.handleResize(conn, req)
	case proto.ReqAttach:
		return s.handleAttach(conn, scanner, req, connID)
	case proto.ReqShutdown:
		return s.handleShutdown(conn)
	case proto.ReqGc:
		return s.handleGc(conn)
	default:
		return proto.WriteLine(conn, proto.Err(proto.ErrUsage, "unknown request kind: "+req.Kind))
	}
}

func (s *Server) handleSpawn(conn net.Conn, req proto.Request) error {
	a, serr := s.spawn(req)
	if serr != nil {
		return proto.WriteLine(conn, proto.Err(serr.kind, serr.Error()))
	}
	return proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, ID: a.ID})
}

// handleList implements `list [--all] [--label L]` (spec §6). Labels
// reuses the Spawn request's Labels field as a filter set (match any);
// All controls whether Exited agents are included.
func (s *Server) handleList(conn net.Conn, req proto.Request) error {
	infos := make([]proto.AgentInfo, 0)
	for _, a := range s.reg.All() {
		if !req.All && a.State() == agent.Exited {
			continue
		}
		if len(req.Labels) > 0 && !anyLabelMatches(req.Labels, a.Labels) {
			continue
		}
		infos = append(infos, agentInfo(a))
	}
	return proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, Agents: infos})
}

func anyLabelMatches(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func agentInfo(a *agent.Agent) proto.AgentInfo {
	rows, cols := a.Size()
	started, exited := a.Times()
	exit := a.Exit()
	info := proto.AgentInfo{
		ID:         a.ID,
		PID:        a.PID(),
		Argv:       a.Argv,
		Labels:     a.Labels,
		Rows:       rows,
		Cols:       cols,
		State:      a.State().String(),
		ExitCode:   exit.Code,
		ExitSignal: exit.Signal,
		ExitReason: exit.Reason,
		StartedAt:  started.Unix(),
	}
	if !exited.IsZero() {
		info.ExitedAt = exited.Unix()
	}
	return info
}

func (s *Server) resolveOne(id string) (*agent.Agent, error) {
	a, ok := s.reg.Get(id)
	if !ok {
		return nil, errAgentNotFound
	}
	return a, nil
}

func (s *Server) handleSend(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	if err := a.Send(req.Text, req.AppendNewline); err != nil {
		return proto.WriteLine(conn, proto.Err(proto.ErrBrokenPipe, err.Error()))
	}
	return proto.WriteLine(conn, proto.Ok())
}

func (s *Server) handleSendBytes(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	if err := a.SendBytes(req.Bytes); err != nil {
		return proto.WriteLine(conn, proto.Err(proto.ErrBrokenPipe, err.Error()))
	}
	return proto.WriteLine(conn, proto.Ok())
}

func (s *Server) handleSnapshot(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	if req.Format == "cells" {
		cells := a.Screen.SnapshotCells()
		return proto.WriteLine(conn, proto.Response{
			Kind: proto.RespOK,
			Text: cellsToText(cells), // a plain character dump; cmd/botty prints it as is
			Rows: cells.Rows,
			Cols: cells.Cols,
		})
	}
	opts := screen.SnapshotOptions{Normalize: req.Normalize}
	text := a.Screen.SnapshotText(opts)
	rows, cols := a.Screen.Size()
	return proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, Text: text, Rows: rows, Cols: cols})
}

// cellsToText is a minimal plain-text rendering of a structured cell
// grid, used only so Snapshot{format:"cells"} has something to put in
// Response.Text without inventing a second structured wire type. It
// carries no attributes; a client that wants them requests format
// "text" without normalization, which keeps the SGR escapes (see
// DESIGN.md).
func cellsToText(cg screen.CellGrid) string {
	out := make([]byte, 0, cg.Rows*(cg.Cols+1))
	for _, row := range cg.Cells {
		for _, c := range row {
			r := c.Rune
			if r == 0 {
				r = ' '
			}
			out = append(out, []byte(string(r))...)
		}
		out = append(out, '\n')
	}
	return string(out)
}

func (s *Server) handleDump(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	off := transcript.Offset{Pos: int64(req.Since)}
	data, _, truncated := a.TranscriptSince(off)
	if req.Format != "raw" {
		data = stripSGRBytes(data)
	}
	resp := proto.Response{Kind: proto.RespOK, Bytes: data}
	if truncated {
		resp.Text = "truncated"
	}
	return proto.WriteLine(conn, resp)
}

func (s *Server) handleWait(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	pred, err := toAgentPredicate(req.Predicate)
	if err != nil {
		return proto.WriteLine(conn, proto.Err(proto.ErrUsage, err.Error()))
	}
	res := a.Wait(pred, secondsToDuration(req.TimeoutS))

	switch {
	case res.Matched:
		return proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, Outcome: "matched"})
	case res.Exited:
		resp := proto.Response{Kind: proto.RespOK, Outcome: "exited"}
		if res.Exit != nil {
			resp.Reason = res.Exit.Reason
		}
		return proto.WriteLine(conn, resp)
	default:
		return proto.WriteLine(conn, proto.Err(proto.ErrWaitUnsatisfied, "wait timed out"))
	}
}

func (s *Server) handleKill(conn net.Conn, req proto.Request) error {
	sel, err := toRegistrySelector(req.Selector)
	if err != nil {
		return proto.WriteLine(conn, proto.Err(proto.ErrUsage, err.Error()))
	}
	sig := syscall.Signal(req.Signal)
	if sig == 0 {
		sig = syscall.SIGKILL
	}
	for _, a := range s.reg.Resolve(sel) {
		a.Kill(sig) // spec §4.9: kill with an empty/already-exited selection is still Ok
	}
	return proto.WriteLine(conn, proto.Ok())
}

func (s *Server) handleResize(conn net.Conn, req proto.Request) error {
	a, err := s.resolveOne(req.ID)
	if err != nil {
		return proto.WriteLine(conn, notFound())
	}
	if err := a.Resize(req.Rows, req.Cols, req.ClearTranscript); err != nil {
		return proto.WriteLine(conn, proto.Err(proto.ErrPtyError, err.Error()))
	}
	return proto.WriteLine(conn, proto.Ok())
}

func (s *Server) handleShutdown(conn net.Conn) error {
	if err := proto.WriteLine(conn, proto.Ok()); err != nil {
		return err
	}
	go s.Shutdown()
	return nil
}

func (s *Server) handleGc(conn net.Conn) error {
	n := s.reg.Gc()
	return proto.WriteLine(conn, proto.Response{Kind: proto.RespOK, Version: uint64(n)})
}

// --- conversions between the wire protocol and internal types ---

var errAgentNotFound = errors.New("agent not found")

func notFound() proto.Response {
	return proto.Err(proto.ErrAgentNotFound, "agent not found")
}

func toRegistrySelector(sel *proto.Selector) (registry.Selector, error) {
	if sel == nil {
		return registry.Selector{}, nil
	}
	out := registry.Selector{ID: sel.ID, Label: sel.Label, All: sel.All}
	if sel.ProcMatch != "" {
		re, err := regexp.Compile(sel.ProcMatch)
		if err != nil {
			return registry.Selector{}, err
		}
		out.ProcMatch = re
	}
	return out, nil
}

func toAgentPredicate(p proto.Predicate) (agent.Predicate, error) {
	var out agent.Predicate
	out.Contains = p.Contains
	if p.Regex != "" {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return out, err
		}
		out.Regex = re
	}
	if p.StableMS > 0 {
		out.StableFor = time.Duration(p.StableMS) * time.Millisecond
	}
	return out, nil
}

func toBusFilter(f proto.Filter) bus.Filter {
	return bus.Filter{IDs: f.IDs, Labels: f.Labels, Kinds: f.Kinds}
}

func toProtoEvent(e bus.Event) proto.Event {
	out := proto.Event{
		Kind:    string(e.Kind),
		AgentID: e.AgentID,
		At:      e.At.Unix(),
		ExitCode: e.ExitCode,
		ExitSig:  e.ExitSignal,
		ExitRsn:  e.ExitReason,
	}
	if e.Kind == bus.KindOutput {
		out.Bytes = e.Data
	}
	return out
}

func stripSGRBytes(b []byte) []byte {
	return sgrStripRE.ReplaceAll(b, nil)
}

var sgrStripRE = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
