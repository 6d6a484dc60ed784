// botty – the CLI client for bottyd, the PTY server.
//
// Usage:
//
//	botty spawn [--name N] [--label L ...] [--timeout T] [--max-output N]
//	            [--after A ...] [--wait-for A:P] [--rows R --cols C] -- CMD...
//	botty list [--all] [--label L] [--format toon|json]
//	botty send ID TEXT
//	botty send-bytes ID --hex HEX
//	botty tail ID [-n N] [-f] [--replay] [--raw]
//	botty snapshot ID [--raw] [--format text|cells]
//	botty wait ID [--contains S] [--regex R] [--stable MS] [--timeout S]
//	botty kill [ID|--label L|--proc R|--all] [--term|-9]
//	botty attach ID [--readonly]
//	botty events [--output]
//	botty subscribe [--id ID ...] [--label L ...] [--kind K ...] [--output]
//	botty resize ID --rows R --cols C [--clear]
//	botty shutdown
//	botty ping
//	botty doctor
//	botty gc
//
// botty starts bottyd automatically if it is not already reachable at
// the resolved socket path. Detach from an attached session with
// Ctrl-] (0x1D); the server itself never parses a detach sequence.
package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ianremillard/botty/internal/proto"
	"golang.org/x/term"
)

// exit codes (spec §6).
const (
	exitOK            = 0
	exitOther         = 1
	exitUsage         = 2
	exitAgentNotFound = 3
	exitWaitTimeout   = 4
	exitServerUnreach = 5
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "spawn":
		code = cmdSpawn(os.Args[2:])
	case "list":
		code = cmdList(os.Args[2:])
	case "send":
		code = cmdSend(os.Args[2:])
	case "send-bytes":
		code = cmdSendBytes(os.Args[2:])
	case "tail":
		code = cmdTail(os.Args[2:])
	case "snapshot":
		code = cmdSnapshot(os.Args[2:])
	case "wait":
		code = cmdWait(os.Args[2:])
	case "kill":
		code = cmdKill(os.Args[2:])
	case "attach":
		code = cmdAttach(os.Args[2:])
	case "events":
		code = cmdEvents(os.Args[2:])
	case "subscribe":
		code = cmdSubscribe(os.Args[2:])
	case "resize":
		code = cmdResize(os.Args[2:])
	case "shutdown":
		code = cmdShutdown()
	case "ping":
		code = cmdPing()
	case "doctor":
		code = cmdDoctor()
	case "gc":
		code = cmdGc()
	default:
		fmt.Fprintf(os.Stderr, "botty: unknown command %q\n", os.Args[1])
		usage()
		code = exitUsage
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, `botty – drive and observe agent PTY sessions

  spawn [--name N] [--label L ...] [--timeout T] [--max-output N]
        [--after A ...] [--wait-for A:P] [--rows R --cols C] -- CMD...
  list [--all] [--label L] [--format toon|json]
  send ID TEXT
  send-bytes ID --hex HEX
  tail ID [-n N] [-f] [--replay] [--raw]
  snapshot ID [--raw] [--format text|cells]
  wait ID [--contains S] [--regex R] [--stable MS] [--timeout S]
  kill [ID|--label L|--proc R|--all] [--term|-9]
  attach ID [--readonly]
  events [--output]
  subscribe [--id ID ...] [--label L ...] [--kind K ...] [--output]
  resize ID --rows R --cols C [--clear]
  shutdown
  ping
  doctor
  gc`)
}

// ─── Spawn ──────────────────────────────────────────────────────────────────

// stringSlice is a repeatable string flag (--label a --label b).
type stringSlice []string

func (s *stringSlice) String() string { return "" }
func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// splitLeadingID peels off a leading positional ID argument, if one is
// present, before the remaining tokens are handed to flag.FlagSet.Parse.
// Parse stops scanning at the first non-flag argument, so for any
// subcommand documented as `ID [--flag ...]` (wait, kill, resize, tail,
// snapshot, send-bytes, attach) a naive fs.Parse(args) would treat every
// flag after the ID as leftover positional args instead of parsing them.
func splitLeadingID(args []string) (id string, rest []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func cmdSpawn(args []string) int {
	fs := flag.NewFlagSet("spawn", flag.ContinueOnError)
	name := fs.String("name", "", "agent name (defaults to a generated handle)")
	var labels stringSlice
	fs.Var(&labels, "label", "label to tag the agent with (repeatable)")
	timeoutS := fs.Float64("timeout", 0, "kill the agent T seconds after spawn")
	maxOutput := fs.Int64("max-output", 0, "exit the agent once its transcript exceeds N bytes")
	var after stringSlice
	fs.Var(&after, "after", "block spawn until dependency A has exited (repeatable)")
	waitFor := fs.String("wait-for", "", "block spawn until A's transcript contains P, as A:P")
	rows := fs.Int("rows", 0, "initial PTY rows")
	cols := fs.Int("cols", 0, "initial PTY cols")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: botty spawn [--name N] [--label L ...] [--timeout T] [--max-output N] [--after A ...] [--wait-for A:P] [--rows R --cols C] -- CMD...")
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	argv := fs.Args()
	for i, a := range argv {
		if a == "--" {
			argv = argv[i+1:]
			break
		}
	}
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "botty: spawn requires a command after --")
		return exitUsage
	}

	resp, code := mustRequest(proto.Request{
		Kind:      proto.ReqSpawn,
		Name:      *name,
		Labels:    labels,
		Argv:      argv,
		After:     after,
		WaitFor:   *waitFor,
		TimeoutS:  *timeoutS,
		MaxOutput: *maxOutput,
		Rows:      *rows,
		Cols:      *cols,
	})
	if code != exitOK {
		return code
	}
	fmt.Println(resp.ID)
	return exitOK
}

// ─── List ───────────────────────────────────────────────────────────────────

func cmdList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	all := fs.Bool("all", false, "include exited agents")
	label := fs.String("label", "", "only show agents tagged with this label")
	format := fs.String("format", "toon", "output format: toon|json")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	req := proto.Request{Kind: proto.ReqList, All: *all}
	if *label != "" {
		req.Labels = []string{*label}
	}
	resp, code := mustRequest(req)
	if code != exitOK {
		return code
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.Encode(resp.Agents)
		return exitOK
	}

	if len(resp.Agents) == 0 {
		fmt.Println("no agents")
		return exitOK
	}
	fmt.Printf("%-10s  %-8s  %-10s  %-20s  %s\n", "ID", "PID", "STATE", "LABELS", "ARGV")
	for _, a := range resp.Agents {
		fmt.Printf("%-10s  %-8d  %-10s  %-20s  %s\n", a.ID, a.PID, a.State, strings.Join(a.Labels, ","), strings.Join(a.Argv, " "))
	}
	return exitOK
}

// ─── Send / send-bytes ─────────────────────────────────────────────────────

func cmdSend(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: botty send ID TEXT")
		return exitUsage
	}
	_, code := mustRequest(proto.Request{
		Kind:          proto.ReqSend,
		ID:            args[0],
		Text:          strings.Join(args[1:], " "),
		AppendNewline: true,
	})
	return code
}

func cmdSendBytes(args []string) int {
	fs := flag.NewFlagSet("send-bytes", flag.ContinueOnError)
	hexStr := fs.String("hex", "", "hex-encoded bytes to write raw to the PTY")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty send-bytes ID --hex HEX") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" || *hexStr == "" {
		fs.Usage()
		return exitUsage
	}
	data, err := hex.DecodeString(*hexStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: bad --hex: %v\n", err)
		return exitUsage
	}
	_, code := mustRequest(proto.Request{Kind: proto.ReqSendBytes, ID: id, Bytes: data})
	return code
}

// ─── Tail ───────────────────────────────────────────────────────────────────

func cmdTail(args []string) int {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	n := fs.Int("n", 0, "show the last N lines of the transcript")
	follow := fs.Bool("f", false, "keep streaming new output")
	fs.BoolVar(follow, "follow", false, "keep streaming new output")
	replay := fs.Bool("replay", false, "replay the full transcript before following")
	raw := fs.Bool("raw", false, "do not strip SGR escape sequences")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty tail ID [-n N] [-f] [--replay] [--raw]") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" {
		fs.Usage()
		return exitUsage
	}

	req := proto.Request{Kind: proto.ReqTail, ID: id, N: *n, Follow: *follow, Raw: *raw}
	if *replay {
		req.N = 0
	}

	conn, code := dial()
	if code != exitOK {
		return code
	}
	defer conn.Close()
	if err := proto.WriteLine(conn, req); err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	scanner := proto.NewScanner(conn)
	resp, err := proto.ReadResponse(scanner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	if resp.Kind == proto.RespErr {
		return reportErr(resp)
	}

	for scanner.Scan() {
		var item proto.StreamItem
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			continue
		}
		switch item.Kind {
		case "output":
			os.Stdout.Write(item.Data)
		case "end":
			return exitOK
		}
	}
	return exitOK
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

func cmdSnapshot(args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	raw := fs.Bool("raw", false, "do not normalize: keep SGR escapes in the snapshot")
	format := fs.String("format", "text", "text|cells")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty snapshot ID [--raw] [--format text|cells]") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" {
		fs.Usage()
		return exitUsage
	}
	resp, code := mustRequest(proto.Request{Kind: proto.ReqSnapshot, ID: id, Format: *format, Normalize: !*raw})
	if code != exitOK {
		return code
	}
	fmt.Print(resp.Text)
	return exitOK
}

// ─── Wait ───────────────────────────────────────────────────────────────────

func cmdWait(args []string) int {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	contains := fs.String("contains", "", "wait until the transcript contains this substring")
	regex := fs.String("regex", "", "wait until the transcript matches this regex")
	stableMS := fs.Int("stable", 0, "wait until output has been quiet for this many milliseconds")
	timeoutS := fs.Float64("timeout", 0, "give up after this many seconds (0: no deadline)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: botty wait ID [--contains S] [--regex R] [--stable MS] [--timeout S]")
	}
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" {
		fs.Usage()
		return exitUsage
	}

	resp, code := mustRequest(proto.Request{
		Kind:     proto.ReqWait,
		ID:       id,
		TimeoutS: *timeoutS,
		Predicate: proto.Predicate{
			Contains: *contains,
			Regex:    *regex,
			StableMS: *stableMS,
		},
	})
	if code != exitOK {
		return code
	}
	fmt.Println(resp.Outcome)
	if resp.Outcome == "exited" && resp.Reason != "" {
		fmt.Fprintln(os.Stderr, "exit reason:", resp.Reason)
	}
	return exitOK
}

// ─── Kill ───────────────────────────────────────────────────────────────────

func cmdKill(args []string) int {
	fs := flag.NewFlagSet("kill", flag.ContinueOnError)
	label := fs.String("label", "", "kill every agent tagged with this label")
	proc := fs.String("proc", "", "kill every agent whose argv[0] matches this regex")
	all := fs.Bool("all", false, "kill every live agent")
	term := fs.Bool("term", false, "send SIGTERM instead of SIGKILL")
	nine := fs.Bool("9", false, "send SIGKILL (the default)")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty kill [ID|--label L|--proc R|--all] [--term|-9]") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	sel := &proto.Selector{}
	switch {
	case *all:
		sel.All = true
	case *label != "":
		sel.Label = *label
	case *proc != "":
		sel.ProcMatch = *proc
	case id != "":
		sel.ID = id
	default:
		fs.Usage()
		return exitUsage
	}

	sig := int(syscall.SIGKILL)
	if *term && !*nine {
		sig = int(syscall.SIGTERM)
	}

	_, code := mustRequest(proto.Request{Kind: proto.ReqKill, Selector: sel, Signal: sig})
	return code
}

// ─── Attach ─────────────────────────────────────────────────────────────────

func cmdAttach(args []string) int {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	readonly := fs.Bool("readonly", false, "do not forward stdin to the agent")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty attach ID [--readonly]") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" {
		fs.Usage()
		return exitUsage
	}

	conn, code := dial()
	if code != exitOK {
		return code
	}
	defer conn.Close()

	if err := proto.WriteLine(conn, proto.Request{Kind: proto.ReqAttach, ID: id, Readonly: *readonly}); err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	// The handshake is the one JSON line; everything after it on this
	// connection is the raw PTY byte stream, so read it with a plain
	// bufio.Reader rather than proto's line Scanner: io.Copy from the
	// same reader afterward then naturally drains whatever the
	// handshake read ahead of the line boundary.
	br := bufio.NewReaderSize(conn, 4096)
	line, err := br.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	var resp proto.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		fmt.Fprintf(os.Stderr, "botty: bad handshake: %v\n", err)
		return exitOther
	}
	if resp.Kind == proto.RespErr {
		return reportErr(resp)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: cannot set raw mode: %v\n", err)
		return exitOther
	}
	defer term.Restore(fd, oldState)

	fmt.Fprintf(os.Stdout, "\r\n[botty] attached to %s  (detach: Ctrl-])\r\n", id)

	done := make(chan struct{}, 1)
	signalDone := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	go func() {
		io.Copy(os.Stdout, br)
		signalDone()
	}()

	if !*readonly {
		go func() {
			buf := make([]byte, 256)
			for {
				n, err := os.Stdin.Read(buf)
				if n > 0 {
					for i := 0; i < n; i++ {
						if buf[i] == 0x1D {
							signalDone()
							return
						}
					}
					conn.Write(buf[:n])
				}
				if err != nil {
					signalDone()
					return
				}
			}
		}()
	}

	<-done
	term.Restore(fd, oldState)
	fmt.Fprintf(os.Stdout, "\n[botty] detached from %s\n", id)
	return exitOK
}

// ─── Events / subscribe ─────────────────────────────────────────────────────

func cmdEvents(args []string) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.Bool("output", false, "unused for events; lifecycle only (see subscribe)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	return pumpStream(proto.Request{Kind: proto.ReqEvents})
}

func cmdSubscribe(args []string) int {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	var ids, labels, kinds stringSlice
	fs.Var(&ids, "id", "only events for this agent id (repeatable)")
	fs.Var(&labels, "label", "only events for agents tagged with this label (repeatable)")
	fs.Var(&kinds, "kind", "only events of this kind (repeatable)")
	includeOutput := fs.Bool("output", false, "include output events, not just lifecycle")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	return pumpStream(proto.Request{
		Kind:          proto.ReqSubscribe,
		Filter:        proto.Filter{IDs: ids, Labels: labels, Kinds: kinds},
		IncludeOutput: *includeOutput,
	})
}

func pumpStream(req proto.Request) int {
	conn, code := dial()
	if code != exitOK {
		return code
	}
	defer conn.Close()
	if err := proto.WriteLine(conn, req); err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	scanner := proto.NewScanner(conn)
	resp, err := proto.ReadResponse(scanner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return exitOther
	}
	if resp.Kind == proto.RespErr {
		return reportErr(resp)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		<-sigCh
		conn.Close()
	}()

	for scanner.Scan() {
		var item proto.StreamItem
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			continue
		}
		if item.Kind == "end" {
			return exitOK
		}
		if item.Event == nil {
			continue
		}
		out, _ := json.Marshal(item.Event)
		fmt.Println(string(out))
	}
	return exitOK
}

// ─── Resize ─────────────────────────────────────────────────────────────────

func cmdResize(args []string) int {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	rows := fs.Int("rows", 0, "new row count")
	cols := fs.Int("cols", 0, "new column count")
	clear := fs.Bool("clear", false, "clear the transcript after resizing")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: botty resize ID --rows R --cols C [--clear]") }
	id, rest := splitLeadingID(args)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if id == "" || *rows <= 0 || *cols <= 0 {
		fs.Usage()
		return exitUsage
	}
	_, code := mustRequest(proto.Request{
		Kind:            proto.ReqResize,
		ID:              id,
		Rows:            *rows,
		Cols:            *cols,
		ClearTranscript: *clear,
	})
	return code
}

// ─── Shutdown / ping / doctor / gc ─────────────────────────────────────────

func cmdShutdown() int {
	_, code := mustRequest(proto.Request{Kind: proto.ReqShutdown})
	return code
}

func cmdPing() int {
	_, code := mustRequest(proto.Request{Kind: proto.ReqPing})
	if code == exitOK {
		fmt.Println("pong")
	}
	return code
}

func cmdGc() int {
	resp, code := mustRequest(proto.Request{Kind: proto.ReqGc})
	if code != exitOK {
		return code
	}
	fmt.Printf("reaped %d agent(s)\n", resp.Version)
	return exitOK
}

// cmdDoctor reports whether bottyd is reachable and, if so, round-trips
// a Ping. It never auto-starts the daemon, unlike every other command,
// so it can tell the difference between "not running" and "running but
// unresponsive".
func cmdDoctor() int {
	socketPath := resolveSocketPath()
	fmt.Printf("socket: %s\n", socketPath)

	if fi, err := os.Stat(socketPath); err != nil {
		fmt.Println("status: not running")
		return exitOK
	} else if fi.Mode().Perm() != 0o600 {
		fmt.Printf("warning: socket permissions are %v, expected 0600\n", fi.Mode().Perm())
	}

	if pingDaemon(socketPath) {
		fmt.Println("status: running")
		return exitOK
	}
	fmt.Println("status: socket present but not responding")
	return exitServerUnreach
}

// ─── Daemon connection plumbing ────────────────────────────────────────────

// resolveSocketPath mirrors bottyd's own resolution so the CLI and
// server always agree on where the socket lives (spec §6).
func resolveSocketPath() string {
	if p := os.Getenv("BOTTY_SOCKET"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "botty", "botty.sock")
	}
	return fmt.Sprintf("/tmp/botty-%d.sock", os.Getuid())
}

// dial connects to bottyd, starting it first if it isn't already
// listening.
func dial() (net.Conn, int) {
	socketPath := resolveSocketPath()
	ensureDaemon(socketPath)
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: cannot connect to bottyd: %v\n", err)
		return nil, exitServerUnreach
	}
	return conn, exitOK
}

// ensureDaemon starts bottyd in the background if socketPath isn't
// already responding to a ping.
func ensureDaemon(socketPath string) {
	if pingDaemon(socketPath) {
		return
	}

	exe, _ := os.Executable()
	daemonBin := filepath.Join(filepath.Dir(exe), "bottyd")
	if _, err := os.Stat(daemonBin); err != nil {
		daemonBin = "bottyd"
	}

	cmd := exec.Command(daemonBin, "--socket", socketPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "botty: could not start bottyd: %v\n", err)
		return
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if pingDaemon(socketPath) {
			return
		}
	}
}

func pingDaemon(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(500 * time.Millisecond))
	if err := proto.WriteLine(conn, proto.Request{Kind: proto.ReqPing}); err != nil {
		return false
	}
	scanner := proto.NewScanner(conn)
	resp, err := proto.ReadResponse(scanner)
	return err == nil && resp.Kind == proto.RespOK
}

// mustRequest sends req to bottyd over a fresh connection and returns
// the decoded Response alongside the CLI exit code its outcome maps
// to (spec §6).
func mustRequest(req proto.Request) (proto.Response, int) {
	conn, code := dial()
	if code != exitOK {
		return proto.Response{}, code
	}
	defer conn.Close()

	if err := proto.WriteLine(conn, req); err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return proto.Response{}, exitOther
	}
	scanner := proto.NewScanner(conn)
	resp, err := proto.ReadResponse(scanner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botty: %v\n", err)
		return proto.Response{}, exitOther
	}
	if resp.Kind == proto.RespErr {
		return resp, reportErr(resp)
	}
	return resp, exitOK
}

// reportErr prints resp's error to stderr and maps its ErrKind to the
// CLI's exit code contract.
func reportErr(resp proto.Response) int {
	fmt.Fprintf(os.Stderr, "botty: %s: %s\n", resp.ErrKind, resp.Error)
	switch resp.ErrKind {
	case proto.ErrAgentNotFound:
		return exitAgentNotFound
	case proto.ErrWaitUnsatisfied, proto.ErrTimeout:
		return exitWaitTimeout
	case proto.ErrUsage:
		return exitUsage
	case proto.ErrServerUnreachable:
		return exitServerUnreach
	default:
		return exitOther
	}
}
