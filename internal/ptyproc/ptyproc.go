// Package ptyproc wraps a child process attached to a pseudo-terminal:
// allocate the master/slave pair, exec the child onto the slave, resize,
// signal, and reap (spec §4.3). It owns exactly one PTY master file
// descriptor for its lifetime and closes it exactly once.
package ptyproc

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ExitStatus describes how the child process ended.
type ExitStatus struct {
	Code   int
	Signal int // 0 if the process exited normally rather than by signal
}

// Process is one child attached to a PTY. The zero value is not usable;
// construct with Start.
type Process struct {
	mu sync.Mutex

	cmd    *exec.Cmd
	master *os.File
	pid    int
	closed bool
}

// Start allocates a PTY, places the child in a new session (via
// pty.Start's Setsid), and execs argv[0] with argv[1:] and env onto the
// slave as its controlling terminal, with 0/1/2 dup2'd to it; rows/cols
// set the initial window size. The master is returned as
// pty.StartWithSize opens it: Start changes no termios settings, so the
// slave keeps the kernel's default output processing (on Linux, OPOST
// with ONLCR, which turns "\n" into "\r\n").
func Start(argv []string, env []string, dir string, rows, cols int) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("ptyproc: empty argv")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	// pty.Start sets Setsid:true on the child, creating a new session and
	// process group (pgid == child pid). Do not also set Setpgid: calling
	// setpgid() after setsid() on the session leader itself returns EPERM
	// on some platforms. The session group alone gives us kill(-pid, sig).
	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("pty.Start: %w", err)
	}

	return &Process{
		cmd:    cmd,
		master: master,
		pid:    cmd.Process.Pid,
	}, nil
}

// PID returns the child's process ID.
func (p *Process) PID() int {
	return p.pid
}

// Read reads from the PTY master into buf. It returns io.EOF (or an
// errno wrapping it) once the slave side has closed, which happens when
// the child exits and no other process holds the slave open.
func (p *Process) Read(buf []byte) (int, error) {
	p.mu.Lock()
	m := p.master
	p.mu.Unlock()
	if m == nil {
		return 0, os.ErrClosed
	}
	return m.Read(buf)
}

// Write writes to the PTY master, i.e. delivers bytes as if typed at the
// terminal. Per spec §4.7, attach-bridge writes to the master are
// non-blocking at the caller's discretion; Process.Write itself is a
// plain blocking write and callers that need drop-on-overflow semantics
// wrap it with their own buffering.
func (p *Process) Write(data []byte) (int, error) {
	p.mu.Lock()
	m := p.master
	p.mu.Unlock()
	if m == nil {
		return 0, os.ErrClosed
	}
	return m.Write(data)
}

// Resize forwards TIOCSWINSZ to the PTY and sends an explicit SIGWINCH
// to the child, belt-and-suspenders for applications that miss the
// implicit signal the kernel already raises on a winsize change.
func (p *Process) Resize(rows, cols int) error {
	p.mu.Lock()
	m := p.master
	pid := p.pid
	p.mu.Unlock()
	if m == nil {
		return os.ErrClosed
	}
	if err := pty.Setsize(m, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("pty.Setsize: %w", err)
	}
	if pid > 0 {
		syscall.Kill(pid, syscall.SIGWINCH)
	}
	return nil
}

// Signal delivers sig to the child's entire process group (its session
// group, since pty.Start made the child a session leader), so that any
// descendants it has spawned are reached too.
func (p *Process) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()
	if pid <= 0 {
		return nil
	}
	pgid, err := syscall.Getpgid(pid)
	if err == nil && pgid > 0 {
		return syscall.Kill(-pgid, sig)
	}
	return syscall.Kill(pid, sig)
}

// Wait blocks until the child exits and returns its exit status. It must
// be called exactly once, typically from the pump goroutine after it
// observes EOF/EIO on Read.
func (p *Process) Wait() ExitStatus {
	err := p.cmd.Wait()
	if err == nil {
		return ExitStatus{Code: p.cmd.ProcessState.ExitCode()}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitStatus{Code: -1, Signal: int(ws.Signal())}
		}
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	return ExitStatus{Code: -1}
}

// Close releases the PTY master. Safe to call once after Wait; a second
// call is a no-op.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	m := p.master
	p.master = nil
	if m == nil {
		return nil
	}
	return m.Close()
}
