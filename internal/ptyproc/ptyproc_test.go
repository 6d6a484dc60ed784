package ptyproc

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, p *Process, deadline time.Duration) []byte {
	t.Helper()
	done := make(chan struct{})
	var out []byte
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := p.Read(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			if err != nil {
				close(done)
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(deadline):
		t.Fatal("timed out reading PTY output")
	}
	return out
}

func TestStartAndExitStatus(t *testing.T) {
	p, err := Start([]string{"/bin/sh", "-c", "echo hello"}, os.Environ(), "", 24, 80)
	require.NoError(t, err)
	defer p.Close()

	out := readAll(t, p, 5*time.Second)
	assert.Contains(t, string(out), "hello")

	status := p.Wait()
	assert.Equal(t, 0, status.Code)
	assert.Equal(t, 0, status.Signal)
}

func TestNonZeroExit(t *testing.T) {
	p, err := Start([]string{"/bin/sh", "-c", "exit 7"}, os.Environ(), "", 24, 80)
	require.NoError(t, err)
	defer p.Close()

	readAll(t, p, 5*time.Second)
	status := p.Wait()
	assert.Equal(t, 7, status.Code)
}

func TestWriteEchoedBack(t *testing.T) {
	p, err := Start([]string{"/bin/cat"}, os.Environ(), "", 24, 80)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Write([]byte("ping\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	p.master.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "ping")

	require.NoError(t, p.Signal(syscall.SIGTERM))
	p.Wait()
}

func TestResizeDoesNotError(t *testing.T) {
	p, err := Start([]string{"/bin/cat"}, os.Environ(), "", 24, 80)
	require.NoError(t, err)
	defer p.Close()

	err = p.Resize(40, 100)
	assert.NoError(t, err)

	require.NoError(t, p.Signal(syscall.SIGTERM))
	p.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := Start([]string{"/bin/sh", "-c", "true"}, os.Environ(), "", 24, 80)
	require.NoError(t, err)
	readAll(t, p, 5*time.Second)
	p.Wait()

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}
