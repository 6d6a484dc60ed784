package agent

import (
	"os"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/botty/internal/bus"
)

func newTestAgent(t *testing.T, argv []string) *Agent {
	t.Helper()
	b := bus.New()
	a, err := New("t", argv, os.Environ(), nil, 24, 80, Limits{}, 64*1024, b)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Kill(syscall.SIGKILL)
		<-a.Done()
	})
	return a
}

func TestWaitContainsAlreadyPresentResolvesImmediately(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/sh", "-c", "printf ABC; sleep 5"})

	res := a.Wait(Predicate{Contains: "ABC"}, 2*time.Second)
	assert.True(t, res.Matched)
}

func TestWaitTimesOut(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/sh", "-c", "sleep 5"})

	res := a.Wait(Predicate{Contains: "NEVER"}, 200*time.Millisecond)
	assert.True(t, res.Timeout)
}

func TestWaitResolvesOnExit(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/sh", "-c", "exit 3"})

	res := a.Wait(Predicate{Contains: "NEVER"}, 5*time.Second)
	assert.True(t, res.Exited)
	require.NotNil(t, res.Exit)
	require.NotNil(t, res.Exit.Code)
	assert.Equal(t, 3, *res.Exit.Code)
}

func TestWaitRegex(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/sh", "-c", "printf 'code=42\\n'; sleep 5"})

	res := a.Wait(Predicate{Regex: regexp.MustCompile(`code=\d+`)}, 2*time.Second)
	assert.True(t, res.Matched)
}

func TestKillRecordsSignalAndReason(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/sh", "-c", "sleep 5"})

	require.NoError(t, a.Kill(syscall.SIGKILL))
	<-a.Done()

	exit := a.Exit()
	require.NotNil(t, exit.Signal)
	assert.Equal(t, int(syscall.SIGKILL), *exit.Signal)
	assert.Equal(t, "Killed", exit.Reason)
	assert.Equal(t, Exited, a.State())
}

func TestMaxOutputKillsAgent(t *testing.T) {
	b := bus.New()
	a, err := New("t", []string{"/bin/sh", "-c", "yes | head -c 1000000"}, os.Environ(), nil, 24, 80, Limits{MaxOutput: 1024}, 64*1024, b)
	require.NoError(t, err)

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not exit after exceeding max_output")
	}
	assert.Equal(t, "MaxOutput", a.Exit().Reason)
}

func TestTimeoutTerminatesAgent(t *testing.T) {
	b := bus.New()
	a, err := New("t", []string{"/bin/sh", "-c", "sleep 30"}, os.Environ(), nil, 24, 80, Limits{Timeout: 100 * time.Millisecond}, 64*1024, b)
	require.NoError(t, err)

	select {
	case <-a.Done():
	case <-time.After(7 * time.Second):
		t.Fatal("agent did not exit after timeout")
	}
	assert.Equal(t, "Timeout", a.Exit().Reason)
}

func TestResizeUpdatesScreenAndOptionallyClearsTranscript(t *testing.T) {
	a := newTestAgent(t, []string{"/bin/cat"})

	require.NoError(t, a.SendBytes([]byte("hello\n")))
	time.Sleep(100 * time.Millisecond)
	assert.Positive(t, a.Transcript.Len())

	require.NoError(t, a.Resize(40, 120, true))
	rows, cols := a.Size()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 120, cols)
	screenRows, screenCols := a.Screen.Size()
	assert.Equal(t, 40, screenRows)
	assert.Equal(t, 120, screenCols)
	assert.Equal(t, 0, a.Transcript.Len())
}
