package registry

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/botty/internal/agent"
	"github.com/ianremillard/botty/internal/bus"
)

func spawn(t *testing.T, r *Registry, name string, argv []string, labels []string) *agent.Agent {
	t.Helper()
	id, err := r.Reserve(name)
	require.NoError(t, err)
	a, err := agent.New(id, argv, os.Environ(), labels, 24, 80, agent.Limits{}, 4096, bus.New())
	require.NoError(t, err)
	r.Add(a)
	t.Cleanup(func() {
		a.Kill(9) // harmless if already exited
		<-a.Done()
	})
	return a
}

func TestValidateName(t *testing.T) {
	assert.True(t, ValidateName("worker-1"))
	assert.True(t, ValidateName("a"))
	assert.False(t, ValidateName("Worker"))
	assert.False(t, ValidateName("has_underscore"))
	assert.False(t, ValidateName(""))
}

func TestReserveRejectsDuplicateName(t *testing.T) {
	r := New()
	_, err := r.Reserve("dup")
	require.NoError(t, err)

	_, err = r.Reserve("dup")
	assert.ErrorIs(t, err, ErrNameInUse)
}

func TestReserveAutoGeneratesUniqueHandles(t *testing.T) {
	r := New()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		h, err := r.Reserve("")
		require.NoError(t, err)
		assert.False(t, seen[h], "handle %q reused", h)
		seen[h] = true
	}
}

func TestResolveByID(t *testing.T) {
	r := New()
	a := spawn(t, r, "named", []string{"/bin/sh", "-c", "sleep 5"}, nil)

	got := r.Resolve(Selector{ID: "named"})
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	assert.Empty(t, r.Resolve(Selector{ID: "missing"}))
}

func TestResolveByLabel(t *testing.T) {
	r := New()
	spawn(t, r, "one", []string{"/bin/sh", "-c", "sleep 5"}, []string{"build"})
	spawn(t, r, "two", []string{"/bin/sh", "-c", "sleep 5"}, []string{"build", "ci"})
	spawn(t, r, "three", []string{"/bin/sh", "-c", "sleep 5"}, []string{"other"})

	got := r.Resolve(Selector{Label: "build"})
	assert.Len(t, got, 2)
}

func TestResolveByProcMatch(t *testing.T) {
	r := New()
	spawn(t, r, "one", []string{"/bin/sh", "-c", "sleep 5"}, nil)
	spawn(t, r, "two", []string{"/bin/cat"}, nil)

	got := r.Resolve(Selector{ProcMatch: regexp.MustCompile(`^sh$`)})
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].ID)
}

func TestResolveAll(t *testing.T) {
	r := New()
	spawn(t, r, "one", []string{"/bin/sh", "-c", "sleep 5"}, nil)
	spawn(t, r, "two", []string{"/bin/sh", "-c", "sleep 5"}, nil)

	assert.Len(t, r.Resolve(Selector{All: true}), 2)
}

func TestResolveEmptySelectorMatchesNothing(t *testing.T) {
	r := New()
	spawn(t, r, "one", []string{"/bin/sh", "-c", "sleep 5"}, nil)
	assert.Empty(t, r.Resolve(Selector{}))
}

func TestGcRemovesOnlyExited(t *testing.T) {
	r := New()
	live := spawn(t, r, "live", []string{"/bin/sh", "-c", "sleep 5"}, nil)
	dead := spawn(t, r, "dead", []string{"/bin/sh", "-c", "exit 0"}, nil)
	<-dead.Done()

	n := r.Gc()
	assert.Equal(t, 1, n)

	_, ok := r.Get("dead")
	assert.False(t, ok)
	_, ok = r.Get("live")
	assert.True(t, ok)
}
