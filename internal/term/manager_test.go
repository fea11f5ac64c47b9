package term

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	"github.com/devforge/workbench/internal/shared/id"
)

func newTestManager(t *testing.T) (*Manager, *events.Bus) {
	t.Helper()

	bus := events.New()
	m := NewManager(bus, logging.NewNop(), monitoring.NewMetrics(), config.TerminalConfig{
		Scrollback: 64 * 1024,
		Cols:       80,
		Rows:       24,
	})

	t.Cleanup(func() {
		m.Shutdown()
		bus.Close()
	})
	return m, bus
}

// collector records events for one topic in delivery order.
type collector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collector) listen(ev events.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) byType(typ string) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestCreateReturnsHandleImmediately(t *testing.T) {
	m, _ := newTestManager(t)

	handle := m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 5"}})
	assert.True(t, strings.HasPrefix(handle.String(), "term_"))
	assert.Equal(t, 1, m.Count())

	info, err := m.Get(handle)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", info.Shell)
	assert.True(t, info.Active)
}

func TestHandlesAreUnique(t *testing.T) {
	m, _ := newTestManager(t)

	seen := make(map[id.TermID]bool)
	for i := 0; i < 20; i++ {
		handle := m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 5"}})
		require.False(t, seen[handle])
		seen[handle] = true
	}
	assert.Equal(t, 20, m.Count())
}

func TestOutputReachesScrollback(t *testing.T) {
	m, _ := newTestManager(t)

	handle := m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "printf workbench-out; sleep 2"}})

	assert.Eventually(t, func() bool {
		data, err := m.Read(handle)
		return err == nil && strings.Contains(string(data), "workbench-out")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestExitPublishedOnceWithCode(t *testing.T) {
	m, bus := newTestManager(t)

	handle := m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 0.3; exit 3"}})

	c := &collector{}
	require.NoError(t, bus.Subscribe(handle.String(), c.listen))

	assert.Eventually(t, func() bool {
		return len(c.byType(events.TypeExit)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	exits := c.byType(events.TypeExit)
	require.Len(t, exits, 1)
	assert.Equal(t, 3, exits[0].Data["code"])

	// Handle is removed after exit; mutations remain safe no-ops.
	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 10*time.Millisecond)
	m.Write(handle, []byte("ignored"))
	m.Resize(handle, 100, 40)
	m.Kill(handle)
}

func TestSpawnFailureIsAsynchronous(t *testing.T) {
	m, bus := newTestManager(t)

	// Create must not fail even though the shell cannot exist.
	handle := m.Create(Options{Shell: "/definitely/not/a/shell"})
	require.NotEmpty(t, handle)

	c := &collector{}
	require.NoError(t, bus.Subscribe(handle.String(), c.listen))

	// The failed session removes itself.
	assert.Eventually(t, func() bool { return m.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	handle := m.Create(Options{Shell: "/bin/cat"})

	// Wait for the spawn to complete: writes during spawn are no-ops.
	time.Sleep(300 * time.Millisecond)
	m.Write(handle, []byte("echo-me\n"))

	assert.Eventually(t, func() bool {
		data, err := m.Read(handle)
		return err == nil && strings.Contains(string(data), "echo-me")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestKillRemovesHandleImmediately(t *testing.T) {
	m, bus := newTestManager(t)

	handle := m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 10"}})
	time.Sleep(200 * time.Millisecond)

	c := &collector{}
	require.NoError(t, bus.Subscribe(handle.String(), c.listen))

	m.Kill(handle)
	assert.Equal(t, 0, m.Count())

	// The child's real exit arrives later and is dropped: no exit
	// event may surface for a removed handle.
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, c.byType(events.TypeExit))

	// Idempotent.
	m.Kill(handle)
}

func TestMutationsOnUnknownHandleAreNoOps(t *testing.T) {
	m, _ := newTestManager(t)

	ghost := id.NewTermID()
	m.Write(ghost, []byte("data"))
	m.Resize(ghost, 120, 30)
	m.Kill(ghost)

	assert.Equal(t, 0, m.Count())

	_, err := m.Read(ghost)
	assert.Error(t, err)
	_, err = m.Get(ghost)
	assert.Error(t, err)
}

func TestDefaultsApplied(t *testing.T) {
	m, _ := newTestManager(t)

	opts := m.applyDefaults(Options{WorkingDir: "/path/that/does/not/exist"})

	assert.NotEmpty(t, opts.Shell)
	assert.NotEqual(t, "/path/that/does/not/exist", opts.WorkingDir)
	assert.True(t, isReadableDir(opts.WorkingDir))
	assert.Equal(t, 80, opts.Cols)
	assert.Equal(t, 24, opts.Rows)
}

func TestShutdownKillsEverything(t *testing.T) {
	m, _ := newTestManager(t)

	for i := 0; i < 5; i++ {
		m.Create(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 10"}})
	}
	require.Equal(t, 5, m.Count())

	m.Shutdown()
	assert.Equal(t, 0, m.Count())
}

func TestBufferWrapAround(t *testing.T) {
	buf := NewBuffer(8)

	buf.Write([]byte("abcdefgh"))
	buf.Write([]byte("XY"))

	// Oldest bytes fall off; the window keeps the most recent writes.
	got := string(buf.Drain())
	assert.True(t, strings.HasSuffix(got, "XY"))
	assert.LessOrEqual(t, len(got), 8)

	// Drained buffer is empty.
	assert.Empty(t, buf.Drain())
}
