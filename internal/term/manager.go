package term

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	"github.com/devforge/workbench/internal/shared/id"
)

// SpawnExitCode is the synthetic exit code published when the child
// process could not be started at all.
const SpawnExitCode = -1

// Manager owns the handle -> session registry. Registration and
// removal are serialized by mu; per-session state has its own lock.
type Manager struct {
	mu       sync.RWMutex
	sessions map[id.TermID]*Session

	bus      *events.Bus
	log      *logging.Logger
	metrics  *monitoring.Metrics
	defaults config.TerminalConfig
}

// NewManager creates a session manager publishing to bus.
func NewManager(bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics, defaults config.TerminalConfig) *Manager {
	return &Manager{
		sessions: make(map[id.TermID]*Session),
		bus:      bus,
		log:      log.Named("term"),
		metrics:  metrics,
		defaults: defaults,
	}
}

// Create allocates a handle, registers the session, and starts the PTY
// spawn on a goroutine. The handle is returned immediately; a spawn
// failure is reported through the event stream as a spawn_error event
// followed by a synthetic exit, never as a Create error.
func (m *Manager) Create(opts Options) id.TermID {
	opts = m.applyDefaults(opts)

	session := &Session{
		Handle:     id.NewTermID(),
		Shell:      opts.Shell,
		WorkingDir: opts.WorkingDir,
		Cols:       opts.Cols,
		Rows:       opts.Rows,
		CreatedAt:  time.Now(),
		scroll:     NewBuffer(m.defaults.Scrollback),
	}

	m.mu.Lock()
	m.sessions[session.Handle] = session
	m.mu.Unlock()

	m.metrics.SessionsTotal.Inc()
	m.metrics.SessionsActive.Inc()
	m.log.Info("session created",
		zap.String("handle", session.Handle.String()),
		zap.String("shell", session.Shell),
		zap.String("cwd", session.WorkingDir),
	)

	go m.spawn(session, opts)

	return session.Handle
}

func (m *Manager) applyDefaults(opts Options) Options {
	if opts.Shell == "" {
		opts.Shell = m.defaults.Shell
	}
	if opts.Shell == "" {
		opts.Shell = os.Getenv("SHELL")
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/bash"
	}

	if !isReadableDir(opts.WorkingDir) {
		home, err := os.UserHomeDir()
		if err != nil || !isReadableDir(home) {
			home = "/tmp"
		}
		opts.WorkingDir = home
	}

	if opts.Cols <= 0 {
		opts.Cols = m.defaults.Cols
	}
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = m.defaults.Rows
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}

	return opts
}

func isReadableDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// spawn starts the child under a PTY and wires the output pump and the
// exit monitor. Runs off the caller's goroutine: process startup is
// asynchronous by contract.
func (m *Manager) spawn(session *Session, opts Options) {
	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		m.spawnFailed(session, err)
		return
	}

	session.mu.Lock()
	if session.closed {
		// Killed before the spawn completed. The handle is already
		// gone, so no exit event is owed.
		session.mu.Unlock()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		ptmx.Close()
		go cmd.Wait()
		return
	}
	session.cmd = cmd
	session.ptmx = ptmx
	session.mu.Unlock()

	go m.pump(session, ptmx)
	go m.monitor(session, cmd)
}

// spawnFailed publishes the spawn error and a synthetic exit, then
// removes the handle. Skipped entirely if Kill already removed it.
func (m *Manager) spawnFailed(session *Session, err error) {
	if !m.remove(session.Handle) {
		return
	}

	m.metrics.SpawnErrors.Inc()
	m.log.Warn("spawn failed",
		zap.String("handle", session.Handle.String()),
		zap.Error(err),
	)

	topic := session.Handle.String()
	m.bus.Publish(events.Event{
		Type:  events.TypeSpawnError,
		Topic: topic,
		Data:  map[string]interface{}{"error": err.Error()},
	})
	m.bus.Publish(events.Event{
		Type:  events.TypeExit,
		Topic: topic,
		Data:  map[string]interface{}{"code": SpawnExitCode, "error": err.Error()},
	})
}

// pump forwards PTY output to the bus in read order and mirrors it
// into the scrollback buffer. stdout and stderr arrive merged as one
// ordered stream, which is what a PTY gives us.
func (m *Manager) pump(session *Session, ptmx *os.File) {
	topic := session.Handle.String()
	buf := make([]byte, 4096)

	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			session.scroll.Write(chunk)
			m.metrics.OutputBytes.Add(float64(n))
			m.bus.Publish(events.Event{
				Type:  events.TypeOutput,
				Topic: topic,
				Data:  map[string]interface{}{"data": string(chunk)},
			})
		}
		if err != nil {
			// EOF or EIO when the child exits and the slave side
			// closes. The monitor owns the exit event.
			return
		}
	}
}

// monitor waits for process exit and publishes the exit code exactly
// once, unless Kill already removed the handle (then the notification
// is dropped by contract).
func (m *Manager) monitor(session *Session, cmd *exec.Cmd) {
	err := cmd.Wait()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = SpawnExitCode
		}
	}

	session.mu.Lock()
	session.closed = true
	if session.ptmx != nil {
		session.ptmx.Close()
	}
	session.mu.Unlock()

	if !m.remove(session.Handle) {
		m.log.Debug("dropping exit for removed handle",
			zap.String("handle", session.Handle.String()),
			zap.Int("code", code),
		)
		return
	}

	m.log.Info("session exited",
		zap.String("handle", session.Handle.String()),
		zap.Int("code", code),
	)
	m.bus.Publish(events.Event{
		Type:  events.TypeExit,
		Topic: session.Handle.String(),
		Data:  map[string]interface{}{"code": code},
	})
}

// remove deletes the handle from the registry. Reports whether this
// call performed the removal; exactly one caller wins, which is what
// makes the exit publication exactly-once.
func (m *Manager) remove(handle id.TermID) bool {
	m.mu.Lock()
	_, present := m.sessions[handle]
	if present {
		delete(m.sessions, handle)
	}
	m.mu.Unlock()

	if present {
		m.metrics.SessionsActive.Dec()
	}
	return present
}

func (m *Manager) lookup(handle id.TermID) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[handle]
}

// Write appends data to the session's input stream. Unknown handles,
// sessions still spawning, and sessions already closed are silent
// no-ops: callers cannot assume liveness without racing the exit path.
func (m *Manager) Write(handle id.TermID, data []byte) {
	session := m.lookup(handle)
	if session == nil {
		m.log.Debug("write to unknown handle", zap.String("handle", handle.String()))
		return
	}

	session.mu.RLock()
	ptmx := session.ptmx
	closed := session.closed
	session.mu.RUnlock()

	if closed || ptmx == nil {
		m.log.Debug("write to inactive session", zap.String("handle", handle.String()))
		return
	}

	if _, err := ptmx.Write(data); err != nil {
		m.log.Debug("write failed", zap.String("handle", handle.String()), zap.Error(err))
	}
}

// Resize updates the PTY dimensions. Unknown handles are no-ops. A
// session without a usable PTY logs a distinct "resize unsupported"
// message: that is a capability gap, not a missing handle.
func (m *Manager) Resize(handle id.TermID, cols, rows int) {
	session := m.lookup(handle)
	if session == nil {
		m.log.Debug("resize of unknown handle", zap.String("handle", handle.String()))
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed || session.ptmx == nil {
		m.log.Warn("resize unsupported for session",
			zap.String("handle", handle.String()),
			zap.Bool("closed", session.closed),
		)
		return
	}

	if err := pty.Setsize(session.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		m.log.Warn("resize failed", zap.String("handle", handle.String()), zap.Error(err))
		return
	}

	session.Cols = cols
	session.Rows = rows
}

// Kill removes the handle immediately and signals the process. The
// later real exit notification finds the handle gone and is dropped.
// Idempotent; unknown handles are no-ops.
func (m *Manager) Kill(handle id.TermID) {
	session := m.lookup(handle)
	if session == nil {
		m.log.Debug("kill of unknown handle", zap.String("handle", handle.String()))
		return
	}

	m.remove(handle)

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed {
		return
	}
	session.closed = true

	if session.cmd != nil && session.cmd.Process != nil {
		session.cmd.Process.Kill()
	}
	if session.ptmx != nil {
		session.ptmx.Close()
	}

	m.log.Info("session killed", zap.String("handle", handle.String()))
}

// Read drains the session's scrollback buffer.
func (m *Manager) Read(handle id.TermID) ([]byte, error) {
	session := m.lookup(handle)
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", handle)
	}
	return session.scroll.Drain(), nil
}

// Get returns session info for a handle.
func (m *Manager) Get(handle id.TermID) (Info, error) {
	session := m.lookup(handle)
	if session == nil {
		return Info{}, fmt.Errorf("session not found: %s", handle)
	}
	return session.info(), nil
}

// List returns info for all registered sessions, ordered by handle
// (ULIDs sort by creation time).
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Handle < infos[j].Handle })
	return infos
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown kills every session. Used for deterministic teardown.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	handles := make([]id.TermID, 0, len(m.sessions))
	for handle := range m.sessions {
		handles = append(handles, handle)
	}
	m.mu.RUnlock()

	for _, handle := range handles {
		m.Kill(handle)
	}
}
