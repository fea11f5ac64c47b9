package term

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/devforge/workbench/internal/shared/id"
)

// Options configures a new terminal session. The zero value is valid:
// every field has a documented default.
type Options struct {
	// Shell is the program to run. Defaults to $SHELL, then /bin/bash.
	Shell string
	// Args are passed to the shell verbatim.
	Args []string
	// WorkingDir must be a readable directory; otherwise the user's
	// home directory (then /tmp) is substituted.
	WorkingDir string
	// Env entries are appended to the daemon's environment.
	Env map[string]string
	// Cols and Rows default to 80x24.
	Cols int
	Rows int
}

// Session is a live (or spawning) terminal session. All mutable state
// is guarded by mu; the manager's registry lock orders registration and
// removal.
type Session struct {
	Handle     id.TermID
	Shell      string
	WorkingDir string
	Cols       int
	Rows       int
	CreatedAt  time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	scroll *Buffer

	mu     sync.RWMutex
	closed bool
}

// Info is the caller-visible snapshot of a session.
type Info struct {
	Handle     string    `json:"handle"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	CreatedAt  time.Time `json:"created_at"`
	Active     bool      `json:"active"`
}

func (s *Session) info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info{
		Handle:     s.Handle.String(),
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		Cols:       s.Cols,
		Rows:       s.Rows,
		CreatedAt:  s.CreatedAt,
		Active:     !s.closed,
	}
}

// Buffer is a thread-safe circular scrollback buffer. The event stream
// is the primary delivery path; the buffer lets late subscribers and
// polling clients recover recent output.
type Buffer struct {
	data []byte
	size int
	head int
	tail int
	mu   sync.Mutex
}

// NewBuffer creates a circular buffer holding up to size bytes.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 64 * 1024
	}
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends data, discarding the oldest bytes once full.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size
		if b.tail == b.head {
			b.head = (b.head + 1) % b.size
		}
	}

	return len(p), nil
}

// Drain returns and clears all buffered bytes.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == b.tail {
		return nil
	}

	var result []byte
	if b.tail > b.head {
		result = make([]byte, b.tail-b.head)
		copy(result, b.data[b.head:b.tail])
	} else {
		first := b.data[b.head:]
		second := b.data[:b.tail]
		result = make([]byte, len(first)+len(second))
		copy(result, first)
		copy(result[len(first):], second)
	}

	b.head = b.tail
	return result
}
