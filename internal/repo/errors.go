package repo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyMessage is returned by Commit before the tool is invoked.
var ErrEmptyMessage = errors.New("repo: commit message is empty")

// CommandError reports a git invocation that exited non-zero. The
// engine never retries; the stderr text is surfaced to the caller
// as-is.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

// IsCommandError reports whether err is a git tool failure and returns
// it if so.
func IsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
