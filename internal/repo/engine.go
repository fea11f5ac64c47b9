package repo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
)

// Engine invokes the external git tool. It is stateless: the overlay
// holds the mutable model. No timeouts are imposed here; a hanging
// tool blocks only the one call, and callers pass a context they can
// cancel.
type Engine struct {
	git     string
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewEngine creates a status engine using the configured git binary.
func NewEngine(cfg config.RepoConfig, log *logging.Logger, metrics *monitoring.Metrics) *Engine {
	git := cfg.GitBinary
	if git == "" {
		git = "git"
	}
	return &Engine{
		git:     git,
		log:     log.Named("repo"),
		metrics: metrics,
	}
}

// run executes git with the given arguments in dir. Non-zero exit
// surfaces as *CommandError carrying the tool's stderr.
func (e *Engine) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.git, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	sub := args[0]
	start := time.Now()
	err := cmd.Run()
	e.metrics.GitCommands.WithLabelValues(sub).Inc()
	e.metrics.GitDuration.WithLabelValues(sub).Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.GitFailures.WithLabelValues(sub).Inc()

		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		cmdErr := &CommandError{
			Args:     args,
			ExitCode: code,
			Stderr:   stderr.String(),
		}
		e.log.Debug("git command failed",
			zap.Strings("args", args),
			zap.Int("exit_code", code),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return "", cmdErr
	}

	return stdout.String(), nil
}

// IsRepository reports whether path holds VCS metadata. A plain
// filesystem check: the tool is not invoked. `.git` may be a directory
// or, for worktrees, a file pointing at the real gitdir.
func (e *Engine) IsRepository(path string) bool {
	gitPath := filepath.Join(path, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(content, []byte("gitdir:"))
}

// Refresh recomputes the authoritative status from the tool.
func (e *Engine) Refresh(ctx context.Context, path string) (*Status, error) {
	output, err := e.run(ctx, path, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return ParseStatus(output), nil
}

// Commit commits the currently staged set. The message is checked for
// non-emptiness at the call boundary; everything else (nothing staged,
// hooks, identity) is the tool's verdict.
func (e *Engine) Commit(ctx context.Context, path, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	_, err := e.run(ctx, path, "commit", "-m", message)
	return err
}

// Diff returns the raw diff for one file or the whole tree. Pure
// pass-through, no parsing.
func (e *Engine) Diff(ctx context.Context, path, file string) (string, error) {
	args := []string{"diff"}
	if file != "" {
		args = append(args, "--", file)
	}
	return e.run(ctx, path, args...)
}

// Branches lists local branches; the entry bearing the current-branch
// marker is reported as current.
func (e *Engine) Branches(ctx context.Context, path string) ([]Branch, error) {
	output, err := e.run(ctx, path, "branch")
	if err != nil {
		return nil, err
	}
	return ParseBranches(output), nil
}

// CurrentBranch returns the checked-out branch name.
func (e *Engine) CurrentBranch(ctx context.Context, path string) (string, error) {
	branches, err := e.Branches(ctx, path)
	if err != nil {
		return "", err
	}
	for _, b := range branches {
		if b.IsCurrent {
			return b.Name, nil
		}
	}
	return "", fmt.Errorf("repo: no current branch in %s", path)
}

// Add stages files in the tool's index. With no files given the whole
// tree is staged. This is the tool-side counterpart of the optimistic
// overlay: the UI applies the overlay for immediate feedback and calls
// Add to make git agree.
func (e *Engine) Add(ctx context.Context, path string, files ...string) error {
	args := []string{"add"}
	if len(files) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, files...)
	}
	_, err := e.run(ctx, path, args...)
	return err
}

// Restore unstages files from the tool's index. With no files given
// everything staged is restored.
func (e *Engine) Restore(ctx context.Context, path string, files ...string) error {
	args := []string{"restore", "--staged"}
	if len(files) == 0 {
		args = append(args, ".")
	} else {
		args = append(args, "--")
		args = append(args, files...)
	}
	_, err := e.run(ctx, path, args...)
	return err
}

// Log returns the most recent commits, newest first.
func (e *Engine) Log(ctx context.Context, path string, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	output, err := e.run(ctx, path,
		"log",
		fmt.Sprintf("-n%d", limit),
		"--pretty=format:%H%x00%an%x00%ae%x00%at%x00%s",
	)
	if err != nil {
		return nil, err
	}

	var commits []CommitInfo
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\x00", 5)
		if len(parts) != 5 {
			continue
		}
		ts, _ := strconv.ParseInt(parts[3], 10, 64)
		commits = append(commits, CommitInfo{
			Hash:      parts[0],
			Author:    parts[1],
			Email:     parts[2],
			Timestamp: ts,
			Subject:   parts[4],
		})
	}
	return commits, nil
}
