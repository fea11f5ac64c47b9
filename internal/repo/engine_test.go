package repo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.RepoConfig{GitBinary: "git"}, logging.NewNop(), monitoring.NewMetrics())
}

// initTestRepo creates a real repository with identity configured so
// commits work without global git config.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "Dev"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIsRepository(t *testing.T) {
	e := newTestEngine(t)

	dir := t.TempDir()
	assert.False(t, e.IsRepository(dir))

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	assert.True(t, e.IsRepository(dir))
}

func TestIsRepositoryWorktreeFile(t *testing.T) {
	e := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, ".git", "gitdir: /somewhere/else/.git/worktrees/x\n")
	assert.True(t, e.IsRepository(dir))

	other := t.TempDir()
	writeFile(t, other, ".git", "not vcs metadata")
	assert.False(t, e.IsRepository(other))
}

func TestCommitEmptyMessage(t *testing.T) {
	e := newTestEngine(t)

	// Rejected at the boundary; the tool is never invoked, so a
	// nonexistent path is fine.
	err := e.Commit(context.Background(), "/nonexistent", "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRefreshParsesWorkingTree(t *testing.T) {
	e := newTestEngine(t)
	dir := initTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.txt", "hello\n")

	status, err := e.Refresh(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, status.Untracked)

	require.NoError(t, e.Add(ctx, dir, "a.txt"))

	status, err = e.Refresh(ctx, dir)
	require.NoError(t, err)
	require.Len(t, status.Staged, 1)
	assert.Equal(t, KindAdded, status.Staged[0].Kind)
	assert.Empty(t, status.Untracked)
}

func TestCommitAndLog(t *testing.T) {
	e := newTestEngine(t)
	dir := initTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.txt", "one\n")
	require.NoError(t, e.Add(ctx, dir))
	require.NoError(t, e.Commit(ctx, dir, "first commit"))

	writeFile(t, dir, "a.txt", "two\n")
	require.NoError(t, e.Add(ctx, dir))
	require.NoError(t, e.Commit(ctx, dir, "second commit"))

	commits, err := e.Log(ctx, dir, 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "second commit", commits[0].Subject)
	assert.Equal(t, "first commit", commits[1].Subject)
	assert.Equal(t, "Dev", commits[0].Author)
	assert.Equal(t, "dev@example.com", commits[0].Email)
	assert.NotZero(t, commits[0].Timestamp)
}

func TestRestoreUnstages(t *testing.T) {
	e := newTestEngine(t)
	dir := initTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.txt", "one\n")
	require.NoError(t, e.Add(ctx, dir))
	require.NoError(t, e.Commit(ctx, dir, "base"))

	writeFile(t, dir, "a.txt", "two\n")
	require.NoError(t, e.Add(ctx, dir, "a.txt"))
	require.NoError(t, e.Restore(ctx, dir, "a.txt"))

	status, err := e.Refresh(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, status.Staged)
	require.Len(t, status.Unstaged, 1)
	assert.Equal(t, KindModified, status.Unstaged[0].Kind)
}

func TestDiffPassThrough(t *testing.T) {
	e := newTestEngine(t)
	dir := initTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.txt", "one\n")
	require.NoError(t, e.Add(ctx, dir))
	require.NoError(t, e.Commit(ctx, dir, "base"))
	writeFile(t, dir, "a.txt", "two\n")

	diff, err := e.Diff(ctx, dir, "a.txt")
	require.NoError(t, err)
	assert.Contains(t, diff, "-one")
	assert.Contains(t, diff, "+two")
}

func TestBranchesAndCurrent(t *testing.T) {
	e := newTestEngine(t)
	dir := initTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.txt", "one\n")
	require.NoError(t, e.Add(ctx, dir))
	require.NoError(t, e.Commit(ctx, dir, "base"))

	cmd := exec.Command("git", "branch", "feature")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	branches, err := e.Branches(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, branches, 2)

	current, err := e.CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, current)
	assert.NotEqual(t, "feature", current)
}

func TestCommandErrorCarriesStderr(t *testing.T) {
	e := newTestEngine(t)
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	// Not a repository: status exits non-zero with a diagnostic.
	_, err := e.Refresh(context.Background(), t.TempDir())
	require.Error(t, err)

	cmdErr, ok := IsCommandError(err)
	require.True(t, ok)
	assert.NotZero(t, cmdErr.ExitCode)
	assert.NotEmpty(t, cmdErr.Stderr)
	assert.Contains(t, cmdErr.Error(), "git status")
}
