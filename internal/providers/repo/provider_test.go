package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	"github.com/devforge/workbench/internal/repo"
	"github.com/devforge/workbench/internal/shared/types"
)

func newTestProvider(t *testing.T) (*Provider, *events.Bus) {
	t.Helper()
	bus := events.New()
	t.Cleanup(bus.Close)

	engine := repo.NewEngine(config.RepoConfig{GitBinary: "git"}, logging.NewNop(), monitoring.NewMetrics())
	return NewProvider(engine, bus), bus
}

func execute(t *testing.T, p *Provider, toolID string, params map[string]interface{}) *types.Result {
	t.Helper()
	result, err := p.Execute(context.Background(), toolID, params, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	return result
}

func TestIsRepositoryTool(t *testing.T) {
	p, _ := newTestProvider(t)

	result := execute(t, p, "repo.is_repository", map[string]interface{}{"path": t.TempDir()})
	assert.Equal(t, false, result.Data["is_repository"])
}

func TestStageUnstageThroughTools(t *testing.T) {
	p, _ := newTestProvider(t)
	p.overlay.Replace(&repo.Status{Untracked: []string{"new.txt"}})

	staged := execute(t, p, "repo.stage", map[string]interface{}{"file": "new.txt"})
	assert.Len(t, staged.Data["staged"], 1)
	assert.Empty(t, staged.Data["untracked"])

	unstaged := execute(t, p, "repo.unstage", map[string]interface{}{"file": "new.txt"})
	assert.Empty(t, unstaged.Data["staged"])
	assert.Len(t, unstaged.Data["untracked"], 1)
}

func TestStageAllThroughTools(t *testing.T) {
	p, _ := newTestProvider(t)
	p.overlay.Replace(&repo.Status{
		Unstaged:  []repo.FileChange{{Path: "a.go", Kind: repo.KindModified}},
		Untracked: []string{"b.txt"},
	})

	result := execute(t, p, "repo.stage_all", nil)
	assert.Len(t, result.Data["staged"], 2)

	result = execute(t, p, "repo.unstage_all", nil)
	assert.Empty(t, result.Data["staged"])
}

func TestCommitEmptyMessageFails(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "repo.commit", map[string]interface{}{
		"path":    t.TempDir(),
		"message": "  ",
	}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
}

func TestMissingPath(t *testing.T) {
	p, _ := newTestProvider(t)

	for _, toolID := range []string{"repo.refresh", "repo.commit", "repo.diff", "repo.branches", "repo.log"} {
		_, err := p.Execute(context.Background(), toolID, map[string]interface{}{}, nil)
		assert.Error(t, err, toolID)
	}
}

func TestUnknownTool(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.Execute(context.Background(), "repo.rebase", nil, nil)
	assert.Error(t, err)
}

func TestDefinitionToolIDs(t *testing.T) {
	p, _ := newTestProvider(t)
	def := p.Definition()

	assert.Equal(t, "repo", def.ID)
	assert.Equal(t, types.CategoryRepo, def.Category)
	for _, tool := range def.Tools {
		assert.Contains(t, tool.ID, "repo.")
	}
}
