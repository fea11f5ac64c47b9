package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge/workbench/internal/shared/types"
)

type mockProvider struct {
	id       string
	category types.Category
	lastTool string
}

func (m *mockProvider) Definition() types.Service {
	return types.Service{
		ID:       m.id,
		Name:     "Mock",
		Category: m.category,
		Tools:    []types.Tool{{ID: m.id + ".echo"}},
	}
}

func (m *mockProvider) Execute(_ context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	m.lastTool = toolID
	return types.Success(map[string]interface{}{"echo": params["value"]})
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "term", category: types.CategoryTerminal}))

	_, ok := r.Get("term")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterEmptyID(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&mockProvider{id: ""}))
}

func TestListFiltersByCategory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "term", category: types.CategoryTerminal}))
	require.NoError(t, r.Register(&mockProvider{id: "repo", category: types.CategoryRepo}))

	all := r.List(nil)
	require.Len(t, all, 2)
	// Sorted by ID.
	assert.Equal(t, "repo", all[0].ID)
	assert.Equal(t, "term", all[1].ID)

	cat := types.CategoryRepo
	filtered := r.List(&cat)
	require.Len(t, filtered, 1)
	assert.Equal(t, "repo", filtered[0].ID)
}

func TestExecuteRoutesByPrefix(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "term", category: types.CategoryTerminal}
	require.NoError(t, r.Register(p))

	result, err := r.Execute(context.Background(), "term.echo", map[string]interface{}{"value": "hi"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Data["echo"])
	assert.Equal(t, "term.echo", p.lastTool)
}

func TestExecuteRejectsBadToolID(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "noseparator", nil, nil)
	require.Error(t, err)
	assert.False(t, result.Success)

	result, err = r.Execute(context.Background(), "ghost.tool", nil, nil)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestUnregisterAndStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "term", category: types.CategoryTerminal}))

	stats := r.Stats()
	assert.Equal(t, 1, stats["total_services"])
	assert.Equal(t, 1, stats["total_tools"])

	r.Unregister("term")
	_, ok := r.Get("term")
	assert.False(t, ok)
}
