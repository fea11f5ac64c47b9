package repo

import (
	"context"
	"fmt"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/repo"
	"github.com/devforge/workbench/internal/shared/types"
)

// Topic is the event bus topic repository status updates are published on.
const Topic = "repo"

// Provider exposes repository operations as service tools. Stage and
// unstage mutate only the optimistic overlay; add and restore are their
// tool-side counterparts. Refresh replaces the overlay with the tool's
// authoritative view.
type Provider struct {
	engine  *repo.Engine
	overlay *repo.Overlay
	bus     *events.Bus
}

// NewProvider creates a repository provider.
func NewProvider(engine *repo.Engine, bus *events.Bus) *Provider {
	return &Provider{
		engine:  engine,
		overlay: repo.NewOverlay(),
		bus:     bus,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "repo",
		Name:        "Repository Service",
		Description: "Version-control status, staging overlay, commits and diffs over the external git tool",
		Category:    types.CategoryRepo,
		Capabilities: []string{
			"status",
			"staging",
			"commit",
			"diff",
			"branches",
			"log",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "repo.is_repository":
		return p.isRepository(params)
	case "repo.refresh":
		return p.refresh(ctx, params)
	case "repo.status":
		return statusResult(p.overlay.Current())
	case "repo.stage":
		return p.stage(params)
	case "repo.unstage":
		return p.unstage(params)
	case "repo.stage_all":
		p.overlay.StageAll()
		return statusResult(p.overlay.Current())
	case "repo.unstage_all":
		p.overlay.UnstageAll()
		return statusResult(p.overlay.Current())
	case "repo.add":
		return p.add(ctx, params)
	case "repo.restore":
		return p.restore(ctx, params)
	case "repo.commit":
		return p.commit(ctx, params)
	case "repo.diff":
		return p.diff(ctx, params)
	case "repo.branches":
		return p.branches(ctx, params)
	case "repo.current_branch":
		return p.currentBranch(ctx, params)
	case "repo.log":
		return p.log(ctx, params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	pathParam := types.Parameter{Name: "path", Type: "string", Description: "Repository path", Required: true}

	return []types.Tool{
		{
			ID:          "repo.is_repository",
			Name:        "Is Repository",
			Description: "Check whether a path holds version-control metadata",
			Parameters:  []types.Parameter{pathParam},
			Returns:     "boolean",
		},
		{
			ID:          "repo.refresh",
			Name:        "Refresh Status",
			Description: "Recompute the authoritative status, discarding optimistic staging",
			Parameters:  []types.Parameter{pathParam},
			Returns:     "status",
		},
		{
			ID:          "repo.status",
			Name:        "Current Status",
			Description: "Return the current status including optimistic staging",
			Parameters:  []types.Parameter{},
			Returns:     "status",
		},
		{
			ID:          "repo.stage",
			Name:        "Stage File",
			Description: "Optimistically mark a file staged without invoking the tool",
			Parameters: []types.Parameter{
				{Name: "file", Type: "string", Description: "File path", Required: true},
			},
			Returns: "status",
		},
		{
			ID:          "repo.unstage",
			Name:        "Unstage File",
			Description: "Optimistically mark a file unstaged without invoking the tool",
			Parameters: []types.Parameter{
				{Name: "file", Type: "string", Description: "File path", Required: true},
			},
			Returns: "status",
		},
		{
			ID:          "repo.stage_all",
			Name:        "Stage All",
			Description: "Optimistically stage every unstaged and untracked entry",
			Parameters:  []types.Parameter{},
			Returns:     "status",
		},
		{
			ID:          "repo.unstage_all",
			Name:        "Unstage All",
			Description: "Optimistically unstage every staged entry",
			Parameters:  []types.Parameter{},
			Returns:     "status",
		},
		{
			ID:          "repo.add",
			Name:        "Add to Index",
			Description: "Stage files in the tool's index (whole tree when no files given)",
			Parameters: []types.Parameter{
				pathParam,
				{Name: "files", Type: "array", Description: "Files to add", Required: false},
			},
			Returns: "success",
		},
		{
			ID:          "repo.restore",
			Name:        "Restore from Index",
			Description: "Unstage files in the tool's index (everything when no files given)",
			Parameters: []types.Parameter{
				pathParam,
				{Name: "files", Type: "array", Description: "Files to restore", Required: false},
			},
			Returns: "success",
		},
		{
			ID:          "repo.commit",
			Name:        "Commit",
			Description: "Commit the staged set; fails with the tool's stderr on non-zero exit",
			Parameters: []types.Parameter{
				pathParam,
				{Name: "message", Type: "string", Description: "Commit message", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "repo.diff",
			Name:        "Diff",
			Description: "Raw diff for one file or the whole tree",
			Parameters: []types.Parameter{
				pathParam,
				{Name: "file", Type: "string", Description: "Limit the diff to one file", Required: false},
			},
			Returns: "diff_text",
		},
		{
			ID:          "repo.branches",
			Name:        "List Branches",
			Description: "List local branches, marking the current one",
			Parameters:  []types.Parameter{pathParam},
			Returns:     "branches",
		},
		{
			ID:          "repo.current_branch",
			Name:        "Current Branch",
			Description: "Name of the checked-out branch",
			Parameters:  []types.Parameter{pathParam},
			Returns:     "branch_name",
		},
		{
			ID:          "repo.log",
			Name:        "Commit Log",
			Description: "Most recent commits, newest first",
			Parameters: []types.Parameter{
				pathParam,
				{Name: "limit", Type: "number", Description: "Maximum commits to return", Required: false},
			},
			Returns: "commits",
		},
	}
}

func requirePath(params map[string]interface{}) (string, error) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("path is required")
	}
	return path, nil
}

func (p *Provider) isRepository(params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"is_repository": p.engine.IsRepository(path)})
}

func (p *Provider) refresh(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}

	status, err := p.engine.Refresh(ctx, path)
	if err != nil {
		return types.Failure(err.Error())
	}

	p.overlay.Replace(status)
	p.bus.Publish(events.Event{
		Type:  events.TypeRepoStatus,
		Topic: Topic,
		Data:  statusData(status),
	})
	return statusResult(status)
}

func (p *Provider) stage(params map[string]interface{}) (*types.Result, error) {
	file, ok := params["file"].(string)
	if !ok {
		return nil, fmt.Errorf("file is required")
	}
	p.overlay.Stage(file)
	return statusResult(p.overlay.Current())
}

func (p *Provider) unstage(params map[string]interface{}) (*types.Result, error) {
	file, ok := params["file"].(string)
	if !ok {
		return nil, fmt.Errorf("file is required")
	}
	p.overlay.Unstage(file)
	return statusResult(p.overlay.Current())
}

func (p *Provider) add(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}
	if err := p.engine.Add(ctx, path, fileList(params)...); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) restore(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}
	if err := p.engine.Restore(ctx, path, fileList(params)...); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) commit(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}
	message, _ := params["message"].(string)

	if err := p.engine.Commit(ctx, path, message); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) diff(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}
	file, _ := params["file"].(string)

	diff, err := p.engine.Diff(ctx, path, file)
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"diff": diff})
}

func (p *Provider) branches(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}

	branches, err := p.engine.Branches(ctx, path)
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"branches": branches})
}

func (p *Provider) currentBranch(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}

	branch, err := p.engine.CurrentBranch(ctx, path)
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"branch": branch})
}

func (p *Provider) log(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	path, err := requirePath(params)
	if err != nil {
		return nil, err
	}

	limit := 0
	if l, ok := params["limit"].(float64); ok {
		limit = int(l)
	}

	commits, err := p.engine.Log(ctx, path, limit)
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"commits": commits})
}

func fileList(params map[string]interface{}) []string {
	raw, ok := params["files"].([]interface{})
	if !ok {
		return nil
	}
	files := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			files = append(files, s)
		}
	}
	return files
}

func statusData(s *repo.Status) map[string]interface{} {
	return map[string]interface{}{
		"staged":    s.Staged,
		"unstaged":  s.Unstaged,
		"untracked": s.Untracked,
	}
}

func statusResult(s *repo.Status) (*types.Result, error) {
	return types.Success(statusData(s))
}
