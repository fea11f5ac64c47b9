package terminal

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/devforge/workbench/internal/shared/id"
	"github.com/devforge/workbench/internal/shared/types"
	"github.com/devforge/workbench/internal/term"
)

// Provider exposes terminal session operations as service tools.
type Provider struct {
	manager *term.Manager
}

// NewProvider creates a terminal provider over an existing manager.
func NewProvider(manager *term.Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Interactive shell sessions with PTY support",
		Category:    types.CategoryTerminal,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"sessions",
			"resize",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(_ context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_session":
		return p.createSession(params)
	case "terminal.write":
		return p.write(params)
	case "terminal.read":
		return p.read(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.kill":
		return p.kill(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "terminal.create_session",
			Name:        "Create Terminal Session",
			Description: "Create a new interactive terminal session; spawn failures arrive on the session's event stream",
			Parameters: []types.Parameter{
				{Name: "shell", Type: "string", Description: "Shell to use. Defaults to the configured or login shell", Required: false},
				{Name: "working_dir", Type: "string", Description: "Initial working directory. Falls back to home", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns", Required: false},
				{Name: "rows", Type: "number", Description: "Terminal height in rows", Required: false},
				{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send input to a session; unknown handles are ignored",
			Parameters: []types.Parameter{
				{Name: "handle", Type: "string", Description: "Session handle", Required: true},
				{Name: "input", Type: "string", Description: "Input to send", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.read",
			Name:        "Read from Terminal",
			Description: "Drain buffered output from a session",
			Parameters: []types.Parameter{
				{Name: "handle", Type: "string", Description: "Session handle", Required: true},
			},
			Returns: "output_data",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions; unknown handles are ignored",
			Parameters: []types.Parameter{
				{Name: "handle", Type: "string", Description: "Session handle", Required: true},
				{Name: "cols", Type: "number", Description: "New width in columns", Required: true},
				{Name: "rows", Type: "number", Description: "New height in rows", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.kill",
			Name:        "Kill Terminal Session",
			Description: "Terminate a session; idempotent, unknown handles are ignored",
			Parameters: []types.Parameter{
				{Name: "handle", Type: "string", Description: "Session handle", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Terminal Sessions",
			Description: "List all live sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Session Info",
			Description: "Get information about one session",
			Parameters: []types.Parameter{
				{Name: "handle", Type: "string", Description: "Session handle", Required: true},
			},
			Returns: "session_info",
		},
	}
}

func (p *Provider) createSession(params map[string]interface{}) (*types.Result, error) {
	shell, _ := params["shell"].(string)
	workingDir, _ := params["working_dir"].(string)

	var cols, rows int
	if c, ok := params["cols"].(float64); ok {
		cols = int(c)
	}
	if r, ok := params["rows"].(float64); ok {
		rows = int(r)
	}

	env := make(map[string]string)
	if envMap, ok := params["env"].(map[string]interface{}); ok {
		for k, v := range envMap {
			if str, ok := v.(string); ok {
				env[k] = str
			}
		}
	}

	handle := p.manager.Create(term.Options{
		Shell:      shell,
		WorkingDir: workingDir,
		Cols:       cols,
		Rows:       rows,
		Env:        env,
	})

	info, err := p.manager.Get(handle)
	if err != nil {
		// Spawn failed fast enough that the handle is already gone; the
		// failure details are on the event stream.
		return types.Success(map[string]interface{}{"handle": handle.String()})
	}

	return types.Success(sessionData(info))
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(string)
	if !ok {
		return nil, fmt.Errorf("handle is required")
	}
	input, ok := params["input"].(string)
	if !ok {
		return nil, fmt.Errorf("input is required")
	}

	p.manager.Write(id.TermID(handle), []byte(input))
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(string)
	if !ok {
		return nil, fmt.Errorf("handle is required")
	}

	output, err := p.manager.Read(id.TermID(handle))
	if err != nil {
		return nil, err
	}

	return types.Success(map[string]interface{}{
		"output":        string(output),
		"output_base64": base64.StdEncoding.EncodeToString(output),
		"length":        len(output),
	})
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(string)
	if !ok {
		return nil, fmt.Errorf("handle is required")
	}
	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}
	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}

	p.manager.Resize(id.TermID(handle), int(cols), int(rows))
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(string)
	if !ok {
		return nil, fmt.Errorf("handle is required")
	}

	p.manager.Kill(id.TermID(handle))
	return types.Success(map[string]interface{}{"success": true})
}

func (p *Provider) listSessions() (*types.Result, error) {
	infos := p.manager.List()
	sessions := make([]map[string]interface{}, 0, len(infos))
	for _, info := range infos {
		sessions = append(sessions, sessionData(info))
	}

	return types.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(string)
	if !ok {
		return nil, fmt.Errorf("handle is required")
	}

	info, err := p.manager.Get(id.TermID(handle))
	if err != nil {
		return nil, err
	}
	return types.Success(sessionData(info))
}

func sessionData(info term.Info) map[string]interface{} {
	return map[string]interface{}{
		"handle":      info.Handle,
		"shell":       info.Shell,
		"working_dir": info.WorkingDir,
		"cols":        info.Cols,
		"rows":        info.Rows,
		"created_at":  info.CreatedAt,
		"active":      info.Active,
	}
}
