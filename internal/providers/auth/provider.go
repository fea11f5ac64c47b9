package auth

import (
	"context"
	"fmt"

	"github.com/devforge/workbench/internal/auth"
	"github.com/devforge/workbench/internal/shared/types"
)

// Provider exposes the device-authorization flow as service tools.
type Provider struct {
	flow *auth.Flow
}

// NewProvider creates an auth provider over an existing flow.
func NewProvider(flow *auth.Flow) *Provider {
	return &Provider{flow: flow}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "auth",
		Name:        "Authorization Service",
		Description: "OAuth device-authorization flow against the configured provider",
		Category:    types.CategoryAuth,
		Capabilities: []string{
			"device_flow",
			"polling",
			"cancellation",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, _ map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "auth.start_device_flow":
		return p.start(ctx)
	case "auth.cancel":
		p.flow.Cancel()
		return types.Success(map[string]interface{}{"success": true})
	case "auth.status":
		return p.status()
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "auth.start_device_flow",
			Name:        "Start Device Flow",
			Description: "Begin a device-authorization attempt, superseding any previous one",
			Parameters:  []types.Parameter{},
			Returns:     "attempt_info",
		},
		{
			ID:          "auth.cancel",
			Name:        "Cancel",
			Description: "Cancel the active attempt; results of in-flight polls are discarded",
			Parameters:  []types.Parameter{},
			Returns:     "success",
		},
		{
			ID:          "auth.status",
			Name:        "Status",
			Description: "Current attempt state",
			Parameters:  []types.Parameter{},
			Returns:     "flow_status",
		},
	}
}

func (p *Provider) start(ctx context.Context) (*types.Result, error) {
	info, err := p.flow.Start(ctx)
	if err != nil {
		return types.Failure(err.Error())
	}

	return types.Success(map[string]interface{}{
		"attempt_id":       info.AttemptID,
		"user_code":        info.UserCode,
		"verification_uri": info.VerificationURI,
		"expires_at":       info.ExpiresAt,
	})
}

func (p *Provider) status() (*types.Result, error) {
	snap := p.flow.Status()

	data := map[string]interface{}{
		"state": string(snap.State),
	}
	if snap.UserCode != "" {
		data["user_code"] = snap.UserCode
		data["verification_uri"] = snap.VerificationURI
		data["expires_at"] = snap.ExpiresAt
	}
	if snap.Message != "" {
		data["message"] = snap.Message
	}
	return types.Success(data)
}
