package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge/workbench/internal/auth"
	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/device", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"device_code":      "dc-1",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/activate",
			"expires_in":       300,
			"interval":         1,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "authorization_pending"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.AuthConfig{
		ClientID:      "client-1",
		DeviceCodeURL: srv.URL + "/device",
		TokenURL:      srv.URL + "/token",
		UserURL:       srv.URL + "/user",
	}

	bus := events.New()
	t.Cleanup(bus.Close)
	flow := auth.NewFlow(auth.NewClient(cfg), bus, logging.NewNop(), monitoring.NewMetrics())
	t.Cleanup(flow.Cancel)
	return NewProvider(flow)
}

func TestStartCancelStatus(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	status, err := p.Execute(ctx, "auth.status", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "idle", status.Data["state"])

	started, err := p.Execute(ctx, "auth.start_device_flow", nil, nil)
	require.NoError(t, err)
	require.True(t, started.Success)
	assert.Equal(t, "ABCD-1234", started.Data["user_code"])
	assert.Equal(t, "https://example.com/activate", started.Data["verification_uri"])

	cancelled, err := p.Execute(ctx, "auth.cancel", nil, nil)
	require.NoError(t, err)
	assert.True(t, cancelled.Success)

	require.Eventually(t, func() bool {
		status, err := p.Execute(ctx, "auth.status", nil, nil)
		return err == nil && status.Data["state"] == "cancelled"
	}, time.Second, 10*time.Millisecond)
}

func TestStartFailureIsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	bus := events.New()
	t.Cleanup(bus.Close)
	cfg := config.AuthConfig{ClientID: "c", DeviceCodeURL: srv.URL, TokenURL: srv.URL, UserURL: srv.URL}
	p := NewProvider(auth.NewFlow(auth.NewClient(cfg), bus, logging.NewNop(), monitoring.NewMetrics()))

	result, err := p.Execute(context.Background(), "auth.start_device_flow", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
}

func TestUnknownTool(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.Execute(context.Background(), "auth.refresh_token", nil, nil)
	assert.Error(t, err)
}
