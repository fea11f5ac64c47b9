package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
)

// Topic is the event bus topic all flow events are published on.
const Topic = "auth"

// State is one node of the attempt state machine.
type State string

const (
	StateIdle       State = "idle"
	StateCodeIssued State = "code_issued"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateDenied     State = "denied"
	StateExpired    State = "expired"
	StateErrored    State = "errored"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transition occurs for the attempt.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateDenied, StateExpired, StateErrored, StateCancelled:
		return true
	}
	return false
}

// slowDownIncrement is added to the poll interval on every slow_down
// response. The interval never decreases within an attempt.
const slowDownIncrement = 5 * time.Second

// defaultPollSeconds is used when the server omits the poll interval,
// which the device-grant protocol permits.
const defaultPollSeconds = 5

// AttemptInfo is returned by Start once the user code is issued.
type AttemptInfo struct {
	AttemptID       string    `json:"attempt_id"`
	UserCode        string    `json:"user_code"`
	VerificationURI string    `json:"verification_uri"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Snapshot is the externally visible flow state.
type Snapshot struct {
	AttemptID       string        `json:"attempt_id,omitempty"`
	State           State         `json:"state"`
	UserCode        string        `json:"user_code,omitempty"`
	VerificationURI string        `json:"verification_uri,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at,omitempty"`
	Interval        time.Duration `json:"-"`
	Message         string        `json:"message,omitempty"`
}

// Flow runs device-authorization attempts. All mutable attempt state
// (interval, expiry, identity) lives in named fields under one mutex;
// a poll tick may only commit its outcome while its attempt identity is
// still current, which is how supersession and cancellation discard
// stale in-flight results.
type Flow struct {
	client  *Client
	bus     *events.Bus
	log     *logging.Logger
	metrics *monitoring.Metrics

	// slowDown is slowDownIncrement and unit is the scale of the
	// server's interval value (one second on the wire); fields so tests
	// can shrink them.
	slowDown time.Duration
	unit     time.Duration

	mu              sync.Mutex
	attemptID       string
	state           State
	interval        time.Duration
	expiresAt       time.Time
	deviceCode      string
	userCode        string
	verificationURI string
	message         string
}

// NewFlow creates a device-authorization flow.
func NewFlow(client *Client, bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics) *Flow {
	return &Flow{
		client:   client,
		bus:      bus,
		log:      log.Named("auth"),
		metrics:  metrics,
		slowDown: slowDownIncrement,
		unit:     time.Second,
		state:    StateIdle,
	}
}

// Start begins a new attempt, superseding any previous one. It requests
// the device/user code pair synchronously, publishes the user code
// exactly once, and polls on a background goroutine. The returned info
// carries everything the user needs to approve the attempt.
func (f *Flow) Start(ctx context.Context) (*AttemptInfo, error) {
	f.mu.Lock()
	id := uuid.NewString()
	// Installing the new identity up front abandons the previous
	// attempt: its in-flight ticks can no longer commit.
	f.attemptID = id
	f.state = StateIdle
	f.message = ""
	f.mu.Unlock()

	f.metrics.AuthAttempts.Inc()

	dc, err := f.client.RequestDeviceCode(ctx)
	if err != nil {
		f.finish(id, StateErrored, err.Error())
		return nil, err
	}

	// An omitted interval decodes as zero; a zero or negative value must
	// not turn the loop into a busy poll against the token endpoint.
	interval := time.Duration(dc.Interval) * f.unit
	if dc.Interval <= 0 {
		interval = defaultPollSeconds * f.unit
	}
	expiresAt := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	f.mu.Lock()
	if f.attemptID != id {
		// Superseded while the code request was in flight.
		f.mu.Unlock()
		return nil, context.Canceled
	}
	f.state = StateCodeIssued
	f.interval = interval
	f.expiresAt = expiresAt
	f.deviceCode = dc.DeviceCode
	f.userCode = dc.UserCode
	f.verificationURI = dc.VerificationURI
	f.mu.Unlock()

	f.log.Info("device code issued",
		zap.String("attempt_id", id),
		zap.String("user_code", dc.UserCode),
		zap.Time("expires_at", expiresAt),
	)
	f.publishStatus(StateCodeIssued, map[string]interface{}{
		"user_code":        dc.UserCode,
		"verification_uri": dc.VerificationURI,
	})

	go f.poll(id, dc.DeviceCode)

	return &AttemptInfo{
		AttemptID:       id,
		UserCode:        dc.UserCode,
		VerificationURI: dc.VerificationURI,
		ExpiresAt:       expiresAt,
	}, nil
}

// Cancel moves a non-terminal attempt to Cancelled and halts further
// polling. A tick already in flight completes against the server but
// its result is discarded. No-op when no attempt is active or the
// attempt already reached a terminal state.
func (f *Flow) Cancel() {
	f.mu.Lock()
	if f.attemptID == "" || f.state.Terminal() {
		f.mu.Unlock()
		return
	}
	// Rotating the identity is what actually stops the loop.
	f.attemptID = uuid.NewString()
	f.state = StateCancelled
	f.message = ""
	f.mu.Unlock()

	f.metrics.AuthOutcomes.WithLabelValues(string(StateCancelled)).Inc()
	f.log.Info("attempt cancelled")
	f.publishStatus(StateCancelled, nil)
}

// Status returns the current flow state.
func (f *Flow) Status() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		AttemptID:       f.attemptID,
		State:           f.state,
		UserCode:        f.userCode,
		VerificationURI: f.verificationURI,
		ExpiresAt:       f.expiresAt,
		Interval:        f.interval,
		Message:         f.message,
	}
}

// poll drives one attempt to a terminal state. Each iteration sleeps
// the current interval, re-checks the client-side expiry bound, then
// issues one token request.
func (f *Flow) poll(id, deviceCode string) {
	f.mu.Lock()
	if f.attemptID == id {
		f.state = StatePolling
	}
	f.mu.Unlock()

	for {
		f.mu.Lock()
		current := f.attemptID == id
		wait := f.interval
		expiresAt := f.expiresAt
		f.mu.Unlock()
		if !current {
			return
		}

		time.Sleep(wait)

		// Hard client-side bound, independent of server-reported expiry.
		if !time.Now().Before(expiresAt) {
			f.finish(id, StateExpired, "")
			return
		}
		if !f.isCurrent(id) {
			return
		}

		tok, err := f.client.PollToken(context.Background(), deviceCode)
		f.metrics.AuthPolls.Inc()
		if err != nil {
			f.finish(id, StateErrored, err.Error())
			return
		}

		switch tok.Error {
		case "":
			f.succeed(id, tok)
			return
		case "authorization_pending":
			// Keep polling.
		case "slow_down":
			f.increaseInterval(id)
		case "expired_token":
			f.finish(id, StateExpired, "")
			return
		case "access_denied":
			f.finish(id, StateDenied, "")
			return
		default:
			msg := tok.ErrorDescription
			if msg == "" {
				msg = tok.Error
			}
			f.finish(id, StateErrored, msg)
			return
		}
	}
}

func (f *Flow) isCurrent(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attemptID == id
}

func (f *Flow) increaseInterval(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attemptID == id {
		f.interval += f.slowDown
	}
}

// finish commits a terminal state if the attempt is still current and
// not already terminal, then publishes it. Returns whether this call
// performed the transition.
func (f *Flow) finish(id string, state State, message string) bool {
	f.mu.Lock()
	if f.attemptID != id || f.state.Terminal() {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.message = message
	f.mu.Unlock()

	f.metrics.AuthOutcomes.WithLabelValues(string(state)).Inc()
	f.log.Info("attempt finished",
		zap.String("attempt_id", id),
		zap.String("state", string(state)),
		zap.String("message", message),
	)

	data := map[string]interface{}{}
	if message != "" {
		data["message"] = message
	}
	f.publishStatus(state, data)
	return true
}

// succeed fetches the user profile and delivers the token. The token is
// what makes the attempt Succeeded; a profile fetch failure is logged
// but does not demote the outcome.
func (f *Flow) succeed(id string, tok *TokenResponse) {
	user, err := f.client.FetchUser(context.Background(), tok.AccessToken)
	if err != nil {
		f.log.Warn("user profile fetch failed", zap.Error(err))
	}

	if !f.finish(id, StateSucceeded, "") {
		return
	}

	data := map[string]interface{}{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"scope":        tok.Scope,
	}
	if user != nil {
		data["user"] = user
	}
	f.bus.Publish(events.Event{
		Type:  events.TypeAuthResult,
		Topic: Topic,
		Data:  data,
	})
}

func (f *Flow) publishStatus(state State, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["state"] = string(state)
	f.bus.Publish(events.Event{
		Type:  events.TypeAuthStatus,
		Topic: Topic,
		Data:  data,
	})
}
