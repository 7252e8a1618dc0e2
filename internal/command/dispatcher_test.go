package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	sendFn func(ctx context.Context, env Envelope) (Response, error)
	sent   []Envelope
}

func (m *mockTransport) Send(ctx context.Context, env Envelope) (Response, error) {
	m.sent = append(m.sent, env)
	return m.sendFn(ctx, env)
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) CommandDispatched(_ Type, outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func okTransport() *mockTransport {
	return &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Response{CommandID: env.CommandID, Success: true}, nil
	}}
}

func testEnvelope() Envelope {
	return fixedBuilder("cmd-x").Build(nil, AddOrderNote{OrderID: "o-1", Note: "no ice"})
}

func TestDispatch_Success(t *testing.T) {
	tr := okTransport()
	obs := &recordingObserver{}
	d := NewDispatcher(NewGate(), tr, obs, nil)

	resp := d.Dispatch(context.Background(), testEnvelope())

	assert.True(t, resp.Success)
	assert.Equal(t, "cmd-x", resp.CommandID)
	assert.Len(t, tr.sent, 1)
	assert.Equal(t, []string{OutcomeSuccess}, obs.outcomes)
}

func TestDispatch_GateBlocksWithoutSending(t *testing.T) {
	for _, tt := range []struct {
		name   string
		setup  func(g *Gate)
		reason string
	}{
		{"syncing", func(g *Gate) { g.SetSyncing(true) }, ReasonSyncing},
		{"disconnected", func(g *Gate) { g.SetConnected(false) }, ReasonDisconnected},
	} {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate()
			tt.setup(gate)
			tr := okTransport()
			d := NewDispatcher(gate, tr, nil, nil)

			resp := d.Dispatch(context.Background(), testEnvelope())

			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeInternalError, resp.Error.Code)
			assert.Equal(t, tt.reason, resp.Error.Message)
			assert.Empty(t, tr.sent)
		})
	}
}

func TestGate_SyncingWinsAndClears(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Check().CanExecute)

	g.SetConnected(false)
	g.SetSyncing(true)
	assert.Equal(t, ReasonSyncing, g.Check().Reason)

	g.SetSyncing(false)
	assert.Equal(t, ReasonDisconnected, g.Check().Reason)

	g.SetConnected(true)
	assert.Equal(t, GateStatus{CanExecute: true}, g.Check())
}

func TestDispatch_TransportErrorCollapses(t *testing.T) {
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Response{}, errors.New("connection refused")
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Dispatch(context.Background(), testEnvelope())

	assert.False(t, resp.Success)
	assert.Equal(t, "cmd-x", resp.CommandID)
	assert.Equal(t, CodeNetworkError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestDispatch_BackendFailureKeepsCode(t *testing.T) {
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Failure(env.CommandID, CodeOrderNotFound, "no such order"), nil
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Dispatch(context.Background(), testEnvelope())

	assert.Equal(t, CodeOrderNotFound, resp.Error.Code)
}

func TestDispatch_BackendFailureWithoutCode(t *testing.T) {
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Response{CommandID: env.CommandID, Success: false}, nil
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Dispatch(context.Background(), testEnvelope())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestRetry_ReusesCommandID(t *testing.T) {
	calls := 0
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		calls++
		if calls < 3 {
			return Response{}, errors.New("timeout")
		}
		return Response{CommandID: env.CommandID, Success: true}, nil
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Retry(context.Background(), testEnvelope(), RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, BackoffFactor: 2})

	assert.True(t, resp.Success)
	require.Len(t, tr.sent, 3)
	for _, env := range tr.sent {
		assert.Equal(t, "cmd-x", env.CommandID)
	}
}

func TestRetry_StopsOnBackendRejection(t *testing.T) {
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Failure(env.CommandID, CodeConflict, "order changed"), nil
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Retry(context.Background(), testEnvelope(), RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	assert.Equal(t, CodeConflict, resp.Error.Code)
	assert.Len(t, tr.sent, 1)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	tr := &mockTransport{sendFn: func(ctx context.Context, env Envelope) (Response, error) {
		return Response{}, errors.New("unreachable")
	}}
	d := NewDispatcher(NewGate(), tr, nil, nil)

	resp := d.Retry(context.Background(), testEnvelope(), RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})

	assert.Equal(t, CodeNetworkError, resp.Error.Code)
	assert.Len(t, tr.sent, 2)
}

func TestEnsureSuccess(t *testing.T) {
	require.NoError(t, EnsureSuccess(Response{Success: true}, "add items"))

	err := EnsureSuccess(Failure("cmd-1", CodeOrderNotActive, "order is completed"), "add items")
	require.Error(t, err)

	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeOrderNotActive, ce.Code)
	assert.Equal(t, "cmd-1", ce.CommandID)
	assert.Equal(t, "add items", ce.Context)
	assert.ErrorIs(t, err, &CommandError{Code: CodeOrderNotActive})
	assert.NotErrorIs(t, err, &CommandError{Code: CodeConflict})
	assert.Equal(t, CodeOrderNotActive, CodeOf(err))
	assert.False(t, ce.Retryable())
}

func TestEnsureSuccess_MissingErrorDetail(t *testing.T) {
	err := EnsureSuccess(Response{CommandID: "c", Success: false}, "void")
	assert.Equal(t, CodeInternalError, CodeOf(err))
}

func TestGate_DefaultOpen(t *testing.T) {
	g := NewGate()
	assert.Equal(t, GateStatus{CanExecute: true}, g.Check())

	g.SetSyncing(true)
	g.SetConnected(false)
	assert.Equal(t, ReasonSyncing, g.Check().Reason)

	g.SetSyncing(false)
	assert.Equal(t, ReasonDisconnected, g.Check().Reason)

	g.SetConnected(true)
	assert.True(t, g.Check().CanExecute)
}
