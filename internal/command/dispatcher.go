package command

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Transport delivers one envelope to the backend command endpoint.
type Transport interface {
	Send(ctx context.Context, env Envelope) (Response, error)
}

// Observer receives dispatch outcomes. Implemented by internal/metrics.
type Observer interface {
	CommandDispatched(cmdType Type, outcome string)
}

// Dispatch outcomes reported to the Observer.
const (
	OutcomeSuccess   = "success"
	OutcomeGated     = "gated"
	OutcomeTransport = "transport_error"
	OutcomeRejected  = "rejected"
)

// RetryConfig bounds Retry. Only transport failures are retried.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry policy used for user-initiated resends.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Dispatcher sends envelopes through the gate and transport. Every failure
// path collapses into a Response with Success=false; Dispatch never returns
// an error.
type Dispatcher struct {
	gate      GateChecker
	transport Transport
	observer  Observer
	logger    *log.Entry
}

// NewDispatcher creates a Dispatcher. observer and logger may be nil.
func NewDispatcher(gate GateChecker, transport Transport, observer Observer, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "dispatcher")
	}
	return &Dispatcher{gate: gate, transport: transport, observer: observer, logger: logger}
}

// Dispatch sends env once.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) Response {
	resp, _ := d.dispatch(ctx, env)
	return resp
}

// Retry resends the same envelope while the failure is a transport error.
// The command id is never regenerated, so the backend applies the effect at
// most once no matter how many attempts reach it.
func (d *Dispatcher) Retry(ctx context.Context, env Envelope, cfg RetryConfig) Response {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay

	var resp Response
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		var outcome string
		resp, outcome = d.dispatch(ctx, env)
		if outcome != OutcomeTransport || attempt == cfg.MaxAttempts {
			return resp
		}

		d.logger.WithFields(log.Fields{
			"command_id": env.CommandID,
			"attempt":    attempt,
			"delay":      delay,
		}).Warn("retrying command after transport failure")

		select {
		case <-ctx.Done():
			return Failure(env.CommandID, CodeNetworkError, ctx.Err().Error())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, env Envelope) (Response, string) {
	cmdType := Type("")
	if env.Payload != nil {
		cmdType = env.Payload.CommandType()
	}
	entry := d.logger.WithFields(log.Fields{
		"command_id": env.CommandID,
		"type":       cmdType,
	})

	if status := d.gate.Check(); !status.CanExecute {
		entry.WithField("reason", status.Reason).Warn("command blocked by gate")
		d.observe(cmdType, OutcomeGated)
		return Failure(env.CommandID, CodeInternalError, status.Reason), OutcomeGated
	}

	resp, err := d.transport.Send(ctx, env)
	if err != nil {
		entry.WithError(err).Error("command transport failed")
		d.observe(cmdType, OutcomeTransport)
		return Failure(env.CommandID, CodeNetworkError, err.Error()), OutcomeTransport
	}

	if resp.CommandID == "" {
		resp.CommandID = env.CommandID
	}
	if !resp.Success {
		if resp.Error == nil || resp.Error.Code == "" {
			msg := "command rejected without error detail"
			if resp.Error != nil && resp.Error.Message != "" {
				msg = resp.Error.Message
			}
			resp.Error = &ErrorInfo{Code: CodeInternalError, Message: msg}
		}
		entry.WithFields(log.Fields{
			"code":    resp.Error.Code,
			"message": resp.Error.Message,
		}).Error("command rejected by backend")
		d.observe(cmdType, OutcomeRejected)
		return resp, OutcomeRejected
	}

	d.observe(cmdType, OutcomeSuccess)
	return resp, OutcomeSuccess
}

func (d *Dispatcher) observe(t Type, outcome string) {
	if d.observer != nil {
		d.observer.CommandDispatched(t, outcome)
	}
}
