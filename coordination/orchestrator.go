package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/internal/ctxkeys"
	"github.com/BaSui01/agentroute/internal/metrics"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/retry"
	"github.com/BaSui01/agentroute/routing"
	"github.com/BaSui01/agentroute/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Transport delivers one message to one agent and returns its response. The
// orchestrator assumes nothing about the mechanism: an in-process call, an
// RPC, or a queue all work. Implementations must honor ctx cancellation.
type Transport interface {
	Deliver(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error)

// Deliver implements Transport.
func (f TransportFunc) Deliver(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
	return f(ctx, agentID, msg)
}

// Config tunes the orchestrator.
type Config struct {
	// DefaultTimeout bounds a delivery when the coordination spec does not
	// set its own.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// DefaultRetry is applied to retryable direct failures when the spec
	// carries no policy.
	DefaultRetry *retry.Policy `json:"default_retry" yaml:"default_retry"`
}

// DefaultConfig returns the standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 10 * time.Second,
		DefaultRetry:   retry.DefaultPolicy(),
	}
}

// Orchestrator executes messages per their coordination mode.
type Orchestrator struct {
	resolver  *Resolver
	engine    *routing.Engine
	reg       *registry.Registry
	transport Transport
	collector *metrics.Collector
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer

	now func() time.Time
}

// NewOrchestrator wires the orchestrator. The collector and tracer may be
// nil; a nil logger is replaced with a nop logger.
func NewOrchestrator(
	reg *registry.Registry,
	engine *routing.Engine,
	transport Transport,
	collector *metrics.Collector,
	cfg Config,
	logger *zap.Logger,
	tracer trace.Tracer,
) *Orchestrator {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.DefaultRetry == nil {
		cfg.DefaultRetry = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("agentroute")
	}
	return &Orchestrator{
		resolver:  NewResolver(reg, logger),
		engine:    engine,
		reg:       reg,
		transport: transport,
		collector: collector,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "orchestrator")),
		tracer:    tracer,
		now:       time.Now,
	}
}

// Dispatch executes the message end to end and always returns a response:
// failures come back as {success: false, error}. Expired messages and
// malformed specs are rejected before any delivery is attempted.
func (o *Orchestrator) Dispatch(ctx context.Context, msg *a2a.A2AMessage) *a2a.Response {
	start := o.now()

	spec := msg.Coordination
	if spec == nil {
		spec = &a2a.CoordinationSpec{Mode: a2a.ModeDirect, Direct: &a2a.DirectSpec{}}
	}

	ctx, span := o.tracer.Start(ctx, "agentroute.dispatch", trace.WithAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("coordination.mode", string(spec.Mode)),
	))
	defer span.End()

	ctx = ctxkeys.WithCoordinationMode(ctx, string(spec.Mode))

	resp := o.dispatch(ctx, msg, spec)
	resp.CorrelationID = msg.ID
	resp.Metadata.ProcessingTime = o.now().Sub(start)

	if o.collector != nil {
		var err error
		if resp.Error != nil {
			err = resp.Error
		}
		o.collector.RecordDispatch(spec.Mode, resp.Metadata.ProcessingTime, err)
	}
	if resp.Error != nil {
		o.logger.Warn("dispatch failed",
			zap.String("message_id", msg.ID),
			zap.String("mode", string(spec.Mode)),
			zap.Bool("cancelled", resp.Cancelled),
			zap.Error(resp.Error),
		)
	}
	return resp
}

func (o *Orchestrator) dispatch(ctx context.Context, msg *a2a.A2AMessage, spec *a2a.CoordinationSpec) *a2a.Response {
	if err := msg.Validate(); err != nil {
		return a2a.ErrorResponse(msg, types.New(types.KindValidation, "invalid message").
			WithCode(types.CodeInvalidSpec).
			WithCause(err))
	}
	if msg.Expired(o.now()) {
		return a2a.ErrorResponse(msg, types.Newf(types.KindValidation, "message %s expired", msg.ID).
			WithCode(types.CodeMessageExpired))
	}
	if err := spec.Validate(); err != nil {
		return a2a.ErrorResponse(msg, types.New(types.KindValidation, "invalid coordination spec").
			WithCode(types.CodeInvalidSpec).
			WithCause(err))
	}

	switch spec.Mode {
	case a2a.ModeDirect:
		return o.dispatchDirect(ctx, msg, spec.Direct)
	case a2a.ModeBroadcast:
		return o.dispatchBroadcast(ctx, msg, spec.Broadcast)
	case a2a.ModeConsensus:
		return o.dispatchConsensus(ctx, msg, spec.Consensus)
	default:
		return o.dispatchPipeline(ctx, msg, spec.Pipeline)
	}
}

// targetFromMessage derives a target spec from the message recipients.
func targetFromMessage(msg *a2a.A2AMessage) a2a.TargetSpec {
	switch {
	case msg.To.IsBroadcast():
		return a2a.BroadcastTarget(nil, true)
	case msg.To.IsMultiple():
		return a2a.MultipleTargets(a2a.ExecParallel, msg.To.List()...)
	default:
		single, _ := msg.To.Single()
		return a2a.SingleTarget(single)
	}
}

// timeoutOr returns the spec timeout, or the orchestrator default when the
// spec leaves it unset.
func (o *Orchestrator) timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return o.cfg.DefaultTimeout
}

// deliver performs one transport call under a deadline and normalizes its
// failure into the error taxonomy.
func (o *Orchestrator) deliver(ctx context.Context, agentID string, msg *a2a.A2AMessage, timeout time.Duration) (*a2a.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx = ctxkeys.WithMessageID(ctx, msg.ID)
	ctx = ctxkeys.WithTargetAgent(ctx, agentID)

	resp, err := o.transport.Deliver(ctx, agentID, msg.CloneFor(agentID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, types.Newf(types.KindTimeout, "delivery to %q timed out after %s", agentID, timeout).
				WithCode(types.CodeDeliveryTimeout).
				WithAgent(agentID).
				WithCause(err)
		}
		var typed *types.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, types.Newf(types.KindInternal, "delivery to %q failed", agentID).
			WithAgent(agentID).
			WithCause(err)
	}
	if resp == nil {
		return nil, types.Newf(types.KindProtocol, "agent %q returned no response", agentID).
			WithAgent(agentID)
	}
	if !resp.Success {
		err := resp.Error
		if err == nil {
			err = types.Newf(types.KindInternal, "agent %q reported failure", agentID).WithAgent(agentID)
		}
		return resp, err
	}
	return resp, nil
}
