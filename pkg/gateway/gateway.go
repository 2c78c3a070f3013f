package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/telemetry/tracing"
	"kiro-hq/gateway/pkg/tokens"
	"kiro-hq/gateway/pkg/translate"
	"kiro-hq/gateway/pkg/upstream"
)

const tracerName = "kiro-hq/gateway/pkg/gateway"

// Config holds orchestrator settings.
type Config struct {
	// Thinking allows the synthetic reasoning mode.
	// Default: true
	Thinking bool

	// ThinkingBudget is the max_thinking_length used when the caller sets none.
	// Default: 4000
	ThinkingBudget int

	// MaxConcurrentStreams bounds the number of in-flight upstream calls.
	// Default: 256
	MaxConcurrentStreams int64

	// StreamBuffer is the number of decoded events queued between the
	// upstream reader and the client writer.
	// Default: 64
	StreamBuffer int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		Thinking:             true,
		ThinkingBudget:       translate.DefaultThinkingBudget,
		MaxConcurrentStreams: 256,
		StreamBuffer:         64,
	}
}

// Observer receives per-request measurements. It is satisfied by
// metrics.Collector.
type Observer interface {
	ObserveRequest(protocol, model, outcome string, status int, latency time.Duration)
	ObserveUsage(protocol, model string, inputTokens, outputTokens int, credits float64)
}

// Components are the collaborators a Gateway drives. Recorder and Observer
// are optional.
type Components struct {
	Pool     *pool.Pool
	Tokens   *tokens.Manager
	Upstream *upstream.Client
	Resolver *models.Resolver
	Recorder *audit.Recorder
	Observer Observer
	Logger   *slog.Logger
}

// Gateway is the per-request orchestrator.
type Gateway struct {
	config *Config
	c      Components
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Gateway. A nil config uses DefaultConfig.
func New(config *Config, c Components) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrentStreams <= 0 {
		config.MaxConcurrentStreams = DefaultConfig().MaxConcurrentStreams
	}
	if config.StreamBuffer <= 0 {
		config.StreamBuffer = DefaultConfig().StreamBuffer
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config: config,
		c:      c,
		sem:    semaphore.NewWeighted(config.MaxConcurrentStreams),
		logger: logger.With("component", "gateway"),
		now:    time.Now,
	}
}

// Call is a prepared request: model resolved, payload built, account chosen
// and token obtained.
type Call struct {
	ID       string
	Inbound  *Inbound
	Resolved models.ResolveResult
	Account  pool.Record

	// Meta configures the responder that will consume the upstream events.
	Meta translate.Meta

	payload  []byte
	token    string
	response []byte
	span     trace.Span
	start    time.Time
}

// Prepare resolves the model, translates the request, selects an account and
// obtains its access token. A failure has already been reported when Prepare
// returns it.
func (g *Gateway) Prepare(ctx context.Context, in *Inbound) (*Call, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(tracing.AttrProtocol, string(in.Protocol)),
			attribute.String(tracing.AttrRequestedModel, in.Model),
			attribute.Bool(tracing.AttrStream, in.Stream),
		),
	)

	call := &Call{ID: in.RequestID, Inbound: in, span: span, start: g.now()}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}

	call.Resolved = g.c.Resolver.Resolve(in.Model)
	thinking := g.config.Thinking && (call.Resolved.Thinking || in.Thinking)
	echo := in.Model
	if echo == "" {
		echo = call.Resolved.ModelID
	}
	call.Meta = translate.Meta{
		Model:     echo,
		MaxTokens: g.c.Resolver.MaxTokens(call.Resolved.ModelID),
		Thinking:  thinking,
	}

	tr, err := in.translate(translate.Options{
		ModelID:        call.Resolved.ModelID,
		Thinking:       thinking,
		ThinkingBudget: g.config.ThinkingBudget,
	})
	if err != nil {
		return nil, g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}
	call.Meta.Tools = tr.Tools

	account, err := g.c.Pool.SelectNext()
	if err != nil {
		return nil, g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}
	call.Account = account
	span.SetAttributes(attribute.String(tracing.AttrAccountID, account.ID))

	if creds, err := tokens.ParseCredentials(account.Credentials); err == nil {
		tr.Payload.ProfileARN = creds.ProfileARN
	}
	call.payload, err = tr.Marshal()
	if err != nil {
		return nil, g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}

	call.token, err = g.c.Tokens.AccessToken(ctx, account.ID, account.Credentials, account.AuthMethod)
	if err != nil {
		return nil, g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}
	return call, nil
}

// Complete runs a prepared call to the end, feeding every event to c, and
// returns the encoded response body.
func (g *Gateway) Complete(ctx context.Context, call *Call, c translate.Collector) ([]byte, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithCancel(trace.ContextWithSpan(ctx, call.span))
	defer cancel()

	var handleErr error
	info, err := g.c.Upstream.CallStream(callCtx, call.payload, call.token, func(ev eventstream.Event) {
		if handleErr != nil {
			return
		}
		if handleErr = c.Handle(ev); handleErr != nil {
			cancel()
		}
	})
	if handleErr != nil {
		err = handleErr
	}
	if err == nil {
		call.response, err = c.Body()
	}
	if err != nil {
		return nil, g.finish(ctx, call, c.Summary(), info, err)
	}
	return call.response, g.finish(ctx, call, c.Summary(), info, nil)
}

// Stream runs a prepared call, writing events to s as they arrive. The
// upstream is read on its own goroutine so decoding and client writes
// overlap; the goroutine holds a slot of the stream semaphore and is
// abandoned when ctx ends.
//
// Nothing is written to s before the first upstream event, so a failure that
// happens before then is returned undelivered and the caller can still
// answer with an error status. Later failures are written with s.Fail and
// returned with Delivered set.
func (g *Gateway) Stream(ctx context.Context, call *Call, s translate.Stream) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return g.finish(ctx, call, translate.Summary{}, upstream.CallInfo{}, err)
	}

	callCtx, cancel := context.WithCancel(trace.ContextWithSpan(ctx, call.span))
	defer cancel()

	type result struct {
		info upstream.CallInfo
		err  error
	}
	events := make(chan eventstream.Event, g.config.StreamBuffer)
	done := make(chan result, 1)

	go func() {
		defer g.sem.Release(1)
		defer close(events)
		info, err := g.c.Upstream.CallStream(callCtx, call.payload, call.token, func(ev eventstream.Event) {
			select {
			case events <- ev:
			case <-callCtx.Done():
			}
		})
		done <- result{info: info, err: err}
	}()

	started := false
	var handleErr error
	for ev := range events {
		if handleErr != nil {
			continue
		}
		if !started {
			if err := s.Begin(); err != nil {
				handleErr = errors.Join(ErrClientGone, err)
				cancel()
				continue
			}
			started = true
		}
		if err := s.Handle(ev); err != nil {
			var evErr *translate.EventError
			if errors.As(err, &evErr) {
				handleErr = err
			} else {
				handleErr = errors.Join(ErrClientGone, err)
			}
			cancel()
		}
	}
	res := <-done

	err := res.err
	if handleErr != nil {
		err = handleErr
	}

	gwErr := Classify(err)
	if gwErr != nil && started && gwErr.Kind != KindCanceled {
		if ferr := s.Fail(gwErr.Status, gwErr.Message); ferr != nil {
			g.logger.Debug("failed to write stream error", "trace_id", call.ID, "error", ferr)
		}
		gwErr.Delivered = true
	}
	if gwErr == nil {
		return g.finish(ctx, call, s.Summary(), res.info, nil)
	}
	return g.finish(ctx, call, s.Summary(), res.info, gwErr)
}

// finish reports the outcome of a call to the pool, the token manager, the
// audit recorder, the observer and the request span. It returns the
// classified error, or nil.
func (g *Gateway) finish(ctx context.Context, call *Call, sum translate.Summary, info upstream.CallInfo, err error) error {
	ctx = context.WithoutCancel(ctx)
	latency := g.now().Sub(call.start)
	gwErr := Classify(err)

	if call.Account.ID != "" {
		g.settle(ctx, call, sum, gwErr)
	}

	status := http.StatusOK
	outcome := "success"
	if gwErr != nil {
		status = gwErr.Status
		outcome = gwErr.Kind.String()
	}

	if g.c.Recorder != nil {
		t := g.trace(call, sum, info, latency, status, gwErr)
		if rerr := g.c.Recorder.Record(t); rerr != nil {
			g.logger.Debug("audit trace not recorded", "trace_id", call.ID, "error", rerr)
		}
	}

	if g.c.Observer != nil {
		protocol := string(call.Inbound.Protocol)
		g.c.Observer.ObserveRequest(protocol, call.Resolved.ModelID, outcome, status, latency)
		if gwErr == nil {
			g.c.Observer.ObserveUsage(protocol, call.Resolved.ModelID, sum.InputTokens, sum.OutputTokens, sum.Credits)
		}
	}

	call.span.SetAttributes(
		attribute.String(tracing.AttrResolvedModel, call.Resolved.ModelID),
		attribute.String(tracing.AttrEndpoint, info.Endpoint),
		attribute.Int(tracing.AttrInputTokens, sum.InputTokens),
		attribute.Int(tracing.AttrOutputTokens, sum.OutputTokens),
		attribute.Int(tracing.AttrHTTPStatus, status),
	)
	if gwErr != nil {
		call.span.SetAttributes(attribute.String(tracing.AttrErrorKind, gwErr.Kind.String()))
		call.span.RecordError(gwErr)
		call.span.SetStatus(codes.Error, gwErr.Message)
	}
	call.span.End()

	attrs := []any{
		"trace_id", call.ID,
		"protocol", call.Inbound.Protocol,
		"model", call.Inbound.Model,
		"resolved_model", call.Resolved.ModelID,
		"account_id", call.Account.ID,
		"stream", call.Inbound.Stream,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	}
	if gwErr == nil {
		attrs = append(attrs,
			"input_tokens", sum.InputTokens,
			"output_tokens", sum.OutputTokens,
			"credits", sum.Credits,
			"estimated", sum.Estimated,
		)
		g.logger.Info("request completed", attrs...)
		return nil
	}

	attrs = append(attrs, "error_kind", gwErr.Kind.String(), "error", gwErr.Message)
	if gwErr.Kind == KindCanceled || gwErr.Kind == KindTranslation {
		g.logger.Info("request ended", attrs...)
	} else {
		g.logger.Warn("request failed", attrs...)
	}
	return gwErr
}

// settle updates the account and its cached token after a call.
func (g *Gateway) settle(ctx context.Context, call *Call, sum translate.Summary, gwErr *Error) {
	id := call.Account.ID
	if gwErr == nil {
		g.c.Pool.ReportSuccess(ctx, id, sum.InputTokens, sum.OutputTokens, sum.Credits)
		return
	}

	switch gwErr.Kind {
	case KindAuthentication:
		g.c.Tokens.Invalidate(id)
		g.c.Pool.ReportFailure(ctx, id, false)

		var refreshErr *tokens.RefreshError
		if errors.As(gwErr, &refreshErr) && refreshRejected(refreshErr.StatusCode) {
			if err := g.c.Pool.SetStatus(ctx, id, pool.StatusInvalid); err != nil {
				g.logger.Error("failed to mark account invalid", "account_id", id, "error", err)
			} else {
				g.logger.Warn("account marked invalid after refresh was rejected",
					"account_id", id,
					"status", refreshErr.StatusCode,
				)
			}
		}

	case KindUpstream:
		g.c.Pool.ReportFailure(ctx, id, gwErr.RateLimited)
	}
}

// refreshRejected reports whether the auth service refused the refresh token
// itself, as opposed to failing transiently.
func refreshRejected(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden
}

func (g *Gateway) trace(call *Call, sum translate.Summary, info upstream.CallInfo, latency time.Duration, status int, gwErr *Error) *audit.Trace {
	in := call.Inbound
	t := &audit.Trace{
		ID:              call.ID,
		Time:            call.start,
		Protocol:        string(in.Protocol),
		Path:            in.Path,
		RequestedModel:  in.Model,
		ResolvedModel:   call.Resolved.ModelID,
		Stream:          in.Stream,
		AccountID:       call.Account.ID,
		Endpoint:        info.Endpoint,
		UpstreamStatus:  info.Status,
		Attempts:        info.Attempts,
		InputTokens:     sum.InputTokens,
		OutputTokens:    sum.OutputTokens,
		Credits:         sum.Credits,
		ToolCalls:       sum.ToolCalls,
		Latency:         latency,
		Status:          status,
		ClientIP:        in.ClientIP,
		APIKey:          in.APIKey,
		RequestBody:     string(in.Body),
		UpstreamPayload: string(call.payload),
		ResponseBody:    string(call.response),
	}
	if gwErr != nil {
		t.Error = gwErr.Message
		t.ErrorKind = gwErr.Kind.String()
		var upErr *upstream.Error
		if errors.As(gwErr, &upErr) {
			t.Endpoint = upErr.Endpoint
			t.UpstreamStatus = upErr.StatusCode
			t.Attempts = upErr.Attempts
		}
	}
	return t
}
