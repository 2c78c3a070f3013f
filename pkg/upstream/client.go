package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/telemetry/tracing"
)

const (
	// CodeWhispererEndpoint is the primary streaming endpoint.
	CodeWhispererEndpoint = "https://codewhisperer.us-east-1.amazonaws.com/generateAssistantResponse"

	// AmazonQEndpoint is the failover streaming endpoint.
	AmazonQEndpoint = "https://q.us-east-1.amazonaws.com/generateAssistantResponse"

	// DefaultKiroVersion is advertised in the user agent when none is configured.
	DefaultKiroVersion = "0.8.0"

	sdkVersion     = "1.0.27"
	readBufferSize = 8192
	maxErrorBody   = 64 << 10
)

// DefaultEndpoints returns the streaming endpoints in failover order.
func DefaultEndpoints() []string {
	return []string{CodeWhispererEndpoint, AmazonQEndpoint}
}

// Options configures a Client.
type Options struct {
	// Endpoints are tried in order. Defaults to DefaultEndpoints.
	Endpoints []string

	// MaxRetries is the number of retries per endpoint after the first attempt.
	MaxRetries int

	// BaseDelay is the backoff unit; attempt k waits BaseDelay * 2^k.
	BaseDelay time.Duration

	// Timeout bounds a whole call including the streamed body. Zero means none.
	Timeout time.Duration

	// ProxyURL routes upstream traffic through an HTTP proxy when set.
	ProxyURL string

	// KiroVersion and MachineID are advertised in the user agent headers.
	KiroVersion string
	MachineID   string

	// RESTBaseURL overrides the REST helper host.
	RESTBaseURL string

	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnAttempt observes every HTTP attempt. status is 0 on transport failure.
	OnAttempt func(endpoint string, status int)

	Logger *slog.Logger
}

// CallInfo describes how a successful call was served.
type CallInfo struct {
	Endpoint string
	Status   int
	Attempts int
}

// Client talks to the upstream chat service.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// New creates an upstream client.
func New(opts Options) (*Client, error) {
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.KiroVersion == "" {
		opts.KiroVersion = DefaultKiroVersion
	}
	if opts.MachineID == "" {
		opts.MachineID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if opts.RESTBaseURL == "" {
		opts.RESTBaseURL = "https://codewhisperer.us-east-1.amazonaws.com"
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := opts.HTTPClient
	if client == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
		if opts.ProxyURL != "" {
			u, err := url.Parse(opts.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy url: %w", err)
			}
			transport.Proxy = http.ProxyURL(u)
		}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	return &Client{opts: opts, http: client, logger: logger.With("component", "upstream")}, nil
}

// MachineID returns the identifier advertised in the user agent.
func (c *Client) MachineID() string {
	return c.opts.MachineID
}

// Endpoints returns the configured streaming endpoints.
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.opts.Endpoints...)
}

// Backoff returns the wait before retry k (0-based): base * 2^k.
func Backoff(base time.Duration, k int) time.Duration {
	return base * time.Duration(int64(1)<<uint(k))
}

// CallStream sends payload and forwards decoded events to onEvent until the
// stream completes. It returns *Error when every attempt failed, a
// *StreamError when the body broke mid-stream, or the context error when ctx
// ended first.
func (c *Client) CallStream(ctx context.Context, payload []byte, token string, onEvent eventstream.Handler) (CallInfo, error) {
	ctx, span := otel.Tracer("kiro-hq/gateway/pkg/upstream").Start(ctx, "upstream.call")
	defer span.End()

	info, err := c.callStream(ctx, payload, token, onEvent)
	span.SetAttributes(
		attribute.String(tracing.AttrEndpoint, info.Endpoint),
		attribute.Int(tracing.AttrStatus, info.Status),
		attribute.Int(tracing.AttrAttempts, info.Attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return info, err
}

func (c *Client) callStream(ctx context.Context, payload []byte, token string, onEvent eventstream.Handler) (CallInfo, error) {
	var info CallInfo
	maxAttempts := c.opts.MaxRetries + 1

	for epIdx, endpoint := range c.opts.Endpoints {
		lastEndpoint := epIdx == len(c.opts.Endpoints)-1

	attempts:
		for attempt := 0; attempt < maxAttempts; attempt++ {
			info.Endpoint = endpoint
			info.Attempts++

			resp, err := c.send(ctx, endpoint, payload, token, attempt+1, maxAttempts)
			if err != nil {
				if ctx.Err() != nil {
					return info, ctx.Err()
				}
				info.Status = 0
				c.observe(ctx, endpoint, 0)
				c.logger.Warn("upstream request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
				if attempt < c.opts.MaxRetries {
					if err := c.backoff(ctx, attempt, 0); err != nil {
						return info, err
					}
					continue
				}
				return info, &Error{Endpoint: endpoint, Attempts: info.Attempts, Cause: err}
			}

			info.Status = resp.StatusCode
			c.observe(ctx, endpoint, resp.StatusCode)

			if resp.StatusCode == http.StatusOK {
				err := c.consume(ctx, resp.Body, onEvent)
				resp.Body.Close()
				if err != nil {
					if ctx.Err() != nil {
						return info, ctx.Err()
					}
					return info, &StreamError{Endpoint: endpoint, Cause: err}
				}
				return info, nil
			}

			body := readErrorBody(resp)
			uerr := &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: body, Attempts: info.Attempts}

			switch {
			case uerr.IsAuth():
				return info, uerr

			case uerr.IsRateLimit():
				if !lastEndpoint {
					c.logger.Warn("endpoint rate limited, failing over", "endpoint", endpoint)
					break attempts
				}
				if attempt < c.opts.MaxRetries {
					if err := c.backoff(ctx, attempt, resp.StatusCode); err != nil {
						return info, err
					}
					continue
				}
				return info, uerr

			case resp.StatusCode >= http.StatusInternalServerError:
				if attempt < c.opts.MaxRetries {
					if err := c.backoff(ctx, attempt, resp.StatusCode); err != nil {
						return info, err
					}
					continue
				}
				return info, uerr

			default:
				return info, uerr
			}
		}
	}

	// Only reachable with no endpoints configured.
	return info, &Error{Attempts: info.Attempts, Cause: errors.New("no upstream endpoints configured")}
}

func (c *Client) send(ctx context.Context, endpoint string, payload []byte, token string, attempt, maxAttempts int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("amz-sdk-request", fmt.Sprintf("attempt=%d; max=%d", attempt, maxAttempts))
	return c.http.Do(req)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	ide := "KiroIDE-" + c.opts.KiroVersion + "-" + c.opts.MachineID
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.amazon.eventstream")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-amzn-codewhisperer-optout", "true")
	req.Header.Set("x-amzn-kiro-agent-mode", "vibe")
	req.Header.Set("x-amz-user-agent", "aws-sdk-js/"+sdkVersion+" "+ide)
	req.Header.Set("User-Agent", fmt.Sprintf("aws-sdk-js/%s ua/2.1 os/%s lang/go api/codewhispererstreaming#%s m/E %s",
		sdkVersion, runtime.GOOS, sdkVersion, ide))
	req.Header.Set("amz-sdk-invocation-id", uuid.NewString())
}

// consume feeds the body to a decoder in fixed-size reads.
func (c *Client) consume(ctx context.Context, body io.Reader, onEvent eventstream.Handler) error {
	dec := eventstream.NewDecoder(onEvent)
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			dec.Finish()
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Client) backoff(ctx context.Context, attempt, status int) error {
	d := Backoff(c.opts.BaseDelay, attempt)
	c.logger.Warn("retrying upstream request", "status", status, "retry", attempt+1, "backoff", d)
	return c.opts.Sleep(ctx, d)
}

func (c *Client) observe(ctx context.Context, endpoint string, status int) {
	trace.SpanFromContext(ctx).AddEvent("upstream.attempt", trace.WithAttributes(
		attribute.String(tracing.AttrEndpoint, endpoint),
		attribute.Int(tracing.AttrStatus, status),
	))
	if c.opts.OnAttempt != nil {
		c.opts.OnAttempt(endpoint, status)
	}
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "failed to read response body: " + err.Error()
	}
	return string(data)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
