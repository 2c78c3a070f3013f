package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"kiro-hq/gateway/pkg/telemetry/tracing"
)

const (
	// RefreshThreshold is how close to expiry a cached token is refreshed.
	RefreshThreshold = 10 * time.Minute

	// DefaultExpiresIn is assumed when a refresh response omits expiresIn.
	DefaultExpiresIn = 3600 * time.Second

	// DefaultRegion is used when neither the credential nor the options name one.
	DefaultRegion = "us-east-1"

	// DefaultOIDCBaseURL is the SSO OIDC endpoint; %s is the region.
	DefaultOIDCBaseURL = "https://oidc.%s.amazonaws.com"

	// DefaultSocialBaseURL is the desktop auth endpoint; %s is the region.
	DefaultSocialBaseURL = "https://prod.%s.auth.desktop.kiro.dev"

	maxResponseBody = 1 << 20
)

// Options configures a Manager.
type Options struct {
	// Region is the fallback region for credentials without one.
	Region string

	// HTTPClient performs refresh calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// OIDCBaseURL and SocialBaseURL override the auth endpoints. A %s verb
	// is replaced with the region.
	OIDCBaseURL   string
	SocialBaseURL string

	// Clients caches registered OIDC clients. Defaults to a cache reading
	// ~/.aws/sso/cache.
	Clients *ClientCache

	// OnRotate is called after a refresh returned a different refresh token,
	// with the credentials JSON rewritten to hold it.
	OnRotate func(ctx context.Context, accountID, credentials string)

	// OnRefresh is called after every refresh attempt.
	OnRefresh func(method Method, err error)

	// Now overrides the clock in tests.
	Now func() time.Time

	Logger *slog.Logger
}

type cachedToken struct {
	access    string
	expiresAt time.Time
}

// grant is a successful refresh response.
type grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Manager issues access tokens for accounts, refreshing them on demand.
type Manager struct {
	opts   Options
	logger *slog.Logger

	tokensMu sync.RWMutex
	tokens   map[string]cachedToken

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a token manager.
func NewManager(opts Options) *Manager {
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.OIDCBaseURL == "" {
		opts.OIDCBaseURL = DefaultOIDCBaseURL
	}
	if opts.SocialBaseURL == "" {
		opts.SocialBaseURL = DefaultSocialBaseURL
	}
	if opts.Clients == nil {
		opts.Clients = NewClientCache("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:   opts,
		logger: logger.With("component", "tokens"),
		tokens: make(map[string]cachedToken),
		locks:  make(map[string]*sync.Mutex),
	}
}

// AccessToken returns a valid access token for the account, refreshing it
// if it is missing or expires within RefreshThreshold.
func (m *Manager) AccessToken(ctx context.Context, accountID, credentials, method string) (string, error) {
	if tok, ok := m.cached(accountID); ok {
		return tok, nil
	}

	lock := m.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited.
	if tok, ok := m.cached(accountID); ok {
		return tok, nil
	}
	return m.refreshLocked(ctx, accountID, credentials, method)
}

// ForceRefresh refreshes the account's token regardless of the cache.
func (m *Manager) ForceRefresh(ctx context.Context, accountID, credentials, method string) (string, error) {
	lock := m.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()
	return m.refreshLocked(ctx, accountID, credentials, method)
}

// Invalidate drops the cached token for the account.
func (m *Manager) Invalidate(accountID string) {
	m.tokensMu.Lock()
	delete(m.tokens, accountID)
	m.tokensMu.Unlock()
}

// ExpiresAt returns when the cached token expires, if one is cached.
func (m *Manager) ExpiresAt(accountID string) (time.Time, bool) {
	m.tokensMu.RLock()
	defer m.tokensMu.RUnlock()
	t, ok := m.tokens[accountID]
	return t.expiresAt, ok
}

func (m *Manager) cached(accountID string) (string, bool) {
	m.tokensMu.RLock()
	t, ok := m.tokens[accountID]
	m.tokensMu.RUnlock()
	if !ok || !m.opts.Now().Add(RefreshThreshold).Before(t.expiresAt) {
		return "", false
	}
	return t.access, true
}

func (m *Manager) lockFor(accountID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	return l
}

func (m *Manager) refreshLocked(ctx context.Context, accountID, raw, methodName string) (string, error) {
	method, err := ParseMethod(methodName)
	if err != nil {
		return "", &RefreshError{Op: "refresh", Message: err.Error()}
	}
	creds, err := ParseCredentials(raw)
	if err != nil {
		return "", &RefreshError{Method: method, Op: "parse", Cause: err}
	}
	if creds.RefreshToken == "" {
		return "", &RefreshError{Method: method, Op: "refresh", Cause: ErrMissingRefreshToken}
	}
	region := creds.Region
	if region == "" {
		region = m.opts.Region
	}

	ctx, span := otel.Tracer("kiro-hq/gateway/pkg/tokens").Start(ctx, "tokens.refresh")
	span.SetAttributes(
		attribute.String(tracing.AttrAccountID, accountID),
		attribute.String(tracing.AttrAuthMethod, method.String()),
		attribute.String(tracing.AttrAuthRegion, region),
	)
	defer span.End()

	var g grant
	switch method {
	case MethodIDC:
		g, err = m.refreshOIDC(ctx, creds, region)
	default:
		g, err = m.refreshSocial(ctx, creds, region)
	}
	if m.opts.OnRefresh != nil {
		m.opts.OnRefresh(method, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("token refresh failed", "account_id", accountID, "method", method.String(), "error", err)
		return "", err
	}

	m.tokensMu.Lock()
	m.tokens[accountID] = cachedToken{access: g.AccessToken, expiresAt: m.opts.Now().Add(g.ExpiresIn)}
	m.tokensMu.Unlock()
	m.logger.Debug("token refreshed", "account_id", accountID, "method", method.String(), "expires_in", g.ExpiresIn)

	if g.RefreshToken != "" && g.RefreshToken != creds.RefreshToken && m.opts.OnRotate != nil {
		updated, err := withRefreshToken(raw, g.RefreshToken)
		if err != nil {
			m.logger.Error("failed to rewrite rotated credentials", "account_id", accountID, "error", err)
		} else {
			m.opts.OnRotate(ctx, accountID, updated)
		}
	}
	return g.AccessToken, nil
}

func baseURL(pattern, region string) string {
	if strings.Contains(pattern, "%s") {
		return fmt.Sprintf(pattern, region)
	}
	return strings.TrimRight(pattern, "/")
}

// postJSON sends body as JSON and returns the status and response body.
func (m *Manager) postJSON(ctx context.Context, url string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
