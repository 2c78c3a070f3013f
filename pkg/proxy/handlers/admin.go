package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/storage"
	"kiro-hq/gateway/pkg/tokens"
	"kiro-hq/gateway/pkg/translate"
	"kiro-hq/gateway/pkg/upstream"
)

const maxAdminBody = 1 << 20

// AdminDeps are the components the admin surface operates on. Tokens,
// Upstream, Traces, Recorder and Keys may be nil; the routes that need them
// then answer 503.
type AdminDeps struct {
	Pool     *pool.Pool
	Tokens   *tokens.Manager
	Upstream *upstream.Client
	Resolver *models.Resolver
	Traces   audit.Store
	Recorder *audit.Recorder
	Keys     storage.KeyStore
	Logger   *slog.Logger
}

// AdminHandler serves the management API mounted under /admin.
type AdminHandler struct {
	AdminDeps
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "admin")
	return &AdminHandler{AdminDeps: deps}
}

// Routes returns the admin router. Authentication is applied by the caller.
func (h *AdminHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/accounts", h.listAccounts)
	r.Post("/accounts", h.addAccount)
	r.Delete("/accounts/{id}", h.removeAccount)
	r.Post("/accounts/{id}/status", h.setAccountStatus)
	r.Get("/accounts/{id}/usage", h.accountUsage)
	r.Get("/accounts/{id}/models", h.accountModels)

	r.Get("/stats", h.stats)
	r.Post("/models/refresh", h.refreshModels)
	r.Get("/logs", h.logs)
	r.Get("/live", h.live)

	r.Get("/keys", h.listKeys)
	r.Post("/keys", h.addKey)
	r.Delete("/keys/{key}", h.removeKey)

	return r
}

type accountView struct {
	pool.Record
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func (h *AdminHandler) listAccounts(w http.ResponseWriter, r *http.Request) {
	records := h.Pool.List()
	out := make([]accountView, 0, len(records))
	for _, rec := range records {
		v := accountView{Record: rec}
		if h.Tokens != nil {
			if exp, ok := h.Tokens.ExpiresAt(rec.ID); ok {
				v.TokenExpiresAt = &exp
			}
		}
		out = append(out, v)
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]any{"data": out})
}

// addAccountRequest accepts credentials either as a JSON object or as a
// string holding one.
type addAccountRequest struct {
	Name        string          `json:"name"`
	Credentials json.RawMessage `json:"credentials"`
	AuthMethod  string          `json:"auth_method"`
}

func (h *AdminHandler) addAccount(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if !decodeAdmin(w, r, &req) {
		return
	}

	raw := string(req.Credentials)
	if strings.HasPrefix(strings.TrimSpace(raw), `"`) {
		var s string
		if err := json.Unmarshal(req.Credentials, &s); err != nil {
			adminError(w, http.StatusBadRequest, "credentials must be an object or a JSON string", types.CodeInvalidValue)
			return
		}
		raw = s
	}
	creds, err := tokens.ParseCredentials(raw)
	if err != nil {
		adminError(w, http.StatusBadRequest, err.Error(), types.CodeInvalidValue)
		return
	}
	if creds.RefreshToken == "" {
		adminError(w, http.StatusBadRequest, "credentials must contain a refreshToken", types.CodeMissingField)
		return
	}
	if req.AuthMethod == "" {
		req.AuthMethod = "social"
	}
	if _, err := tokens.ParseMethod(req.AuthMethod); err != nil {
		adminError(w, http.StatusBadRequest, err.Error(), types.CodeInvalidValue)
		return
	}
	if req.Name == "" {
		req.Name = "account"
	}

	rec, err := h.Pool.Add(r.Context(), req.Name, raw, req.AuthMethod)
	if err != nil {
		h.Logger.Error("failed to add account", "error", err)
		adminError(w, http.StatusInternalServerError, "failed to add account", types.CodeInternalError)
		return
	}
	_ = proxy.WriteJSONResponse(w, http.StatusCreated, rec)
}

func (h *AdminHandler) removeAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := h.Pool.Remove(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to remove account", "account_id", id, "error", err)
		adminError(w, http.StatusInternalServerError, "failed to remove account", types.CodeInternalError)
		return
	}
	if !removed {
		adminError(w, http.StatusNotFound, pool.ErrNotFound.Error(), types.CodeNotFound)
		return
	}
	if h.Tokens != nil {
		h.Tokens.Invalidate(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) setAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeAdmin(w, r, &req) {
		return
	}
	status, err := pool.ParseStatus(req.Status)
	if err != nil {
		adminError(w, http.StatusBadRequest, err.Error(), types.CodeInvalidValue)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Pool.SetStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, pool.ErrNotFound) {
			adminError(w, http.StatusNotFound, err.Error(), types.CodeNotFound)
			return
		}
		adminError(w, http.StatusInternalServerError, "failed to update account", types.CodeInternalError)
		return
	}
	rec, _ := h.Pool.Get(id)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, rec)
}

// upstreamToken resolves the account named in the route and obtains an
// access token for it. It writes the error response itself and reports
// false on failure.
func (h *AdminHandler) upstreamToken(ctx context.Context, w http.ResponseWriter, r *http.Request, what string) (pool.Record, string, bool) {
	if h.Tokens == nil || h.Upstream == nil {
		adminError(w, http.StatusServiceUnavailable, what+" lookups are not configured", types.CodeServiceUnavailable)
		return pool.Record{}, "", false
	}
	rec, ok := h.Pool.Get(chi.URLParam(r, "id"))
	if !ok {
		adminError(w, http.StatusNotFound, pool.ErrNotFound.Error(), types.CodeNotFound)
		return pool.Record{}, "", false
	}
	token, err := h.Tokens.AccessToken(ctx, rec.ID, rec.Credentials, rec.AuthMethod)
	if err != nil {
		h.Logger.Warn(what+" lookup failed to authenticate", "account_id", rec.ID, "error", err)
		adminError(w, http.StatusBadGateway, "failed to obtain access token: "+err.Error(), types.CodeUpstreamError)
		return pool.Record{}, "", false
	}
	return rec, token, true
}

func (h *AdminHandler) accountUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	rec, token, ok := h.upstreamToken(ctx, w, r, "usage")
	if !ok {
		return
	}
	usage, err := h.Upstream.GetUsageLimits(ctx, token)
	if err != nil {
		h.Logger.Warn("usage lookup failed", "account_id", rec.ID, "error", err)
		adminError(w, http.StatusBadGateway, "failed to fetch usage limits: "+err.Error(), types.CodeUpstreamError)
		return
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, usage)
}

type upstreamModelView struct {
	ID string `json:"id"`
	// Listed reports whether the id is in the local catalogue.
	Listed bool `json:"listed"`
}

type accountModelsView struct {
	AccountID string              `json:"account_id"`
	Models    []upstreamModelView `json:"models"`
}

// accountModels lists the models the upstream offers to one account, marked
// against the local catalogue so missing entries stand out.
func (h *AdminHandler) accountModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	rec, token, ok := h.upstreamToken(ctx, w, r, "model")
	if !ok {
		return
	}
	var profileARN string
	if creds, err := tokens.ParseCredentials(rec.Credentials); err == nil {
		profileARN = creds.ProfileARN
	}
	ids, err := h.Upstream.ListAvailableModels(ctx, token, profileARN)
	if err != nil {
		h.Logger.Warn("model lookup failed", "account_id", rec.ID, "error", err)
		adminError(w, http.StatusBadGateway, "failed to list upstream models: "+err.Error(), types.CodeUpstreamError)
		return
	}

	view := accountModelsView{AccountID: rec.ID, Models: make([]upstreamModelView, 0, len(ids))}
	for _, id := range ids {
		listed := false
		if h.Resolver != nil {
			_, listed = h.Resolver.Model(id)
		}
		view.Models = append(view.Models, upstreamModelView{ID: id, Listed: listed})
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, view)
}

type statsView struct {
	Pool     pool.Stats     `json:"pool"`
	Models   int            `json:"models"`
	Recorder *recorderStats `json:"recorder,omitempty"`
}

type recorderStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	v := statsView{Pool: h.Pool.Stats()}
	if h.Resolver != nil {
		v.Models = len(h.Resolver.ListModels())
	}
	if h.Recorder != nil {
		written, dropped, failed := h.Recorder.Stats()
		v.Recorder = &recorderStats{Written: written, Dropped: dropped, Failed: failed}
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, v)
}

func (h *AdminHandler) refreshModels(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		adminError(w, http.StatusServiceUnavailable, "model catalogue is not configured", types.CodeServiceUnavailable)
		return
	}
	if err := h.Resolver.Refresh(r.Context()); err != nil {
		h.Logger.Error("model refresh failed", "error", err)
		adminError(w, http.StatusInternalServerError, "failed to refresh models", types.CodeInternalError)
		return
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]int{"models": len(h.Resolver.ListModels())})
}

func (h *AdminHandler) logs(w http.ResponseWriter, r *http.Request) {
	if h.Traces == nil {
		adminError(w, http.StatusServiceUnavailable, "request log is not configured", types.CodeServiceUnavailable)
		return
	}
	q, err := parseTraceQuery(r)
	if err != nil {
		adminError(w, http.StatusBadRequest, err.Error(), types.CodeInvalidValue)
		return
	}

	traces, err := h.Traces.QueryTraces(r.Context(), q)
	if err != nil {
		h.Logger.Error("trace query failed", "error", err)
		adminError(w, http.StatusInternalServerError, "failed to query request log", types.CodeInternalError)
		return
	}
	total, err := h.Traces.CountTraces(r.Context(), q)
	if err != nil {
		h.Logger.Error("trace count failed", "error", err)
		adminError(w, http.StatusInternalServerError, "failed to query request log", types.CodeInternalError)
		return
	}
	if traces == nil {
		traces = []*audit.Trace{}
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]any{"total": total, "data": traces})
}

// parseTraceQuery reads the log filters from the query string. Times are
// RFC 3339.
func parseTraceQuery(r *http.Request) (audit.Query, error) {
	v := r.URL.Query()
	q := audit.Query{
		AccountID:  v.Get("account_id"),
		Model:      v.Get("model"),
		Protocol:   v.Get("protocol"),
		Status:     v.Get("status"),
		WithBodies: v.Get("bodies") == "true",
	}
	switch q.Status {
	case "", "success", "error":
	default:
		return q, errors.New("status must be success or error")
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if s := v.Get(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return q, errors.New(name + " must be a non-negative integer")
			}
			*dst = n
		}
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}

	for name, dst := range map[string]**time.Time{"since": &q.Since, "until": &q.Until} {
		if s := v.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return q, errors.New(name + " must be an RFC 3339 timestamp")
			}
			*dst = &t
		}
	}
	return q, nil
}

func (h *AdminHandler) listKeys(w http.ResponseWriter, r *http.Request) {
	if h.Keys == nil {
		adminError(w, http.StatusServiceUnavailable, "key store is not configured", types.CodeServiceUnavailable)
		return
	}
	keys, err := h.Keys.ListAPIKeys(r.Context())
	if err != nil {
		adminError(w, http.StatusInternalServerError, "failed to list keys", types.CodeInternalError)
		return
	}
	for i := range keys {
		keys[i].Key = audit.RedactAPIKey(keys[i].Key)
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]any{"data": keys})
}

func (h *AdminHandler) addKey(w http.ResponseWriter, r *http.Request) {
	if h.Keys == nil {
		adminError(w, http.StatusServiceUnavailable, "key store is not configured", types.CodeServiceUnavailable)
		return
	}
	var req struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if !decodeAdmin(w, r, &req) {
		return
	}
	if len(req.Key) < 8 {
		adminError(w, http.StatusBadRequest, "key must be at least 8 characters", types.CodeInvalidValue)
		return
	}
	key := storage.APIKey{Key: req.Key, Name: req.Name, Enabled: true, CreatedAt: time.Now()}
	if err := h.Keys.InsertAPIKey(r.Context(), key); err != nil {
		h.Logger.Error("failed to add api key", "error", err)
		adminError(w, http.StatusInternalServerError, "failed to add key", types.CodeInternalError)
		return
	}
	key.Key = audit.RedactAPIKey(key.Key)
	_ = proxy.WriteJSONResponse(w, http.StatusCreated, key)
}

func (h *AdminHandler) removeKey(w http.ResponseWriter, r *http.Request) {
	if h.Keys == nil {
		adminError(w, http.StatusServiceUnavailable, "key store is not configured", types.CodeServiceUnavailable)
		return
	}
	if err := h.Keys.DeleteAPIKey(r.Context(), chi.URLParam(r, "key")); err != nil {
		adminError(w, http.StatusInternalServerError, "failed to delete key", types.CodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeAdmin(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody))
	if err := dec.Decode(v); err != nil {
		adminError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), types.CodeInvalidJSON)
		return false
	}
	return true
}

func adminError(w http.ResponseWriter, status int, message, code string) {
	_ = proxy.WriteError(w, translate.ProtocolOpenAI, status, message, code)
}
