package tokens

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var oidcScopes = []string{
	"codewhisperer:completions",
	"codewhisperer:analysis",
	"codewhisperer:conversations",
	"codewhisperer:transformations",
	"codewhisperer:taskassist",
}

func (m *Manager) refreshSocial(ctx context.Context, creds Credentials, region string) (grant, error) {
	status, body, err := m.postJSON(ctx, baseURL(m.opts.SocialBaseURL, region)+"/refreshToken",
		map[string]string{"refreshToken": creds.RefreshToken})
	return parseGrant(MethodSocial, status, body, err)
}

func (m *Manager) refreshOIDC(ctx context.Context, creds Credentials, region string) (grant, error) {
	client, err := m.oidcClient(ctx, creds, region)
	if err != nil {
		return grant{}, err
	}
	status, body, err := m.postJSON(ctx, baseURL(m.opts.OIDCBaseURL, region)+"/token", map[string]string{
		"clientId":     client.ID,
		"clientSecret": client.Secret,
		"grantType":    "refresh_token",
		"refreshToken": creds.RefreshToken,
	})
	return parseGrant(MethodIDC, status, body, err)
}

// oidcClient resolves the client to refresh with: the credential's own
// client, then the in-process cache, then the local SSO cache file, and
// finally a fresh registration.
func (m *Manager) oidcClient(ctx context.Context, creds Credentials, region string) (OIDCClient, error) {
	if creds.ClientID != "" && creds.ClientSecret != "" {
		return OIDCClient{ID: creds.ClientID, Secret: creds.ClientSecret}, nil
	}
	key := creds.ClientIDHash
	if key == "" {
		key = "region:" + region
	}
	if cl, ok := m.opts.Clients.Get(key); ok {
		return cl, nil
	}
	if cl, ok := m.opts.Clients.LoadFile(creds.ClientIDHash); ok {
		m.opts.Clients.Put(key, cl)
		return cl, nil
	}

	m.logger.Warn("no OIDC client found, registering a new one; refresh may fail for tokens issued to another client",
		"region", region, "client_id_hash", creds.ClientIDHash)
	status, body, err := m.postJSON(ctx, baseURL(m.opts.OIDCBaseURL, region)+"/client/register", map[string]any{
		"clientName": "Kiro",
		"clientType": "public",
		"scopes":     oidcScopes,
		"grantTypes": []string{"urn:ietf:params:oauth:grant-type:device_code", "refresh_token"},
		"issuerUrl":  "https://view.awsapps.com/start",
	})
	if err != nil {
		return OIDCClient{}, &RefreshError{Method: MethodIDC, Op: "register_client", Cause: err}
	}
	if status != http.StatusOK {
		return OIDCClient{}, &RefreshError{Method: MethodIDC, Op: "register_client", StatusCode: status, Body: string(body)}
	}
	cl := OIDCClient{
		ID:     gjson.GetBytes(body, "clientId").String(),
		Secret: gjson.GetBytes(body, "clientSecret").String(),
	}
	if cl.ID == "" || cl.Secret == "" {
		return OIDCClient{}, &RefreshError{Method: MethodIDC, Op: "register_client", Message: "response has no client credentials", Body: string(body)}
	}
	m.opts.Clients.Put(key, cl)
	return cl, nil
}

func parseGrant(method Method, status int, body []byte, err error) (grant, error) {
	if err != nil {
		return grant{}, &RefreshError{Method: method, Op: "refresh", Cause: err}
	}
	if status != http.StatusOK {
		return grant{}, &RefreshError{Method: method, Op: "refresh", StatusCode: status, Body: string(body)}
	}
	if !gjson.ValidBytes(body) {
		return grant{}, &RefreshError{Method: method, Op: "parse", Message: "response is not JSON", Body: string(body)}
	}
	g := grant{
		AccessToken:  gjson.GetBytes(body, "accessToken").String(),
		RefreshToken: gjson.GetBytes(body, "refreshToken").String(),
		ExpiresIn:    time.Duration(gjson.GetBytes(body, "expiresIn").Int()) * time.Second,
	}
	if g.AccessToken == "" {
		return grant{}, &RefreshError{Method: method, Op: "parse", Message: "response has no access token"}
	}
	if g.ExpiresIn <= 0 {
		g.ExpiresIn = DefaultExpiresIn
	}
	return g, nil
}
