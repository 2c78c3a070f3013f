package tokens

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Method is an account auth method.
type Method int

const (
	// MethodSocial refreshes through the desktop auth service.
	MethodSocial Method = iota + 1
	// MethodIDC refreshes through AWS SSO OIDC (IAM Identity Center and Builder ID).
	MethodIDC
)

// String returns the canonical configuration name.
func (m Method) String() string {
	switch m {
	case MethodSocial:
		return "social"
	case MethodIDC:
		return "idc"
	default:
		return "unknown"
	}
}

// ParseMethod maps an account auth method string onto a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "social":
		return MethodSocial, nil
	case "idc", "builderid":
		return MethodIDC, nil
	default:
		return 0, fmt.Errorf("unsupported auth method %q", s)
	}
}

// Credentials is the subset of the stored auth material the manager reads.
type Credentials struct {
	RefreshToken string
	Region       string
	ClientID     string
	ClientSecret string
	ClientIDHash string
	ProfileARN   string
}

// ParseCredentials reads the auth material JSON. Unknown fields are ignored.
func ParseCredentials(raw string) (Credentials, error) {
	if !gjson.Valid(raw) {
		return Credentials{}, fmt.Errorf("credentials are not valid JSON")
	}
	doc := gjson.Parse(raw)
	c := Credentials{
		RefreshToken: doc.Get("refreshToken").String(),
		Region:       doc.Get("region").String(),
		ClientID:     doc.Get("clientId").String(),
		ClientSecret: doc.Get("clientSecret").String(),
		ClientIDHash: doc.Get("clientIdHash").String(),
		ProfileARN:   doc.Get("profileArn").String(),
	}
	return c, nil
}

// withRefreshToken rewrites the refreshToken field of raw, keeping every
// other field untouched.
func withRefreshToken(raw, refreshToken string) (string, error) {
	return sjson.Set(raw, "refreshToken", refreshToken)
}
