package model

import (
	"errors"

	"github.com/bytedance/sonic"
)

// Keys persisted in the token store. They are always cleared together.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// SessionKeys lists every key owned by a session.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Status is the authentication state of a session.
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusChecking      Status = "checking"
	StatusAuthenticated Status = "authenticated"
)

// Profile is the user identity returned by the backend. Its fields are
// not interpreted beyond the few accessors below.
type Profile map[string]any

func (p Profile) str(key string) string {
	if p == nil {
		return ""
	}
	v, _ := p[key].(string)
	return v
}

func (p Profile) Username() string { return p.str("username") }

func (p Profile) Email() string { return p.str("email") }

// IsAdmin reports the is_admin / is_staff flag, whichever the backend sent.
func (p Profile) IsAdmin() bool {
	for _, key := range []string{"is_admin", "is_staff", "is_superuser"} {
		if v, ok := p[key].(bool); ok && v {
			return true
		}
	}
	return false
}

// Credentials is the token pair handed out by login, registration and refresh.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// TokenResponse holds the token fields of a login, registration or refresh
// response. Backends disagree on naming; both conventions are accepted.
type TokenResponse struct {
	AccessToken  string  `json:"access_token"`
	Access       string  `json:"access"`
	RefreshToken string  `json:"refresh_token"`
	Refresh      string  `json:"refresh"`
	User         Profile `json:"user"`
}

// ParseTokenResponse decodes raw JSON into a TokenResponse. Non-object
// bodies yield an empty response.
func ParseTokenResponse(raw []byte) TokenResponse {
	var resp TokenResponse
	if len(raw) == 0 {
		return resp
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &resp); err != nil {
		return TokenResponse{}
	}
	return resp
}

// Credentials picks access_token over access and refresh_token over refresh.
func (r TokenResponse) Credentials() Credentials {
	creds := Credentials{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if creds.AccessToken == "" {
		creds.AccessToken = r.Access
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = r.Refresh
	}
	return creds
}

// Result is what login and register report to the rendering layer.
type Result struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	User    Profile `json:"user,omitempty"`
}

// Err returns the failure as an error, nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("unknown failure")
	}
	return errors.New(r.Error)
}

// Session is a point-in-time copy of the session state.
type Session struct {
	User   Profile `json:"user"`
	Status Status  `json:"status"`
	Error  string  `json:"error,omitempty"`
}

// Logger provides the minimal logging contract required by the auth domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
