package auth

import "net/http"

// DefaultAPIKeyHeader is sent when no header name is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// BasicAuthenticator sends a username and password with every TSA query.
type BasicAuthenticator struct {
	username, password string
}

func NewBasicAuthenticator(username, password string) *BasicAuthenticator {
	return &BasicAuthenticator{username: username, password: password}
}

// Authenticate sets basic credentials unless both parts are empty.
func (a *BasicAuthenticator) Authenticate(req *http.Request) error {
	if a.username == "" && a.password == "" {
		return nil
	}
	req.SetBasicAuth(a.username, a.password)
	return nil
}

func (a *BasicAuthenticator) Type() Type { return AuthTypeBasic }

// BearerAuthenticator sends an access token issued by the TSA operator.
type BearerAuthenticator struct {
	token string
}

func NewBearerAuthenticator(token string) *BearerAuthenticator {
	return &BearerAuthenticator{token: token}
}

func (a *BearerAuthenticator) Authenticate(req *http.Request) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return nil
}

func (a *BearerAuthenticator) Type() Type { return AuthTypeBearer }

// APIKeyAuthenticator sends a static key in a request header.
type APIKeyAuthenticator struct {
	header, key string
}

// NewAPIKeyAuthenticator sends key in DefaultAPIKeyHeader.
func NewAPIKeyAuthenticator(key string) *APIKeyAuthenticator {
	return NewAPIKeyAuthenticatorWithHeader(DefaultAPIKeyHeader, key)
}

// NewAPIKeyAuthenticatorWithHeader sends key in header, or in
// DefaultAPIKeyHeader when header is empty.
func NewAPIKeyAuthenticatorWithHeader(header, key string) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, key: key}
}

func (a *APIKeyAuthenticator) Authenticate(req *http.Request) error {
	if a.key != "" {
		req.Header.Set(a.header, a.key)
	}
	return nil
}

func (a *APIKeyAuthenticator) Type() Type { return AuthTypeAPIKey }
