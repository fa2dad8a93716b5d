// Package auth provides credentials for time-stamp authorities that require them.
package auth

import (
	"net/http"
)

// Authenticator decorates an outgoing TSA request with credentials.
type Authenticator interface {
	Authenticate(req *http.Request) error
	Type() Type
}

// Type names an authentication scheme.
type Type string

const (
	AuthTypeAPIKey Type = "apikey"
	AuthTypeBearer Type = "bearer"
	AuthTypeBasic  Type = "basic"
)

// Credentials are the TSA secrets read from configuration.
type Credentials struct {
	Username string
	Password string
	Token    string
	APIKey   string
}

// FromCredentials picks an authenticator for the configured secrets.
// Basic wins over bearer, bearer over API key. It returns nil when nothing is set.
func FromCredentials(c Credentials) Authenticator {
	switch {
	case c.Username != "" || c.Password != "":
		return NewBasicAuthenticator(c.Username, c.Password)
	case c.Token != "":
		return NewBearerAuthenticator(c.Token)
	case c.APIKey != "":
		return NewAPIKeyAuthenticator(c.APIKey)
	}
	return nil
}
