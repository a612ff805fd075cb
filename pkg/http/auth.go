package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/glorpus-work/repokit/pkg/errors"
)

// Authenticator adds credentials to outgoing requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// BearerAuth sends a bearer token.
type BearerAuth struct {
	Token string
}

func (b BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// HeaderAuth sets fixed headers, for catalogs keyed by an API key header.
type HeaderAuth map[string]string

func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h {
		req.Header.Set(k, v)
	}
	return nil
}

// ParseAuthenticator reads the rest_auth setting:
//
//	bearer:<token>
//	basic:<user>:<password>
//	header:<Name>=<value>
//
// An empty spec means no authentication and returns nil.
func ParseAuthenticator(spec string) (Authenticator, error) {
	if spec == "" {
		return nil, nil
	}
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("%w: malformed credentials, expected <kind>:<value>", errors.ErrInvalidArgument)
	}

	switch strings.ToLower(kind) {
	case "bearer":
		return BearerAuth{Token: rest}, nil
	case "basic":
		user, password, ok := strings.Cut(rest, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("%w: basic credentials need <user>:<password>", errors.ErrInvalidArgument)
		}
		return BasicAuth{Username: user, Password: password}, nil
	case "header":
		name, value, ok := strings.Cut(rest, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: header credentials need <Name>=<value>", errors.ErrInvalidArgument)
		}
		return HeaderAuth{name: value}, nil
	default:
		return nil, fmt.Errorf("%w: unknown credential kind %q", errors.ErrInvalidArgument, kind)
	}
}
