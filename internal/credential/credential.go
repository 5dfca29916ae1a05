// Package credential resolves the Tapis bearer token for an inbound request.
//
// Token sources are modelled as an ordered list of Resolvers. The Chain tries
// each in turn and the first non-empty token wins. Every attempt is recorded
// in the Resolution so that a miss can be explained without reading logs.
package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/config"
	"tapis-file-proxy/internal/metrics"
	"tapis-file-proxy/internal/session"
)

// UserTokenKey is the echo context key holding a request-scoped token.
const UserTokenKey = "usertoken"

// TapisTokenHeader is the custom header clients may send the token in.
const TapisTokenHeader = "X-Tapis-Token"

var (
	// ErrNoToken means the source was consulted and held nothing.
	ErrNoToken = errors.New("no token")
	// ErrTokenExpired means a stored OAuth2 token is past its expiry.
	ErrTokenExpired = errors.New("stored token expired")
	// ErrUnsupportedToken means the source held a value of an unknown shape.
	ErrUnsupportedToken = errors.New("unsupported token value")
)

// Resolver is one credential source.
type Resolver interface {
	Name() string
	// Resolve returns a non-empty token, or an error. ErrNoToken (possibly
	// wrapped) signals an empty source rather than a failure.
	Resolve(c echo.Context) (string, error)
}

// Attempt records the outcome of a single resolver that did not yield a token.
type Attempt struct {
	Source string
	Err    error
}

// Resolution is the outcome of running the chain.
type Resolution struct {
	Token    string
	Source   string
	Attempts []Attempt
}

// Found reports whether a token was resolved.
func (r Resolution) Found() bool {
	return r.Token != ""
}

// Chain tries resolvers in order.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewChain creates a Chain over the given resolvers. m may be nil.
func NewChain(logger *slog.Logger, m *metrics.Metrics, resolvers ...Resolver) *Chain {
	return &Chain{
		resolvers: resolvers,
		logger:    logger.With("component", "credential_chain"),
		metrics:   m,
	}
}

// NewDefaultChain builds the standard lookup order: stored OAuth2 token,
// request-scoped token, session keys, Authorization bearer, X-Tapis-Token.
func NewDefaultChain(cfg *config.Config, store *session.Store, logger *slog.Logger, m *metrics.Metrics) *Chain {
	resolvers := []Resolver{
		&StoredToken{Sessions: store},
		&ContextValue{Key: UserTokenKey},
	}
	for _, key := range cfg.Auth.SessionKeys {
		resolvers = append(resolvers, &SessionValue{Sessions: store, Key: key})
	}
	resolvers = append(resolvers,
		BearerHeader{},
		Header{Header: TapisTokenHeader},
	)
	return NewChain(logger, m, resolvers...)
}

// Names returns the resolver names in lookup order.
func (ch *Chain) Names() []string {
	names := make([]string, len(ch.resolvers))
	for i, r := range ch.resolvers {
		names[i] = r.Name()
	}
	return names
}

// Resolve runs the chain against the request.
func (ch *Chain) Resolve(c echo.Context) Resolution {
	var res Resolution
	for _, r := range ch.resolvers {
		token, err := safeResolve(r, c)
		if err == nil && token != "" {
			res.Token = token
			res.Source = r.Name()
			ch.record(res.Source)
			ch.logger.Debug("credential resolved", "source", res.Source)
			return res
		}
		if err == nil {
			err = ErrNoToken
		}
		res.Attempts = append(res.Attempts, Attempt{Source: r.Name(), Err: err})
		ch.logger.Debug("credential source skipped", "source", r.Name(), "err", err)
	}
	ch.record("none")
	return res
}

func (ch *Chain) record(source string) {
	if ch.metrics != nil {
		ch.metrics.CredentialSources.WithLabelValues(source).Inc()
	}
}

// safeResolve turns a resolver panic into an error so one broken source
// cannot take down the lookup.
func safeResolve(r Resolver, c echo.Context) (token string, err error) {
	defer func() {
		if p := recover(); p != nil {
			token, err = "", fmt.Errorf("resolver %s panicked: %v", r.Name(), p)
		}
	}()
	return r.Resolve(c)
}

// AccessToken extracts the access-token string from the shapes an OAuth2
// integration is known to store: a bare string, a token struct, or a map
// with an "access_token" entry.
func AccessToken(v any) (string, error) {
	var tok string
	switch t := v.(type) {
	case nil:
		return "", ErrNoToken
	case string:
		tok = t
	case *session.Token:
		if t == nil {
			return "", ErrNoToken
		}
		tok = t.AccessToken
	case session.Token:
		tok = t.AccessToken
	case map[string]string:
		tok = t["access_token"]
	case map[string]any:
		raw, ok := t["access_token"]
		if !ok || raw == nil {
			return "", ErrNoToken
		}
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: access_token is %T", ErrUnsupportedToken, raw)
		}
		tok = s
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedToken, v)
	}

	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// StoredToken reads the OAuth2 token the login flow saved in the session.
type StoredToken struct {
	Sessions *session.Store
	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *StoredToken) Name() string { return "stored_token" }

func (r *StoredToken) Resolve(c echo.Context) (string, error) {
	sess, ok := r.Sessions.Lookup(c)
	if !ok {
		return "", fmt.Errorf("%w: no session", ErrNoToken)
	}
	tok := sess.Token()
	if tok == nil {
		return "", ErrNoToken
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if tok.Expired(now()) {
		return "", ErrTokenExpired
	}
	return AccessToken(tok)
}

// ContextValue reads a token that earlier middleware stored on the echo context.
type ContextValue struct {
	Key string
}

func (r *ContextValue) Name() string { return "request_context" }

func (r *ContextValue) Resolve(c echo.Context) (string, error) {
	return AccessToken(c.Get(r.Key))
}

// SessionValue reads a token stored under one session key.
type SessionValue struct {
	Sessions *session.Store
	Key      string
}

func (r *SessionValue) Name() string { return "session:" + r.Key }

func (r *SessionValue) Resolve(c echo.Context) (string, error) {
	sess, ok := r.Sessions.Lookup(c)
	if !ok {
		return "", fmt.Errorf("%w: no session", ErrNoToken)
	}
	v, ok := sess.Value(r.Key)
	if !ok {
		return "", ErrNoToken
	}
	return AccessToken(v)
}

// BearerHeader reads "Authorization: Bearer <token>".
type BearerHeader struct{}

func (BearerHeader) Name() string { return "authorization_header" }

func (BearerHeader) Resolve(c echo.Context) (string, error) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: authorization scheme is not Bearer", ErrNoToken)
	}
	return AccessToken(token)
}

// Header reads the token verbatim from a request header.
type Header struct {
	Header string
}

func (r Header) Name() string { return strings.ToLower(strings.ReplaceAll(r.Header, "-", "_")) + "_header" }

func (r Header) Resolve(c echo.Context) (string, error) {
	return AccessToken(c.Request().Header.Get(r.Header))
}
