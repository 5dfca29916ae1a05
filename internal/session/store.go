// Package session keeps per-browser Tapis credentials in memory.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/config"
)

// Token is an OAuth2 token as handed over by the login flow.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// Expired reports whether the token has a known expiry in the past.
func (t *Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// Session holds the credentials bound to one session cookie.
type Session struct {
	ID string

	mu     sync.RWMutex
	token  *Token
	values map[string]any
}

// Token returns a copy of the stored OAuth2 token, or nil.
func (s *Session) Token() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// SetToken replaces the stored OAuth2 token.
func (s *Session) SetToken(t *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}

// Value returns the session value stored under key.
func (s *Session) Value(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// SetValue stores v under key.
func (s *Session) SetValue(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = v
}

// Store is a size-bounded, TTL-evicting session table keyed by cookie value.
type Store struct {
	cookie   string
	secure   bool
	ttl      time.Duration
	sessions *expirable.LRU[string, *Session]
}

// NewStore creates a Store from the auth settings.
func NewStore(cfg *config.Config) *Store {
	ttl := time.Duration(cfg.Auth.SessionTTLSeconds) * time.Second
	return &Store{
		cookie:   cfg.Auth.SessionCookie,
		secure:   cfg.Auth.SecureCookie,
		ttl:      ttl,
		sessions: expirable.NewLRU[string, *Session](cfg.Auth.MaxSessions, nil, ttl),
	}
}

// Get returns the live session with the given ID.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

// Create starts a new empty session.
func (s *Store) Create() *Session {
	sess := &Session{ID: uuid.NewString()}
	s.sessions.Add(sess.ID, sess)
	return sess
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// Lookup returns the session named by the request's session cookie.
func (s *Store) Lookup(c echo.Context) (*Session, bool) {
	ck, err := c.Cookie(s.cookie)
	if err != nil {
		return nil, false
	}
	return s.Get(ck.Value)
}

// LookupOrCreate returns the request's session, starting one and setting the
// cookie when there is none.
func (s *Store) LookupOrCreate(c echo.Context) *Session {
	if sess, ok := s.Lookup(c); ok {
		return sess
	}
	sess := s.Create()
	c.SetCookie(s.newCookie(sess.ID, int(s.ttl.Seconds())))
	return sess
}

// End deletes the request's session and expires its cookie.
func (s *Store) End(c echo.Context) {
	if sess, ok := s.Lookup(c); ok {
		s.Delete(sess.ID)
	}
	c.SetCookie(s.newCookie("", -1))
}

func (s *Store) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
