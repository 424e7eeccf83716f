/*
Package auth guards the desk behind a shared office password.

PURPOSE:
  A small consultancy shares one password. Logging in issues an opaque
  session token that expires after a fixed lifetime. The Gate is created
  once at startup and handed to the HTTP layer; nothing else holds
  session state.

  An empty password disables the gate: every token authenticates as an
  anonymous session. This is for local development only.
*/
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/careerup/generic"
)

// DefaultTTL is how long a session stays valid after login.
const DefaultTTL = 12 * time.Hour

// Session is one logged-in browser.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Gate issues and checks sessions.
type Gate struct {
	passwordHash [sha256.Size]byte
	enabled      bool
	ttl          time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

type Option func(*Gate)

func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate returns a gate for password.
func NewGate(password string, opts ...Option) *Gate {
	g := &Gate{
		passwordHash: sha256.Sum256([]byte(password)),
		enabled:      password != "",
		ttl:          DefaultTTL,
		now:          time.Now,
		sessions:     make(map[string]Session),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled() bool { return g.enabled }

// Login checks password and starts a session.
func (g *Gate) Login(password string) (Session, error) {
	if g.enabled {
		got := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare(got[:], g.passwordHash[:]) != 1 {
			return Session{}, generic.ErrUnauthorized
		}
	}

	now := g.now()
	s := Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)
	g.sessions[s.Token] = s
	return s, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, token)
}

// Authenticate returns the session for token. Expired sessions are removed
// and reported as ErrSessionExpired.
func (g *Gate) Authenticate(token string) (Session, error) {
	now := g.now()
	if !g.enabled {
		return Session{Token: token, CreatedAt: now, ExpiresAt: now.Add(g.ttl)}, nil
	}
	if token == "" {
		return Session{}, generic.ErrUnauthorized
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[token]
	if !ok {
		return Session{}, generic.ErrUnauthorized
	}
	if s.Expired(now) {
		delete(g.sessions, token)
		return Session{}, generic.ErrSessionExpired
	}
	return s, nil
}

// Active counts unexpired sessions.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(g.now())
	return len(g.sessions)
}

func (g *Gate) pruneLocked(now time.Time) {
	for token, s := range g.sessions {
		if s.Expired(now) {
			delete(g.sessions, token)
		}
	}
}
