package auth

import (
	"context"
	"errors"
	"net/http"

	"bamikavision/models"
	"bamikavision/store"

	"github.com/rs/zerolog"
)

const (
	SessionName = "bamika-session"
	userIDKey   = "userID"
)

type contextKey struct{}

// UserFromContext returns the user attached by RequireAuthenticated or RequireAdmin.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*models.User)
	return u, ok && u != nil
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// Gate ties the credential store to request sessions.
type Gate struct {
	creds    *Credentials
	sessions *SessionStore
	logger   zerolog.Logger
	deny     DenyFunc
}

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int)

// NewGate builds a gate. A nil deny falls back to http.Error.
func NewGate(creds *Credentials, sessions *SessionStore, deny DenyFunc) *Gate {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return &Gate{
		creds:    creds,
		sessions: sessions,
		logger:   creds.logger,
		deny:     deny,
	}
}

// Login verifies the credentials and binds a brand-new session to the user.
// Any session the request already carried is destroyed first.
func (g *Gate) Login(w http.ResponseWriter, r *http.Request, username, password string) (*models.User, error) {
	u, err := g.creds.Authenticate(r.Context(), username, password)
	if err != nil {
		return nil, err
	}

	if old, _ := g.sessions.Get(r, SessionName); old != nil && old.ID != "" {
		g.sessions.Destroy(old.ID)
	}

	session := g.sessions.Fresh(SessionName)
	session.Values[userIDKey] = u.ID
	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	g.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("User logged in")
	return u, nil
}

// Logout destroys the current session, if any, and expires the cookie.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := g.sessions.Get(r, SessionName)
	if err != nil {
		return err
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// CurrentUser resolves the session cookie to a user. Missing, tampered or
// expired sessions, and sessions whose user no longer exists, are anonymous.
func (g *Gate) CurrentUser(r *http.Request) (*models.User, bool) {
	if u, ok := UserFromContext(r.Context()); ok {
		return u, true
	}

	session, err := g.sessions.Get(r, SessionName)
	if err != nil {
		return nil, false
	}
	id, ok := session.Values[userIDKey].(int64)
	if !ok {
		return nil, false
	}
	u, err := g.creds.GetUserByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.logger.Error().Err(err).Int64("user_id", id).Msg("Failed to load session user")
		}
		return nil, false
	}
	return u, true
}

// RequireAuthenticated rejects anonymous requests with 401.
func (g *Gate) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := g.CurrentUser(r)
		if !ok {
			g.deny(w, r, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := g.CurrentUser(r)
		if !ok {
			g.deny(w, r, http.StatusUnauthorized)
			return
		}
		if !u.IsAdmin() {
			g.deny(w, r, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}
