package auth

import (
	"context"
	"crypto/sha256"
	"maps"
	"net/http"
	"sync"
	"time"

	"bamikavision/crypto"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

type sessionEntry struct {
	values    map[any]any
	createdAt time.Time
	expiresAt time.Time
}

// SessionStore is a sessions.Store that keeps session values in memory and
// puts only the signed, encrypted session id in the cookie. Sessions expire a
// fixed time after creation and are never extended.
type SessionStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

// NewSessionStore derives the cookie keys from secret. Secure cookies use
// SameSite=None so front ends on an allowed foreign origin keep their session.
func NewSessionStore(secret string, ttl time.Duration, secure bool) *SessionStore {
	// Derive two 32-byte keys from the session key
	authKey := sha256.Sum256([]byte(secret + "auth"))
	encKey := sha256.Sum256([]byte(secret + "encryption"))

	codecs := securecookie.CodecsFromPairs(authKey[:], encKey[:])
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(ttl.Seconds()))
		}
	}

	return &SessionStore{
		Codecs: codecs,
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: sameSiteFor(secure),
		},
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// Get returns the session cached for this request, loading it on first use.
func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. A missing, tampered or
// expired cookie yields a fresh empty session and no error.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := s.newSession(name)

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return session, nil
	}
	values, ok := s.load(id)
	if !ok {
		return session, nil
	}
	session.ID = id
	session.Values = values
	session.IsNew = false
	return session, nil
}

// Save persists the session values and writes the cookie. A negative MaxAge
// destroys the session and expires the cookie.
func (s *SessionStore) Save(_ *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			s.Destroy(session.ID)
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" || !s.update(session.ID, session.Values) {
		session.ID = crypto.RandomToken(32)
		s.insert(session.ID, session.Values)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Fresh returns an empty session that ignores any cookie on the request.
func (s *SessionStore) Fresh(name string) *sessions.Session {
	return s.newSession(name)
}

// Destroy removes a session. Unknown ids are ignored.
func (s *SessionStore) Destroy(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// PurgeExpired drops every expired session and returns how many were removed.
func (s *SessionStore) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Run purges expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

func (s *SessionStore) newSession(name string) *sessions.Session {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true
	return session
}

func (s *SessionStore) load(id string) (map[any]any, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		s.Destroy(id)
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(e.values), true
}

func (s *SessionStore) insert(id string, values map[any]any) {
	now := s.now()
	s.mu.Lock()
	s.entries[id] = &sessionEntry{
		values:    maps.Clone(values),
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()
}

// update replaces the values of a live session, keeping its expiry.
func (s *SessionStore) update(id string, values map[any]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return false
	}
	e.values = maps.Clone(values)
	return true
}

var _ sessions.Store = (*SessionStore)(nil)

func sameSiteFor(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
