// Package handlers exposes the HTTP API, the live channel and the front-end bundle.
package handlers

import (
	"context"
	"crypto/sha256"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bamikavision/auth"
	"bamikavision/config"
	"bamikavision/contact"
	"bamikavision/i18n"
	"bamikavision/logging"
	"bamikavision/notify"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"
)

type Deps struct {
	Config      *config.Config
	Credentials *auth.Credentials
	Gate        *auth.Gate
	Contact     *contact.Service
	Hub         *notify.Hub
}

type Handler struct {
	cfg            *config.Config
	creds          *auth.Credentials
	gate           *auth.Gate
	contact        *contact.Service
	hub            *notify.Hub
	loginLimiter   *rateLimiter
	contactLimiter *keyRateLimiter
	logger         zerolog.Logger
}

func New(d Deps) *Handler {
	h := &Handler{
		cfg:            d.Config,
		creds:          d.Credentials,
		gate:           d.Gate,
		contact:        d.Contact,
		hub:            d.Hub,
		loginLimiter:   newRateLimiter(),
		contactLimiter: newKeyRateLimiter(d.Config.ContactRatePerMinute, d.Config.ContactBurst),
		logger:         logging.NewLogger("http"),
	}
	return h
}

// Routes returns the full middleware-wrapped handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", h.APILoginHandler)
	mux.HandleFunc("POST /api/logout", h.APILogoutHandler)
	mux.HandleFunc("GET /api/user", h.APIUserHandler)
	mux.Handle("POST /api/register", h.gate.RequireAdmin(http.HandlerFunc(h.APIRegisterHandler)))
	mux.HandleFunc("POST /api/contact", h.APIContactHandler)
	mux.Handle("GET /api/contact/messages", h.gate.RequireAdmin(http.HandlerFunc(h.APIMessagesHandler)))
	mux.HandleFunc("GET /api/health", h.APIHealthHandler)

	if h.cfg.CaptchaEnabled {
		mux.HandleFunc("GET /api/captcha", h.APICaptchaHandler)
		mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	}
	if h.cfg.CSRFEnabled {
		mux.HandleFunc("GET /api/csrf", h.APICSRFHandler)
	}

	mux.HandleFunc("/api/", h.APINotFoundHandler)
	mux.Handle("GET /ws", notify.ServeWS(h.hub, h.cfg.AllowedOrigins))
	mux.Handle("/", h.staticHandler())

	var handler http.Handler = mux
	if h.cfg.CSRFEnabled {
		handler = h.csrfProtect(handler)
	}
	handler = CORSMiddleware(h.cfg.AllowedOrigins)(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = RecoverMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// Run prunes idle rate-limit buckets until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.contactLimiter.cleanup(time.Now().Add(-10 * time.Minute))
		}
	}
}

func (h *Handler) csrfProtect(next http.Handler) http.Handler {
	key := sha256.Sum256([]byte(h.cfg.SessionKey + "csrf"))

	var trusted []string
	for _, o := range h.cfg.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			trusted = append(trusted, u.Host)
		}
	}

	sameSite := csrf.SameSiteLaxMode
	if h.cfg.Production {
		sameSite = csrf.SameSiteNoneMode
	}

	protect := csrf.Protect(
		key[:],
		csrf.Secure(h.cfg.Production),
		csrf.Path("/"),
		csrf.SameSite(sameSite),
		csrf.TrustedOrigins(trusted),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.logger.Warn().Err(csrf.FailureReason(r)).Str("request_id", GetRequestID(r)).Msg("CSRF check failed")
			Deny(w, r, http.StatusForbidden)
		})),
	)(next)

	if h.cfg.Production {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

// staticHandler serves the built front end. Unknown paths get index.html so
// the client-side router can take over.
func (h *Handler) staticHandler() http.Handler {
	root := h.cfg.StaticDir
	files := http.FileServer(http.Dir(root))
	index := filepath.Join(root, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		if name != "/" && !strings.HasSuffix(name, "/index.html") {
			if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(name))); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

// Deny answers a rejected request with a localized JSON error.
func Deny(w http.ResponseWriter, r *http.Request, status int) {
	lang := i18n.DetectLanguage(r)
	key := "Unauthorized"
	if status == http.StatusForbidden {
		key = "Forbidden"
	}
	sendJSONResponse(w, status, APIResponse{Message: i18n.T(lang, key)})
}
