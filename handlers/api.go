package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"bamikavision/auth"
	"bamikavision/contact"
	"bamikavision/i18n"
	"bamikavision/logging"
	"bamikavision/models"
	"bamikavision/store"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

type APIResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Data    any                  `json:"data,omitempty"`
	User    *models.User         `json:"user,omitempty"`
	Errors  []contact.FieldError `json:"errors,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		return err
	}
	return nil
}

// internalError logs err and answers with a generic localized 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logger := logging.WithRequestID(GetRequestID(r))
	logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	lang := i18n.DetectLanguage(r)
	sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Message: i18n.T(lang, "InternalServerError")})
}

func (h *Handler) APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	ip := getClientIP(r)
	if !h.loginLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Message: i18n.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Message: i18n.T(lang, "CredentialsRequired")})
		return
	}

	user, err := h.gate.Login(w, r, input.Username, input.Password)
	if errors.Is(err, auth.ErrAuthenticationFailed) {
		h.loginLimiter.RecordFailure(ip)
		h.logger.Warn().Str("username", input.Username).Str("client_ip", ip).Msg("Login failed")
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Message: i18n.T(lang, "InvalidCredentials")})
		return
	}
	if err != nil {
		h.internalError(w, r, err, "Login error")
		return
	}

	h.loginLimiter.Reset(ip)
	sendJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: i18n.T(lang, "LoggedIn"),
		User:    user,
	})
}

func (h *Handler) APILogoutHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if err := h.gate.Logout(w, r); err != nil {
		h.internalError(w, r, err, "Logout error")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Message: i18n.T(lang, "LoggedOut")})
}

func (h *Handler) APIUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.gate.CurrentUser(r)
	if !ok {
		Deny(w, r, http.StatusUnauthorized)
		return
	}
	sendJSONResponse(w, http.StatusOK, user)
}

// APIRegisterHandler lets an admin create further accounts.
func (h *Handler) APIRegisterHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	role := models.RoleVisitor
	if input.IsAdmin {
		role = models.RoleAdmin
	}

	user, err := h.creds.CreateUser(r.Context(), input.Username, input.Password, role)
	if err != nil {
		var field contact.FieldError
		switch {
		case errors.Is(err, auth.ErrUsernameRequired):
			field = contact.FieldError{Field: "username", Code: contact.CodeRequired}
		case errors.Is(err, store.ErrDuplicateUsername):
			field = contact.FieldError{Field: "username", Code: contact.CodeTaken}
		case errors.Is(err, auth.ErrPasswordTooShort):
			field = contact.FieldError{Field: "password", Code: contact.CodeMin, Param: auth.MinPasswordLength}
		default:
			h.internalError(w, r, err, "Failed to create user")
			return
		}
		verr := &contact.ValidationError{Fields: []contact.FieldError{field}}
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{
			Message: i18n.T(lang, "ValidationFailed"),
			Errors:  verr.Localized(lang),
		})
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: i18n.T(lang, "UserCreated"),
		Data:    user,
	})
}

func (h *Handler) APIContactHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	if !h.contactLimiter.Allow(getClientIP(r)) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Message: i18n.T(lang, "TooManyRequests")})
		return
	}

	var input contact.Input
	if err := decodeJSON(w, r, &input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	msg, err := h.contact.Submit(r.Context(), input)
	var verr *contact.ValidationError
	if errors.As(err, &verr) {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{
			Message: i18n.T(lang, "ValidationFailed"),
			Errors:  verr.Localized(lang),
		})
		return
	}
	if err != nil {
		h.internalError(w, r, err, "Failed to store contact message")
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: i18n.T(lang, "MessageReceived"),
		Data:    msg,
	})
}

func (h *Handler) APIMessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.contact.ListRecent(r.Context())
	if err != nil {
		h.internalError(w, r, err, "Failed to list contact messages")
		return
	}
	sendJSONResponse(w, http.StatusOK, messages)
}

func (h *Handler) APIHealthHandler(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"clients": h.hub.Count(),
	})
}

func (h *Handler) APICaptchaHandler(w http.ResponseWriter, r *http.Request) {
	id := captcha.New()
	sendJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]string{
			"captchaId": id,
			"imageUrl":  "/captcha/" + id + ".png",
		},
	})
}

func (h *Handler) APICSRFHandler(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"token": csrf.Token(r)},
	})
}

func (h *Handler) APINotFoundHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	status := http.StatusNotFound
	key := "NotFound"
	if knownAPIPath(r.URL.Path) {
		status = http.StatusMethodNotAllowed
		key = "MethodNotAllowed"
	}
	sendJSONResponse(w, status, APIResponse{Message: i18n.T(lang, key)})
}

var apiPaths = []string{
	"/api/login", "/api/logout", "/api/user", "/api/register",
	"/api/contact", "/api/contact/messages", "/api/health",
}

func knownAPIPath(p string) bool {
	p = strings.TrimSuffix(p, "/")
	for _, known := range apiPaths {
		if p == known {
			return true
		}
	}
	return false
}
