package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hellow-star/job-app-tracker/internal/models"
	"github.com/hellow-star/job-app-tracker/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store         store.Store
	sessionTTL    time.Duration
	secureCookies bool
}

type Options struct {
	SessionTTL    time.Duration
	SecureCookies bool
}

func NewHandler(st store.Store, options Options) *Handler {
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Handler{store: st, sessionTTL: ttl, secureCookies: options.SecureCookies}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.wrap(h.handleHealth))
	mux.HandleFunc("/auth/signup", h.wrap(h.handleSignup))
	mux.HandleFunc("/auth/login", h.wrap(h.handleLogin))
	mux.HandleFunc("/auth/logout", h.wrap(h.handleLogout))
	mux.HandleFunc("/auth/me", h.wrap(h.handleMe))
	mux.HandleFunc("/apps", h.wrap(h.handleApps))
	mux.HandleFunc("/apps/", h.wrap(h.handleAppByID))
	return mux
}

// httpError carries a status code and a message safe to expose to the
// caller. Everything else is normalized to a generic 500 by wrap.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(message string) error {
	return &httpError{status: http.StatusBadRequest, message: message}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap is the single error boundary: handlers raise errors, this maps
// them to status codes exactly once and never leaks internal messages.
func (h *Handler) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic method=%s path=%s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		if err := fn(w, r); err != nil {
			status, message := mapError(err)
			if status >= http.StatusInternalServerError {
				log.Printf("request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
			}
			writeError(w, status, message)
		}
	}
}

func mapError(err error) (int, string) {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status, he.message
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusConflict, "email already in use"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "invalid session"
	case errors.Is(err, store.ErrApplicationNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		return credentialsRequest{}, badRequest("invalid JSON payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Password) == "" {
		return credentialsRequest{}, badRequest("email and password are required")
	}
	return req, nil
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	req, err := decodeCredentials(r)
	if err != nil {
		return err
	}

	result, err := h.store.Signup(r.Context(), req.Email, req.Password, h.sessionTTL)
	if err != nil {
		return err
	}

	h.setSessionCookie(w, result.Session)
	writeJSON(w, http.StatusCreated, map[string]string{"email": result.User.Email})
	return nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	req, err := decodeCredentials(r)
	if err != nil {
		return err
	}

	result, err := h.store.Login(r.Context(), req.Email, req.Password, h.sessionTTL)
	if err != nil {
		return err
	}

	h.setSessionCookie(w, result.Session)
	writeJSON(w, http.StatusOK, map[string]string{"email": result.User.Email})
	return nil
}

// handleLogout destroys the current session. Calling it without one is
// not an error.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	if token := sessionTokenFromRequest(r); token != "" {
		if err := h.store.DeleteSession(r.Context(), token); err != nil {
			return err
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return nil
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{"id": session.UserID},
	})
	return nil
}

func (h *Handler) handleApps(w http.ResponseWriter, r *http.Request) error {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		return &httpError{status: http.StatusUnauthorized, message: "authentication required"}
	}

	switch r.Method {
	case http.MethodGet:
		return h.listApps(w, r, session)
	case http.MethodPost:
		return h.createApp(w, r, session)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
}

func (h *Handler) listApps(w http.ResponseWriter, r *http.Request, session models.Session) error {
	query := store.ListQuery{
		Text:   strings.TrimSpace(r.URL.Query().Get("q")),
		Status: models.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	apps, err := h.store.ListApplications(r.Context(), session.UserID, query)
	if err != nil {
		return err
	}
	if apps == nil {
		apps = []models.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
	return nil
}

// applicationRequest accepts the client-facing application fields.
// Unknown fields (including any client-supplied owner id) are ignored;
// ownership always comes from the session.
type applicationRequest struct {
	Company     string     `json:"company"`
	Role        string     `json:"role"`
	Location    string     `json:"location"`
	Link        string     `json:"link"`
	Status      string     `json:"status"`
	DateApplied *time.Time `json:"dateApplied"`
	Notes       string     `json:"notes"`
}

func (h *Handler) createApp(w http.ResponseWriter, r *http.Request, session models.Session) error {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid JSON payload")
	}

	req.Company = strings.TrimSpace(req.Company)
	req.Role = strings.TrimSpace(req.Role)
	req.Status = strings.TrimSpace(req.Status)
	req.Link = strings.TrimSpace(req.Link)

	if req.Company == "" || req.Role == "" {
		return badRequest("company and role are required")
	}
	if req.Status != "" && !models.Status(req.Status).Valid() {
		return badRequest("status must be one of: applied, interview, offer, rejected")
	}
	if req.Link != "" && !isValidURL(req.Link) {
		return badRequest("link must be a valid URL")
	}

	input := store.CreateApplicationInput{
		UserID:   session.UserID,
		Company:  req.Company,
		Role:     req.Role,
		Location: strings.TrimSpace(req.Location),
		Link:     req.Link,
		Status:   models.Status(req.Status),
		Notes:    req.Notes,
	}
	if req.DateApplied != nil {
		input.DateApplied = req.DateApplied.UTC()
	}

	app, err := h.store.CreateApplication(r.Context(), input)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, app)
	return nil
}

// applicationPatchRequest distinguishes absent fields from empty ones so
// a PUT only touches what the client sent.
type applicationPatchRequest struct {
	Company     *string    `json:"company"`
	Role        *string    `json:"role"`
	Location    *string    `json:"location"`
	Link        *string    `json:"link"`
	Status      *string    `json:"status"`
	DateApplied *time.Time `json:"dateApplied"`
	Notes       *string    `json:"notes"`
}

func (h *Handler) handleAppByID(w http.ResponseWriter, r *http.Request) error {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		return &httpError{status: http.StatusUnauthorized, message: "authentication required"}
	}

	id := strings.TrimPrefix(r.URL.Path, "/apps/")
	if id == "" || strings.Contains(id, "/") {
		return store.ErrApplicationNotFound
	}
	// a malformed id can never name an owned record
	if !isValidUUID(id) {
		return store.ErrApplicationNotFound
	}

	switch r.Method {
	case http.MethodPut:
		return h.updateApp(w, r, session, id)
	case http.MethodDelete:
		return h.deleteApp(w, r, session, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
}

func (h *Handler) updateApp(w http.ResponseWriter, r *http.Request, session models.Session, id string) error {
	var req applicationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid JSON payload")
	}

	patch := store.ApplicationPatch{
		Location:    req.Location,
		DateApplied: req.DateApplied,
		Notes:       req.Notes,
	}
	if req.Company != nil {
		company := strings.TrimSpace(*req.Company)
		if company == "" {
			return badRequest("company must not be empty")
		}
		patch.Company = &company
	}
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if role == "" {
			return badRequest("role must not be empty")
		}
		patch.Role = &role
	}
	if req.Status != nil {
		status := models.Status(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return badRequest("status must be one of: applied, interview, offer, rejected")
		}
		patch.Status = &status
	}
	if req.Link != nil {
		link := strings.TrimSpace(*req.Link)
		if link != "" && !isValidURL(link) {
			return badRequest("link must be a valid URL")
		}
		patch.Link = &link
	}

	app, err := h.store.UpdateApplication(r.Context(), session.UserID, id, patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, app)
	return nil
}

func (h *Handler) deleteApp(w http.ResponseWriter, r *http.Request, session models.Session, id string) error {
	if err := h.store.DeleteApplication(r.Context(), session.UserID, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return nil
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, session models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
