package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/usecase/session"
)

// requireSession puts a session on the request context. With login disabled
// every request runs as the anonymous local user.
func (h *handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := session.Anonymous()
		if h.options.AuthEnabled {
			if h.services.Sessions == nil {
				writeError(w, http.StatusServiceUnavailable, "login is not configured")
				return
			}
			cookie, err := r.Cookie(h.options.CookieName)
			if err != nil || strings.TrimSpace(cookie.Value) == "" {
				writeError(w, http.StatusUnauthorized, "login required")
				return
			}
			loaded, err := h.services.Sessions.Load(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, session.ErrSessionNotFound) {
					writeError(w, http.StatusUnauthorized, "login required")
					return
				}
				writeUsecaseError(w, r, err)
				return
			}
			current = loaded
		}

		ctx := session.WithSession(r.Context(), current)
		ctx = logging.WithRequest(ctx, middleware.GetReqID(ctx), current.DisplayName())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.options.AuthEnabled || h.services.Sessions == nil {
		writeError(w, http.StatusNotFound, "login is disabled")
		return
	}
	loginURL, err := h.services.Sessions.LoginURL(r.Context())
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	parsed, err := url.Parse(loginURL)
	if err != nil || parsed.Query().Get("state") == "" {
		writeUsecaseError(w, r, errors.New("login url has no state"))
		return
	}

	// The callback must come back to the browser that started the login.
	http.SetCookie(w, &http.Cookie{
		Name:     h.stateCookieName(),
		Value:    parsed.Query().Get("state"),
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, loginURL, http.StatusFound)
}

const stateCookieTTL = 10 * time.Minute

func (h *handler) stateCookieName() string {
	return h.options.CookieName + "_state"
}

func (h *handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.options.AuthEnabled || h.services.Sessions == nil {
		writeError(w, http.StatusNotFound, "login is disabled")
		return
	}
	query := r.URL.Query()
	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		writeError(w, http.StatusUnauthorized, "login failed: "+providerErr)
		return
	}

	state := query.Get("state")
	stateCookie, err := r.Cookie(h.stateCookieName())
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		writeUsecaseError(w, r, session.ErrInvalidState)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: h.stateCookieName(), Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})

	created, err := h.services.Sessions.Complete(r.Context(), query.Get("code"), state)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.options.CookieName,
		Value:    created.ID,
		Path:     "/",
		Expires:  created.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.options.CookieName); err == nil && h.services.Sessions != nil && cookie.Value != "" {
		if err := h.services.Sessions.End(r.Context(), cookie.Value); err != nil {
			writeUsecaseError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.options.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	session.Session
	DisplayName string `json:"display_name"`
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	current, _ := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{Session: current, DisplayName: current.DisplayName()})
}
