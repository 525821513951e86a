package web

import (
	"context"
	"errors"
	"net/http"

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/internal/store"
)

const sessionCookieName = "scmxpert_session"

type sessionKey struct{}

// withSession returns a copy of ctx carrying the authenticated session.
func withSession(ctx context.Context, s *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom returns the session stored by loadSession, or nil.
func sessionFrom(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return s
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *auth.Session) error {
	token, err := h.sessions.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadSession decodes the session cookie and puts the session into the
// request context. A cookie that fails verification or names a user that no
// longer exists is cleared and the request continues anonymously.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := h.sessions.Decode(cookie.Value)
		if err != nil {
			h.logger.Debug("discarding invalid session cookie", "error", err)
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		if _, err := h.tracking.User(r.Context(), session.UserID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				h.serverError(w, r, "failed to load session user", err)
				return
			}
			h.logger.Info("discarding session of unknown user", "user_id", session.UserID)
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	})
}

// requirePage redirects anonymous requests to the login page.
func requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPI answers anonymous requests with 401 JSON.
func (h *Handler) requireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()) == nil {
			h.writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}
