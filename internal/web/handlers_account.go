package web

import (
	"errors"
	"net/http"

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/pkg/logger"
)

// Auth attempt results.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultError   = "error"
)

func (h *Handler) authAttempt(action, result string) {
	if h.metrics != nil {
		h.metrics.AuthAttempts.WithLabelValues(action, result).Inc()
	}
}

// handleIndex serves the landing page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index", page{Title: "Welcome"}, indexView())
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", page{Title: "Login"}, loginView())
}

// handleLogin checks the credentials, issues the session cookie and sends the
// user to the dashboard. Failed logins re-render the form.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(r.Context(), auth.LoginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.authAttempt("login", resultFailure)
			h.render(w, r, http.StatusOK, "login", page{
				Title:   "Login",
				Flashes: []Flash{{Category: flashError, Message: err.Error()}},
			}, loginView())
			return
		}
		h.authAttempt("login", resultError)
		h.serverError(w, r, "failed to log in", err)
		return
	}

	if err := h.setSessionCookie(w, session); err != nil {
		h.authAttempt("login", resultError)
		h.serverError(w, r, "failed to issue session", err)
		return
	}

	h.authAttempt("login", resultSuccess)
	logger.FromContext(r.Context(), h.logger).Info("user logged in", "user_id", session.UserID)
	h.addFlash(w, r, flashSuccess, "Login successful!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (h *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", page{Title: "Register"}, registerView(registerForm{}))
}

// handleRegister creates the account and sends the user to the login page.
// Validation failures re-render the form with the message.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	req := auth.RegisterRequest{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			h.authAttempt("register", resultFailure)
			h.render(w, r, http.StatusOK, "register", page{
				Title:   "Register",
				Flashes: []Flash{{Category: flashError, Message: verr.Message}},
			}, registerView(registerForm{Username: req.Username, Email: req.Email}))
			return
		}
		h.authAttempt("register", resultError)
		h.serverError(w, r, "failed to register user", err)
		return
	}

	h.authAttempt("register", resultSuccess)
	logger.FromContext(r.Context(), h.logger).Info("user registered", "user_id", user.ID)
	h.addFlash(w, r, flashSuccess, "Registration successful! Please login.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handleLogout clears the session whether or not one exists.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.addFlash(w, r, flashInfo, "You have been logged out")
	http.Redirect(w, r, "/", http.StatusFound)
}
