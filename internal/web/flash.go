package web

import (
	"encoding/base64"
	"net/http"

	"github.com/goccy/go-json"
)

const flashCookieName = "scmxpert_flash"

// Flash categories.
const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// addFlash queues a notice for the page rendered after a redirect. Notices
// already queued on the request are kept.
func (h *Handler) addFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	flashes := append(readFlashes(r), Flash{Category: category, Message: message})

	data, err := json.Marshal(flashes)
	if err != nil {
		h.logger.Error("failed to encode flash", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlashes returns the queued notices and clears them.
func (h *Handler) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := readFlashes(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return flashes
}

func readFlashes(r *http.Request) []Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	var flashes []Flash
	if err := json.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}
