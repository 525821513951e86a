package web

import (
	"strconv"
	"time"

	"procodus.dev/scmxpert/internal/store"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// page carries what every layout needs.
type page struct {
	Title    string
	Theme    string
	Username string
	Flashes  []Flash
}

// registerForm keeps the non-secret fields of a rejected registration.
type registerForm struct {
	Username string
	Email    string
}

func themeClass(theme string) string {
	if theme == store.ThemeDark {
		return "theme-dark"
	}
	return "theme-light"
}

func optionalText(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func optionalFloat(v *float64, unit string) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + unit
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(dateTimeLayout)
}

func statusClass(status string) string {
	switch status {
	case store.StatusDelivered, store.DeviceActive:
		return "status-ok"
	case store.StatusDelayed, store.DeviceInactive:
		return "status-warn"
	default:
		return "status-info"
	}
}

func optionalPercent(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v) + "%"
}

func count(n int64) string {
	return strconv.FormatInt(n, 10)
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
