package web_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/store/storetest"
	"procodus.dev/scmxpert/internal/web"
	"procodus.dev/scmxpert/pkg/generator"
	"procodus.dev/scmxpert/pkg/logger"
	"procodus.dev/scmxpert/pkg/metrics"
)

type response struct {
	header http.Header
	body   string
	status int
}

type browser struct {
	client *http.Client
	base   string
}

func newBrowser(base string) *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())

	return &browser{
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) response {
	resp, err := b.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return response{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func (b *browser) get(path string) response {
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	Expect(err).NotTo(HaveOccurred())
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) response {
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) setCookie(name, value string) {
	u, err := url.Parse(b.base)
	Expect(err).NotTo(HaveOccurred())
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func (b *browser) cookie(name string) *http.Cookie {
	u, err := url.Parse(b.base)
	Expect(err).NotTo(HaveOccurred())
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func registration(username, password, confirm string) url.Values {
	return url.Values{
		"username":         {username},
		"email":            {username + "@example.com"},
		"password":         {password},
		"confirm_password": {confirm},
	}
}

var _ = Describe("Handler", func() {
	var (
		ctx      context.Context
		s        *store.Store
		sessions *auth.SessionCodec
		reg      *prometheus.Registry
		server   *httptest.Server
		b        *browser
	)

	newHandler := func(loginRateLimit int) http.Handler {
		handler, err := web.NewHandler(&web.HandlerConfig{
			Logger:         storetest.Logger(),
			Store:          s,
			Sessions:       sessions,
			Metrics:        metrics.NewWebMetrics(reg, "test"),
			Gatherer:       reg,
			Generator:      generator.New(3),
			BcryptCost:     bcrypt.MinCost,
			LoginRateLimit: loginRateLimit,
		})
		Expect(err).NotTo(HaveOccurred())
		return handler
	}

	signUp := func(b *browser, username string) {
		resp := b.post("/register", registration(username, "s3cret", "s3cret"))
		Expect(resp.status).To(Equal(http.StatusFound))
		resp = b.post("/login", url.Values{"username": {username}, "password": {"s3cret"}})
		Expect(resp.status).To(Equal(http.StatusFound))
	}

	userID := func(username string) uint {
		user, err := s.Users().GetByUsername(ctx, username)
		Expect(err).NotTo(HaveOccurred())
		return user.ID
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		s, _, err = storetest.NewStore()
		Expect(err).NotTo(HaveOccurred())

		sessions, err = auth.NewSessionCodec([]byte("test-secret"))
		Expect(err).NotTo(HaveOccurred())

		reg = prometheus.NewRegistry()
		server = httptest.NewServer(newHandler(0))
		DeferCleanup(server.Close)

		b = newBrowser(server.URL)
	})

	Describe("NewHandler", func() {
		It("should validate its configuration", func() {
			_, err := web.NewHandler(nil)
			Expect(err).To(MatchError("handler config cannot be nil"))
			_, err = web.NewHandler(&web.HandlerConfig{})
			Expect(err).To(MatchError("logger cannot be nil"))
			_, err = web.NewHandler(&web.HandlerConfig{Logger: storetest.Logger()})
			Expect(err).To(MatchError("store cannot be nil"))
			_, err = web.NewHandler(&web.HandlerConfig{Logger: storetest.Logger(), Store: s})
			Expect(err).To(MatchError("session codec cannot be nil"))
			_, err = web.NewHandler(&web.HandlerConfig{
				Logger: storetest.Logger(), Store: s, Sessions: sessions, LoginRateLimit: -1,
			})
			Expect(err).To(MatchError("login rate limit cannot be negative"))
		})
	})

	Context("without a session", func() {
		It("should serve the public pages", func() {
			for _, path := range []string{"/", "/login", "/register"} {
				resp := b.get(path)
				Expect(resp.status).To(Equal(http.StatusOK), path)
				Expect(resp.header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
			}
		})

		It("should redirect pages to the login form", func() {
			for _, path := range []string{"/dashboard", "/tracking", "/analytics", "/iot", "/init_sample_data"} {
				resp := b.get(path)
				Expect(resp.status).To(Equal(http.StatusFound), path)
				Expect(resp.header.Get("Location")).To(Equal("/login"))
			}
		})

		It("should answer API routes with 401 JSON", func() {
			resp := b.post("/toggle_theme", nil)
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(resp.body).To(MatchJSON(`{"error":"Not logged in"}`))

			resp = b.get("/api/shipment_status/SCM12345678")
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(resp.body).To(MatchJSON(`{"error":"Not logged in"}`))
		})

		It("should treat a tampered session cookie as no session", func() {
			b.setCookie("scmxpert_session", "not-a-token")

			resp := b.get("/dashboard")
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(resp.header.Get("Location")).To(Equal("/login"))
		})

		It("should treat a session of a missing user as no session", func() {
			token, err := sessions.Encode(&auth.Session{UserID: 999, Username: "ghost", Theme: store.ThemeLight})
			Expect(err).NotTo(HaveOccurred())
			b.setCookie("scmxpert_session", token)

			resp := b.get("/dashboard")
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(b.cookie("scmxpert_session")).To(BeNil())
		})
	})

	Describe("registration", func() {
		It("should re-render a rejected form with its values escaped", func() {
			resp := b.post("/register", registration(`al"ice<`, "s3cret", "different"))
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.body).To(ContainSubstring(`<div class="flash flash-error" role="alert">`))
			Expect(resp.body).To(ContainSubstring(`value="al&#34;ice&lt;"`))
			Expect(resp.body).NotTo(ContainSubstring(`al"ice<`))
		})

		It("should create the account and flash once on the login page", func() {
			resp := b.post("/register", registration("alice", "s3cret", "s3cret"))
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(resp.header.Get("Location")).To(Equal("/login"))

			resp = b.get("/login")
			Expect(resp.body).To(ContainSubstring("Registration successful! Please login."))

			resp = b.get("/login")
			Expect(resp.body).NotTo(ContainSubstring("Registration successful!"))

			user, err := s.Users().GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.PasswordHash).NotTo(Equal("s3cret"))
		})

		DescribeTable("should re-render the form with the reason",
			func(form url.Values, message string) {
				signUp(newBrowser(server.URL), "taken")

				resp := b.post("/register", form)
				Expect(resp.status).To(Equal(http.StatusOK))
				Expect(resp.body).To(ContainSubstring(message))

				ids, err := s.Users().ListIDs(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(HaveLen(1))
			},
			Entry("mismatched passwords", registration("carol", "one", "two"), "Passwords do not match"),
			Entry("taken username", url.Values{
				"username": {"taken"}, "email": {"other@example.com"}, "password": {"x"}, "confirm_password": {"x"},
			}, "Username already exists"),
			Entry("taken email", url.Values{
				"username": {"other"}, "email": {"taken@example.com"}, "password": {"x"}, "confirm_password": {"x"},
			}, "Email already exists"),
			Entry("missing username", registration("", "x", "x"), "Username is required"),
		)

		It("should keep the entered username and email", func() {
			resp := b.post("/register", registration("dave", "one", "two"))
			Expect(resp.body).To(ContainSubstring(`value="dave"`))
			Expect(resp.body).To(ContainSubstring(`value="dave@example.com"`))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			resp := b.post("/register", registration("alice", "s3cret", "s3cret"))
			Expect(resp.status).To(Equal(http.StatusFound))
		})

		It("should issue an HttpOnly session cookie and redirect to the dashboard", func() {
			req, err := http.NewRequest(http.MethodPost, server.URL+"/login",
				strings.NewReader(url.Values{"username": {"alice"}, "password": {"s3cret"}}.Encode()))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := b.client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusFound))
			Expect(resp.Header.Get("Location")).To(Equal("/dashboard"))

			var session *http.Cookie
			for _, c := range resp.Cookies() {
				if c.Name == "scmxpert_session" {
					session = c
				}
			}
			Expect(session).NotTo(BeNil())
			Expect(session.HttpOnly).To(BeTrue())
			Expect(session.SameSite).To(Equal(http.SameSiteLaxMode))

			page := b.get("/dashboard")
			Expect(page.status).To(Equal(http.StatusOK))
			Expect(page.body).To(ContainSubstring("Login successful!"))
			Expect(page.body).To(ContainSubstring("alice"))
		})

		It("should fail the same way for a wrong password and an unknown user", func() {
			wrong := b.post("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
			unknown := b.post("/login", url.Values{"username": {"mallory"}, "password": {"nope"}})

			for _, resp := range []response{wrong, unknown} {
				Expect(resp.status).To(Equal(http.StatusOK))
				Expect(resp.body).To(ContainSubstring("Invalid username or password"))
			}
			Expect(b.cookie("scmxpert_session")).To(BeNil())
		})

		It("should tag the login log record with the request id", func() {
			logs := gbytes.NewBuffer()
			handler, err := web.NewHandler(&web.HandlerConfig{
				Logger:     logger.New(&logger.Config{Output: logs, Level: slog.LevelInfo}),
				Store:      s,
				Sessions:   sessions,
				Metrics:    metrics.NewWebMetrics(prometheus.NewRegistry(), "test"),
				Gatherer:   prometheus.NewRegistry(),
				BcryptCost: bcrypt.MinCost,
			})
			Expect(err).NotTo(HaveOccurred())
			logged := httptest.NewServer(handler)
			defer logged.Close()

			req, err := http.NewRequest(http.MethodPost, logged.URL+"/login",
				strings.NewReader(url.Values{"username": {"alice"}, "password": {"s3cret"}}.Encode()))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("X-Request-Id", "login-req-42")

			resp := newBrowser(logged.URL).do(req)
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(logs).To(gbytes.Say(`"msg":"user logged in"[^\n]*"request_id":"login-req-42"`))
		})

		It("should limit login attempts when configured", func() {
			limited := httptest.NewServer(newHandlerWithRegistry(s, sessions, 2))
			defer limited.Close()

			lb := newBrowser(limited.URL)
			form := url.Values{"username": {"alice"}, "password": {"nope"}}
			Expect(lb.post("/login", form).status).To(Equal(http.StatusOK))
			Expect(lb.post("/login", form).status).To(Equal(http.StatusOK))
			Expect(lb.post("/login", form).status).To(Equal(http.StatusTooManyRequests))
		})
	})

	Context("with a session", func() {
		BeforeEach(func() {
			signUp(b, "alice")
		})

		It("should log out and flash a notice", func() {
			resp := b.get("/logout")
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(resp.header.Get("Location")).To(Equal("/"))
			Expect(b.cookie("scmxpert_session")).To(BeNil())

			Expect(b.get("/").body).To(ContainSubstring("You have been logged out"))
			Expect(b.get("/dashboard").status).To(Equal(http.StatusFound))
		})

		It("should show empty pages before seeding", func() {
			for _, path := range []string{"/dashboard", "/tracking", "/analytics", "/iot"} {
				resp := b.get(path)
				Expect(resp.status).To(Equal(http.StatusOK), path)
			}
			Expect(b.get("/tracking").body).To(ContainSubstring("No shipments yet"))
		})

		It("should seed sample data once", func() {
			resp := b.get("/init_sample_data")
			Expect(resp.status).To(Equal(http.StatusFound))
			Expect(resp.header.Get("Location")).To(Equal("/dashboard"))

			page := b.get("/dashboard")
			Expect(page.body).To(ContainSubstring("Sample data initialized!"))
			Expect(page.body).To(ContainSubstring("New York, NY"))
			Expect(page.body).To(ContainSubstring("Humidity Sensor"))

			Expect(b.get("/init_sample_data").status).To(Equal(http.StatusFound))

			count, err := s.Shipments().CountByUser(ctx, userID("alice"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))

			analytics := b.get("/analytics")
			Expect(analytics.body).To(ContainSubstring("$735.24"))
			Expect(analytics.body).To(ContainSubstring("$245.08"))
		})

		It("should toggle the theme and mirror it into the session", func() {
			resp := b.post("/toggle_theme", nil)
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.body).To(MatchJSON(`{"theme":"dark"}`))
			Expect(b.get("/dashboard").body).To(ContainSubstring(`class="theme-dark"`))

			user, err := s.Users().GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ThemePreference).To(Equal(store.ThemeDark))

			resp = b.post("/toggle_theme", nil)
			Expect(resp.body).To(MatchJSON(`{"theme":"light"}`))
			Expect(b.get("/dashboard").body).To(ContainSubstring(`class="theme-light"`))
		})

		Describe("shipment status", func() {
			var eta time.Time

			BeforeEach(func() {
				eta = time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC)
				location := "Chicago, IL"
				Expect(s.Shipments().CreateBatch(ctx, []store.Shipment{
					{
						UserID: userID("alice"), TrackingNumber: "SCM00000001", Origin: "A", Destination: "B",
						Status: store.StatusInTransit, CurrentLocation: &location, EstimatedDelivery: &eta,
					},
					{
						UserID: userID("alice"), TrackingNumber: "SCM00000002", Origin: "A", Destination: "B",
						Status: store.StatusDelayed,
					},
				})).To(Succeed())
			})

			It("should return the snapshot of an owned shipment", func() {
				resp := b.get("/api/shipment_status/SCM00000001")
				Expect(resp.status).To(Equal(http.StatusOK))
				Expect(resp.header.Get("Content-Type")).To(Equal("application/json"))
				Expect(resp.body).To(MatchJSON(`{
					"tracking_number": "SCM00000001",
					"status": "In Transit",
					"current_location": "Chicago, IL",
					"temperature": null,
					"humidity": null,
					"estimated_delivery": "2025-05-01T12:30:00Z"
				}`))
			})

			It("should return null for missing optional fields", func() {
				resp := b.get("/api/shipment_status/SCM00000002")
				Expect(resp.status).To(Equal(http.StatusOK))

				var body map[string]any
				Expect(json.Unmarshal([]byte(resp.body), &body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("estimated_delivery", BeNil()))
				Expect(body).To(HaveKeyWithValue("current_location", BeNil()))
				Expect(body).To(HaveKeyWithValue("status", "Delayed"))
			})

			It("should not reveal another user's shipment", func() {
				other := newBrowser(server.URL)
				signUp(other, "bob")

				for _, tn := range []string{"SCM00000001", "SCM99999999"} {
					resp := other.get("/api/shipment_status/" + tn)
					Expect(resp.status).To(Equal(http.StatusNotFound))
					Expect(resp.body).To(MatchJSON(`{"error":"Shipment not found"}`))
				}
			})
		})
	})

	It("should escape user supplied text", func() {
		signUp(b, "<b>eve</b>")

		page := b.get("/dashboard")
		Expect(page.body).To(ContainSubstring("&lt;b&gt;eve&lt;/b&gt;"))
		Expect(page.body).NotTo(ContainSubstring("<b>eve</b>"))
	})

	It("should serve health and metrics", func() {
		resp := b.get("/health")
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.body).To(MatchJSON(`{"status":"ok"}`))

		b.get("/login")
		resp = b.get("/metrics")
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.body).To(ContainSubstring(`test_http_requests_total{method="GET",route="/login",status_code="200"}`))
		Expect(resp.body).To(ContainSubstring(`test_template_render_duration_seconds`))
	})
})

func newHandlerWithRegistry(s *store.Store, sessions *auth.SessionCodec, loginRateLimit int) http.Handler {
	handler, err := web.NewHandler(&web.HandlerConfig{
		Logger:         storetest.Logger(),
		Store:          s,
		Sessions:       sessions,
		Metrics:        metrics.NewWebMetrics(prometheus.NewRegistry(), "test"),
		Gatherer:       prometheus.NewRegistry(),
		BcryptCost:     bcrypt.MinCost,
		LoginRateLimit: loginRateLimit,
	})
	Expect(err).NotTo(HaveOccurred())
	return handler
}
