package auth_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/store/storetest"
)

func countUsers(db *gorm.DB) int64 {
	var n int64
	Expect(db.Model(&store.User{}).Count(&n).Error).To(Succeed())
	return n
}

func validationMessage(err error) string {
	var vErr *auth.ValidationError
	Expect(errors.As(err, &vErr)).To(BeTrue(), "expected a validation error, got %v", err)
	return vErr.Message
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		db  *gorm.DB
		svc *auth.Service
	)

	valid := auth.RegisterRequest{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "s3cret",
		ConfirmPassword: "s3cret",
	}

	BeforeEach(func() {
		ctx = context.Background()
		s, gdb, err := storetest.NewStore()
		Expect(err).NotTo(HaveOccurred())
		db = gdb

		svc, err = auth.NewService(&auth.ServiceConfig{
			Logger:     storetest.Logger(),
			Store:      s,
			BcryptCost: bcrypt.MinCost,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewService", func() {
		It("should validate its configuration", func() {
			_, err := auth.NewService(nil)
			Expect(err).To(MatchError("auth config cannot be nil"))

			_, err = auth.NewService(&auth.ServiceConfig{})
			Expect(err).To(MatchError("logger cannot be nil"))

			_, err = auth.NewService(&auth.ServiceConfig{Logger: storetest.Logger()})
			Expect(err).To(MatchError("store cannot be nil"))
		})

		It("should reject out of range bcrypt costs", func() {
			s, _, err := storetest.NewStore()
			Expect(err).NotTo(HaveOccurred())
			_, err = auth.NewService(&auth.ServiceConfig{Logger: storetest.Logger(), Store: s, BcryptCost: 99})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Register", func() {
		It("should create the user with a hashed password", func() {
			user, err := svc.Register(ctx, valid)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).NotTo(BeZero())
			Expect(user.PasswordHash).NotTo(Equal("s3cret"))
			Expect(auth.CheckPassword(user.PasswordHash, "s3cret")).To(BeTrue())
			Expect(countUsers(db)).To(BeEquivalentTo(1))
		})

		DescribeTable("should reject missing fields",
			func(mutate func(*auth.RegisterRequest), message string) {
				req := valid
				mutate(&req)
				_, err := svc.Register(ctx, req)
				Expect(validationMessage(err)).To(Equal(message))
				Expect(countUsers(db)).To(BeZero())
			},
			Entry("username", func(r *auth.RegisterRequest) { r.Username = "" }, "Username is required"),
			Entry("email", func(r *auth.RegisterRequest) { r.Email = "" }, "Email is required"),
			Entry("password", func(r *auth.RegisterRequest) { r.Password = "" }, "Password is required"),
			Entry("confirmation", func(r *auth.RegisterRequest) { r.ConfirmPassword = "" }, "Confirm password is required"),
		)

		It("should reject mismatched passwords", func() {
			req := valid
			req.ConfirmPassword = "other"
			_, err := svc.Register(ctx, req)
			Expect(validationMessage(err)).To(Equal("Passwords do not match"))
			Expect(countUsers(db)).To(BeZero())
		})

		It("should reject a taken username without writing", func() {
			_, err := svc.Register(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			req := valid
			req.Email = "other@example.com"
			_, err = svc.Register(ctx, req)
			Expect(validationMessage(err)).To(Equal("Username already exists"))
			Expect(countUsers(db)).To(BeEquivalentTo(1))
		})

		It("should reject a taken email without writing", func() {
			_, err := svc.Register(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			req := valid
			req.Username = "alice2"
			_, err = svc.Register(ctx, req)
			Expect(validationMessage(err)).To(Equal("Email already exists"))
			Expect(countUsers(db)).To(BeEquivalentTo(1))
		})

		It("should accept passwords longer than bcrypt's input limit", func() {
			long := strings.Repeat("a", 73)
			req := valid
			req.Password, req.ConfirmPassword = long, long

			_, err := svc.Register(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Login(ctx, auth.LoginRequest{Username: "alice", Password: long})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Login(ctx, auth.LoginRequest{Username: "alice", Password: strings.Repeat("a", 72)})
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			_, err = svc.Login(ctx, auth.LoginRequest{Username: "alice", Password: long + "b"})
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})

		It("should enforce the username length", func() {
			req := valid
			req.Username = strings.Repeat("x", 65)
			_, err := svc.Register(ctx, req)
			Expect(validationMessage(err)).To(Equal("Username must be at most 64 characters"))
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			_, err := svc.Register(ctx, valid)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return a session for valid credentials", func() {
			session, err := svc.Login(ctx, auth.LoginRequest{Username: "alice", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.UserID).NotTo(BeZero())
			Expect(session.Username).To(Equal("alice"))
			Expect(session.Theme).To(Equal(store.ThemeLight))
		})

		It("should fail identically for a wrong password and an unknown user", func() {
			_, wrongPassword := svc.Login(ctx, auth.LoginRequest{Username: "alice", Password: "nope"})
			_, unknownUser := svc.Login(ctx, auth.LoginRequest{Username: "mallory", Password: "s3cret"})

			Expect(wrongPassword).To(MatchError(auth.ErrInvalidCredentials))
			Expect(unknownUser).To(MatchError(auth.ErrInvalidCredentials))
			Expect(wrongPassword.Error()).To(Equal("Invalid username or password"))
		})

		It("should spend a bcrypt comparison on unknown users too", func() {
			s, _, err := storetest.NewStore()
			Expect(err).NotTo(HaveOccurred())
			slow, err := auth.NewService(&auth.ServiceConfig{
				Logger:     storetest.Logger(),
				Store:      s,
				BcryptCost: 11,
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = slow.Register(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			timeLogin := func(username string) time.Duration {
				start := time.Now()
				_, err := slow.Login(ctx, auth.LoginRequest{Username: username, Password: "nope"})
				Expect(err).To(MatchError(auth.ErrInvalidCredentials))
				return time.Since(start)
			}

			wrongPassword := timeLogin("alice")
			unknownUser := timeLogin("mallory")
			Expect(unknownUser).To(BeNumerically(">=", wrongPassword/4))
		})

		It("should reject empty credentials", func() {
			_, err := svc.Login(ctx, auth.LoginRequest{})
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})
	})
})
