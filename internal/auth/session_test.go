package auth_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/scmxpert/internal/auth"
)

var _ = Describe("SessionCodec", func() {
	var codec *auth.SessionCodec

	BeforeEach(func() {
		var err error
		codec, err = auth.NewSessionCodec([]byte("test-secret"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should require a secret", func() {
		_, err := auth.NewSessionCodec(nil)
		Expect(err).To(MatchError("session secret cannot be empty"))
	})

	It("should round-trip a session", func() {
		token, err := codec.Encode(&auth.Session{UserID: 7, Username: "alice", Theme: "dark"})
		Expect(err).NotTo(HaveOccurred())

		session, err := codec.Decode(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(*session).To(Equal(auth.Session{UserID: 7, Username: "alice", Theme: "dark"}))
	})

	It("should issue distinct tokens for the same session", func() {
		a, err := codec.Encode(&auth.Session{UserID: 7})
		Expect(err).NotTo(HaveOccurred())
		b, err := codec.Encode(&auth.Session{UserID: 7})
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("should refuse to encode a session without a user", func() {
		_, err := codec.Encode(&auth.Session{Username: "ghost"})
		Expect(err).To(HaveOccurred())
		_, err = codec.Encode(nil)
		Expect(err).To(HaveOccurred())
	})

	It("should reject tampered tokens", func() {
		token, err := codec.Encode(&auth.Session{UserID: 7, Username: "alice"})
		Expect(err).NotTo(HaveOccurred())

		parts := strings.Split(token, ".")
		Expect(parts).To(HaveLen(3))
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err = codec.Decode(parts[0] + "." + parts[1] + "." + string(sig))
		Expect(err).To(HaveOccurred())
	})

	It("should reject tokens signed with another secret", func() {
		other, err := auth.NewSessionCodec([]byte("other-secret"))
		Expect(err).NotTo(HaveOccurred())
		token, err := other.Encode(&auth.Session{UserID: 7})
		Expect(err).NotTo(HaveOccurred())

		_, err = codec.Decode(token)
		Expect(err).To(HaveOccurred())
	})

	It("should reject garbage", func() {
		_, err := codec.Decode("not-a-token")
		Expect(err).To(HaveOccurred())
		_, err = codec.Decode("")
		Expect(err).To(HaveOccurred())
	})
})
