// Package generator produces identifiers, sample locations and synthetic
// sensor readings for shipments and IoT devices.
package generator

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

const deviceIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator wraps a thread-safe faker. Use a fixed seed for reproducible output.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator seeded with seed. A seed of 0 picks a random one.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// TrackingNumber returns "SCM" followed by 8 random digits.
func (g *Generator) TrackingNumber() string {
	return "SCM" + g.faker.Numerify("########")
}

// DeviceID returns "IOT" followed by 6 random uppercase letters or digits.
func (g *Generator) DeviceID() string {
	var b strings.Builder
	b.Grow(9)
	b.WriteString("IOT")
	for range 6 {
		b.WriteByte(deviceIDAlphabet[g.faker.IntN(len(deviceIDAlphabet))])
	}
	return b.String()
}

// EstimatedDelivery returns from plus a random whole number of days in [1, 7].
func (g *Generator) EstimatedDelivery(from time.Time) time.Time {
	return from.AddDate(0, 0, g.faker.IntRange(1, 7))
}

// Location returns a "City, ST" string.
func (g *Generator) Location() string {
	return g.faker.City() + ", " + g.faker.StateAbr()
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	return g.faker.Float64() < p
}

// Pick returns one of options uniformly at random.
func (g *Generator) Pick(options []string) string {
	return g.faker.RandomString(options)
}

// Float64 returns a value in [0, 1).
func (g *Generator) Float64() float64 {
	return g.faker.Float64()
}
