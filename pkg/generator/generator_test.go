package generator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/scmxpert/pkg/generator"
)

var _ = Describe("Generator", func() {
	var g *generator.Generator

	BeforeEach(func() {
		g = generator.New(42)
	})

	It("should generate tracking numbers", func() {
		for range 50 {
			Expect(g.TrackingNumber()).To(MatchRegexp(`^SCM[0-9]{8}$`))
		}
	})

	It("should generate device ids", func() {
		for range 50 {
			Expect(g.DeviceID()).To(MatchRegexp(`^IOT[A-Z0-9]{6}$`))
		}
	})

	It("should be reproducible for a fixed seed", func() {
		other := generator.New(42)
		Expect(g.TrackingNumber()).To(Equal(other.TrackingNumber()))
		Expect(g.DeviceID()).To(Equal(other.DeviceID()))
	})

	It("should estimate delivery one to seven days ahead", func() {
		now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
		for range 50 {
			eta := g.EstimatedDelivery(now)
			days := eta.Sub(now).Hours() / 24
			Expect(days).To(BeNumerically(">=", 1))
			Expect(days).To(BeNumerically("<=", 7))
			Expect(eta.Hour()).To(Equal(12))
		}
	})

	It("should format locations as city and state", func() {
		Expect(g.Location()).To(MatchRegexp(`^.+, [A-Z]{2}$`))
	})

	It("should honour chance bounds", func() {
		Expect(g.Chance(0)).To(BeFalse())
		Expect(g.Chance(1)).To(BeTrue())
	})

	Describe("ReadingGenerator", func() {
		It("should produce readings in realistic ranges", func() {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			rg := g.NewReadingGenerator("IOTABC123", start)
			Expect(rg.DeviceID()).To(Equal("IOTABC123"))

			for i := range 48 {
				at := start.Add(time.Duration(i) * time.Hour)
				reading := rg.Reading(at)
				Expect(reading.DeviceID).To(Equal("IOTABC123"))
				Expect(reading.Timestamp).To(Equal(at))
				Expect(reading.Temperature).NotTo(BeNil())
				Expect(reading.Humidity).To(HaveValue(BeNumerically(">=", 20)))
				Expect(reading.Humidity).To(HaveValue(BeNumerically("<=", 95)))
				Expect(reading.BatteryLevel).To(HaveValue(BeNumerically(">=", 5)))
				Expect(reading.BatteryLevel).To(HaveValue(BeNumerically("<=", 100)))
			}
		})

		It("should drain the battery over time", func() {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			rg := g.NewReadingGenerator("IOTABC123", start)
			Expect(rg.BatteryLevel(start)).To(BeNumerically(">=", 97))
			Expect(rg.BatteryLevel(start.Add(90 * 24 * time.Hour))).To(Equal(5))
		})

		It("should drain from a given starting charge", func() {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			rg := g.NewReadingGenerator("IOTABC123", start).WithBattery(85)
			Expect(rg.BatteryLevel(start)).To(BeNumerically("~", 84, 1))
			Expect(rg.BatteryLevel(start.Add(24 * time.Hour))).To(BeNumerically("<=", 85))
			Expect(rg.BatteryLevel(start.Add(90 * 24 * time.Hour))).To(Equal(5))
		})
	})
})
