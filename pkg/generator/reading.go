package generator

import (
	"math"
	"time"

	"procodus.dev/scmxpert/pkg/telemetry"
)

// ReadingGenerator produces correlated readings for a single device.
type ReadingGenerator struct {
	rnd              *Generator
	startedAt        time.Time
	deviceID         string
	baselineTemp     float64
	baselineHumidity float64
	noise            float64
	drainHours       float64
	startBattery     float64
}

// NewReadingGenerator creates a generator for deviceID with random baselines.
// The battery drains linearly from startedAt.
func (g *Generator) NewReadingGenerator(deviceID string, startedAt time.Time) *ReadingGenerator {
	return &ReadingGenerator{
		rnd:              g,
		startedAt:        startedAt,
		deviceID:         deviceID,
		baselineTemp:     2.0 + g.Float64()*20, // cold chain to ambient, 2-22°C
		baselineHumidity: 40.0 + g.Float64()*30,
		noise:            g.Float64() * 2,
		drainHours:       720 + g.Float64()*360, // 30-45 days
		startBattery:     100,
	}
}

// WithBattery makes the battery drain from level instead of a full charge.
func (r *ReadingGenerator) WithBattery(level int) *ReadingGenerator {
	r.startBattery = math.Max(5, math.Min(100, float64(level)))
	return r
}

// DeviceID returns the device the generator reports for.
func (r *ReadingGenerator) DeviceID() string {
	return r.deviceID
}

// Temperature with a daily pattern.
func (r *ReadingGenerator) Temperature(t time.Time) float64 {
	hour := float64(t.Hour())

	// peak around 2-3 PM
	dailyCycle := 3 * math.Sin((hour-6)*math.Pi/12)
	noise := (r.rnd.Float64() - 0.5) * r.noise

	anomaly := 0.0
	if r.rnd.Chance(0.05) {
		anomaly = (r.rnd.Float64() - 0.5) * 15
	}

	return r.baselineTemp + dailyCycle + noise + anomaly
}

// Humidity inversely correlated with temperature, clamped to 20-95%.
func (r *ReadingGenerator) Humidity(t time.Time, temperature float64) float64 {
	hour := float64(t.Hour())

	dailyCycle := -3 * math.Sin((hour-6)*math.Pi/12)
	tempEffect := -(temperature - r.baselineTemp) * 1.5
	noise := (r.rnd.Float64() - 0.5) * r.noise * 0.5
	weatherPattern := 10 * math.Sin(float64(t.Unix())/(86400*7))

	anomaly := 0.0
	if r.rnd.Chance(0.03) {
		anomaly = r.rnd.Float64() * 20
	}

	humidity := r.baselineHumidity + dailyCycle + tempEffect + noise + weatherPattern + anomaly
	return math.Max(20, math.Min(95, humidity))
}

// BatteryLevel drains from the starting charge towards 5 over the device
// lifetime.
func (r *ReadingGenerator) BatteryLevel(t time.Time) int {
	hours := t.Sub(r.startedAt).Hours()
	battery := r.startBattery - hours/r.drainHours*100 - r.rnd.Float64()*2
	return int(math.Round(math.Max(5, math.Min(r.startBattery, battery))))
}

// Reading generates a correlated reading at t.
func (r *ReadingGenerator) Reading(t time.Time) *telemetry.DeviceReading {
	temperature := r.Temperature(t)
	humidity := math.Round(r.Humidity(t, temperature)*100) / 100
	temperature = math.Round(temperature*100) / 100
	battery := r.BatteryLevel(t)

	return &telemetry.DeviceReading{
		DeviceID:     r.deviceID,
		Timestamp:    t.UTC(),
		Temperature:  &temperature,
		Humidity:     &humidity,
		BatteryLevel: &battery,
	}
}
