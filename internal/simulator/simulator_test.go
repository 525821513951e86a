package simulator_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"

	"procodus.dev/scmxpert/internal/simulator"
	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/store/storetest"
	"procodus.dev/scmxpert/pkg/generator"
	"procodus.dev/scmxpert/pkg/metrics"
	mqmock "procodus.dev/scmxpert/pkg/mq/mock"
	"procodus.dev/scmxpert/pkg/telemetry"
)

var _ = Describe("Simulator", func() {
	var (
		ctx       context.Context
		s         *store.Store
		publisher *mqmock.Client
		now       time.Time
		reg       *prometheus.Registry
		m         *metrics.SimulatorMetrics
	)

	newSimulator := func(probability float64) *simulator.Simulator {
		sim, err := simulator.New(&simulator.Config{
			Logger:                storetest.Logger(),
			Targets:               simulator.StoreTargets(s),
			Publisher:             publisher,
			Generator:             generator.New(11),
			Metrics:               m,
			Now:                   func() time.Time { return now },
			TransitionProbability: probability,
		})
		Expect(err).NotTo(HaveOccurred())
		return sim
	}

	published := func() []*telemetry.Message {
		var msgs []*telemetry.Message
		for _, call := range publisher.Calls {
			if call.Method != "Push" {
				continue
			}
			msg, err := telemetry.Decode(call.Arguments.Get(1).([]byte))
			Expect(err).NotTo(HaveOccurred())
			msgs = append(msgs, msg)
		}
		return msgs
	}

	deviceReadings := func(msgs []*telemetry.Message) []*telemetry.DeviceReading {
		var readings []*telemetry.DeviceReading
		for _, msg := range msgs {
			if msg.Kind == telemetry.KindDeviceReading {
				readings = append(readings, msg.Device)
			}
		}
		return readings
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)

		var err error
		s, _, err = storetest.NewStore()
		Expect(err).NotTo(HaveOccurred())

		user := &store.User{Username: "alice", Email: "alice@example.com"}
		Expect(s.Users().Create(ctx, user)).To(Succeed())

		Expect(s.Devices().CreateBatch(ctx, []store.IoTDevice{
			{UserID: user.ID, DeviceID: "IOT001", DeviceType: "Temperature Sensor", Status: store.DeviceActive},
			{UserID: user.ID, DeviceID: "IOT002", DeviceType: "GPS Tracker", Status: store.DeviceInactive},
		})).To(Succeed())
		Expect(s.Shipments().CreateBatch(ctx, []store.Shipment{
			{UserID: user.ID, TrackingNumber: "SCM12345678", Origin: "New York, NY", Destination: "Los Angeles, CA", Status: store.StatusInTransit},
			{UserID: user.ID, TrackingNumber: "SCM87654321", Origin: "Chicago, IL", Destination: "Miami, FL", Status: store.StatusDelivered},
		})).To(Succeed())

		publisher = &mqmock.Client{}
		reg = prometheus.NewRegistry()
		m = metrics.NewSimulatorMetrics(reg, "test")
	})

	Describe("New", func() {
		It("should validate its configuration", func() {
			_, err := simulator.New(nil)
			Expect(err).To(MatchError("simulator config cannot be nil"))
			_, err = simulator.New(&simulator.Config{})
			Expect(err).To(MatchError("logger cannot be nil"))
			_, err = simulator.New(&simulator.Config{Logger: storetest.Logger()})
			Expect(err).To(MatchError("targets cannot be nil"))
			_, err = simulator.New(&simulator.Config{Logger: storetest.Logger(), Targets: simulator.StoreTargets(s)})
			Expect(err).To(MatchError("publisher cannot be nil"))
			_, err = simulator.New(&simulator.Config{
				Logger: storetest.Logger(), Targets: simulator.StoreTargets(s), Publisher: publisher,
				TransitionProbability: 1.5,
			})
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})
	})

	Describe("Tick", func() {
		It("should publish for active devices and in-transit shipments only", func() {
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil)

			n, err := newSimulator(0).Tick(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			msgs := published()
			Expect(msgs).To(HaveLen(2))

			Expect(msgs[0].Kind).To(Equal(telemetry.KindDeviceReading))
			Expect(msgs[0].Device.DeviceID).To(Equal("IOT001"))
			Expect(msgs[0].Device.Timestamp).To(BeTemporally("==", now))
			Expect(msgs[0].Device.BatteryLevel).To(HaveValue(BeNumerically(">=", 5)))

			Expect(msgs[1].Kind).To(Equal(telemetry.KindShipmentUpdate))
			Expect(msgs[1].Shipment.TrackingNumber).To(Equal("SCM12345678"))
			Expect(msgs[1].Shipment.Status).To(BeNil())
			Expect(msgs[1].Shipment.CurrentLocation).NotTo(BeNil())
			Expect(msgs[1].Shipment.Temperature).NotTo(BeNil())
		})

		It("should transition shipments when the chance hits", func() {
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil)

			_, err := newSimulator(1).Tick(ctx)
			Expect(err).NotTo(HaveOccurred())

			update := published()[1].Shipment
			Expect(update.Status).NotTo(BeNil())
			Expect(*update.Status).To(BeElementOf(store.StatusDelivered, store.StatusDelayed))
			if *update.Status == store.StatusDelivered {
				Expect(*update.CurrentLocation).To(Equal("Los Angeles, CA"))
				Expect(update.ActualDelivery).NotTo(BeNil())
			}
		})

		It("should keep going when a push fails and report the failure", func() {
			publisher.On("Push", mock.Anything, mock.Anything).Return(errors.New("maximum retry attempts exceeded")).Once()
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil)

			n, err := newSimulator(0).Tick(ctx)
			Expect(err).To(MatchError(ContainSubstring("maximum retry attempts exceeded")))
			Expect(n).To(Equal(1))
			publisher.AssertNumberOfCalls(GinkgoT(), "Push", 2)

			families, gatherErr := reg.Gather()
			Expect(gatherErr).NotTo(HaveOccurred())
			names := make([]string, 0, len(families))
			for _, family := range families {
				names = append(names, family.GetName())
			}
			Expect(names).To(ContainElements(
				"test_simulator_messages_published_total",
				"test_simulator_publish_failures_total",
				"test_simulator_targets",
			))
		})

		It("should start a device's battery from its stored level", func() {
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil)
			Expect(s.Devices().ApplyReading(ctx, "IOT001", store.DeviceReading{
				LastPing: now, BatteryLevel: ptr(85),
			})).To(Succeed())

			_, err := newSimulator(0).Tick(ctx)
			Expect(err).NotTo(HaveOccurred())

			readings := deviceReadings(published())
			Expect(readings).To(HaveLen(1))
			Expect(readings[0].BatteryLevel).To(HaveValue(BeNumerically("~", 84, 1)))
		})

		It("should forget devices that drop out of the targets", func() {
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil)
			sim := newSimulator(0)

			Expect(s.Devices().ApplyReading(ctx, "IOT001", store.DeviceReading{
				LastPing: now, BatteryLevel: ptr(85),
			})).To(Succeed())
			_, err := sim.Tick(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Devices().ApplyReading(ctx, "IOT001", store.DeviceReading{
				LastPing: now, Status: ptr(store.DeviceInactive),
			})).To(Succeed())
			_, err = sim.Tick(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deviceReadings(published())).To(HaveLen(1))

			now = now.Add(time.Hour)
			Expect(s.Devices().ApplyReading(ctx, "IOT001", store.DeviceReading{
				LastPing: now, BatteryLevel: ptr(40), Status: ptr(store.DeviceActive),
			})).To(Succeed())
			_, err = sim.Tick(ctx)
			Expect(err).NotTo(HaveOccurred())

			readings := deviceReadings(published())
			Expect(readings).To(HaveLen(2))
			Expect(readings[1].BatteryLevel).To(HaveValue(BeNumerically("<=", 40)))
		})

		It("should publish nothing without targets", func() {
			empty, _, err := storetest.NewStore()
			Expect(err).NotTo(HaveOccurred())

			sim, err := simulator.New(&simulator.Config{
				Logger:    storetest.Logger(),
				Targets:   simulator.StoreTargets(empty),
				Publisher: publisher,
			})
			Expect(err).NotTo(HaveOccurred())

			n, err := sim.Tick(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			publisher.AssertNotCalled(GinkgoT(), "Push", mock.Anything, mock.Anything)
		})
	})

	Describe("Run", func() {
		It("should reject a non-positive interval", func() {
			Expect(newSimulator(0).Run(ctx, 0)).To(MatchError("interval must be greater than 0"))
		})

		It("should tick until the context is canceled", func() {
			pushed := make(chan struct{}, 8)
			publisher.On("Push", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
				select {
				case pushed <- struct{}{}:
				default:
				}
			})

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- newSimulator(0).Run(runCtx, 10*time.Millisecond)
			}()

			Eventually(pushed).Should(Receive())
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})

func ptr[T any](v T) *T { return &v }
