package tracking_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/tracking"
)

func cost(v float64) *float64 { return &v }

var _ = Describe("Summarize", func() {
	It("should return zeros and empty groupings for no shipments", func() {
		summary := tracking.Summarize(nil)
		Expect(summary.TotalShipments).To(BeZero())
		Expect(summary.TotalCost).To(BeZero())
		Expect(summary.AvgCost).To(BeZero())
		Expect(summary.MonthlyShipments).NotTo(BeNil())
		Expect(summary.MonthlyShipments).To(BeEmpty())
		Expect(summary.StatusDistribution).NotTo(BeNil())
		Expect(summary.StatusDistribution).To(BeEmpty())
	})

	It("should group by month and status and treat missing cost as zero", func() {
		jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
		feb := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

		summary := tracking.Summarize([]store.Shipment{
			{CreatedAt: jan, Status: store.StatusInTransit, Cost: cost(100)},
			{CreatedAt: jan, Status: store.StatusDelivered, Cost: cost(50)},
			{CreatedAt: feb, Status: store.StatusInTransit},
			{CreatedAt: feb, Status: store.StatusDelayed, Cost: cost(10)},
		})

		Expect(summary.TotalShipments).To(Equal(4))
		Expect(summary.MonthlyShipments).To(Equal(map[string]int{"2025-01": 2, "2025-02": 2}))
		Expect(summary.StatusDistribution).To(Equal(map[string]int{
			store.StatusInTransit: 2,
			store.StatusDelivered: 1,
			store.StatusDelayed:   1,
		}))
		Expect(summary.TotalCost).To(BeNumerically("~", 160, 1e-9))
		Expect(summary.AvgCost).To(BeNumerically("~", 40, 1e-9))
		Expect(summary.Months()).To(Equal([]string{"2025-01", "2025-02"}))
		Expect(summary.Statuses()).To(Equal([]string{store.StatusDelayed, store.StatusDelivered, store.StatusInTransit}))
	})
})

var _ = Describe("Rollup", func() {
	It("should count statuses and average delivery time in hours", func() {
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		after24h := created.Add(24 * time.Hour)
		after48h := created.Add(48 * time.Hour)

		row := tracking.Rollup(9, time.Date(2025, 1, 5, 17, 30, 0, 0, time.UTC), []store.Shipment{
			{CreatedAt: created, Status: store.StatusDelivered, ActualDelivery: &after24h, Cost: cost(10)},
			{CreatedAt: created, Status: store.StatusDelivered, ActualDelivery: &after48h},
			{CreatedAt: created, Status: store.StatusDelivered},
			{CreatedAt: created, Status: store.StatusInTransit, Cost: cost(5)},
			{CreatedAt: created, Status: store.StatusDelayed},
		})

		Expect(row.UserID).To(BeEquivalentTo(9))
		Expect(row.Date).To(Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
		Expect(row.TotalShipments).To(Equal(5))
		Expect(row.DeliveredShipments).To(Equal(3))
		Expect(row.InTransitShipments).To(Equal(1))
		Expect(row.DelayedShipments).To(Equal(1))
		Expect(row.TotalCost).To(Equal(15.0))
		Expect(row.AvgDeliveryTime).To(Equal(36.0))
	})

	It("should report zero delivery time without delivered shipments", func() {
		row := tracking.Rollup(1, time.Now(), nil)
		Expect(row.AvgDeliveryTime).To(BeZero())
		Expect(row.TotalShipments).To(BeZero())
	})
})
