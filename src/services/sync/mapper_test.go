package sync_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/services/sync"
	"github.com/widodu77/knowledge-graph/src/test_artefacts/comparer"
	"github.com/widodu77/knowledge-graph/src/test_artefacts/stubs"
)

var _ = Describe("MapRow", func() {
	Context("when mapping products", func() {
		It("normalizes the textual price to a rounded numeric value", func() {
			// ARRANGE
			row := stubs.NewProductRowStub().WithID(7).WithPrice("9.999").WithCategoryID(3).Get()

			// ACT
			desc, err := sync.MapRow(domain.EntityTypeProduct, row)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Label).To(Equal("Product"))
			Expect(desc.Key).To(Equal(int64(7)))
			Expect(desc.Props["price"]).To(Equal(10.00))
		})

		It("attaches an IN_CATEGORY edge when the product has a category", func() {
			row := stubs.NewProductRowStub().WithID(7).WithCategoryID(3).Get()

			desc, err := sync.MapRow(domain.EntityTypeProduct, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Edges).To(HaveLen(1))
			Expect(desc.Edges[0].Type).To(Equal("IN_CATEGORY"))
			Expect(desc.Edges[0].TargetLabel).To(Equal("Category"))
			Expect(desc.Edges[0].TargetKey).To(Equal(int64(3)))
			Expect(desc.Edges[0].Required).To(BeFalse())
		})

		It("maps a product without category to a node with no edges", func() {
			row := stubs.NewProductRowStub().WithID(7).WithoutCategory().Get()

			desc, err := sync.MapRow(domain.EntityTypeProduct, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Edges).To(BeEmpty())
		})

		It("rejects a non-numeric price as a mapping error", func() {
			row := stubs.NewProductRowStub().WithPrice("not-a-price").Get()

			_, err := sync.MapRow(domain.EntityTypeProduct, row)

			var mappingErr *domain.MappingError
			Expect(errors.As(err, &mappingErr)).To(BeTrue())
			Expect(mappingErr.Field).To(Equal("price"))
		})

		It("rejects a negative price as a mapping error", func() {
			row := stubs.NewProductRowStub().WithPrice("-1.50").Get()

			_, err := sync.MapRow(domain.EntityTypeProduct, row)

			var mappingErr *domain.MappingError
			Expect(errors.As(err, &mappingErr)).To(BeTrue())
		})
	})

	Context("when mapping customers", func() {
		It("overwrites the full attribute set keyed by the natural id", func() {
			joinDate := time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC)
			row := stubs.NewCustomerRowStub().WithID(42).WithName("Alice").Get()
			row["join_date"] = joinDate

			desc, err := sync.MapRow(domain.EntityTypeCustomer, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(comparer.PropsDiff(map[string]any{
				"id":        int64(42),
				"name":      "Alice",
				"join_date": joinDate,
			}, desc.Props)).To(BeEmpty())
		})
	})

	Context("when mapping orders", func() {
		It("makes the node merge conditional on the placing customer", func() {
			row := stubs.NewOrderRowStub().WithID(11).WithCustomerID(42).Get()

			desc, err := sync.MapRow(domain.EntityTypeOrder, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Label).To(Equal("Order"))
			Expect(desc.Edges).To(HaveLen(1))
			Expect(desc.Edges[0].Type).To(Equal("PLACED"))
			Expect(desc.Edges[0].TargetKey).To(Equal(int64(42)))
			Expect(desc.Edges[0].Required).To(BeTrue())
			Expect(desc.Edges[0].Incoming).To(BeTrue())
		})

		It("normalizes the order timestamp to UTC", func() {
			loc := time.FixedZone("UTC-3", -3*60*60)
			row := stubs.NewOrderRowStub().Get()
			row["ts"] = time.Date(2024, 6, 1, 10, 0, 0, 0, loc)

			desc, err := sync.MapRow(domain.EntityTypeOrder, row)

			Expect(err).NotTo(HaveOccurred())
			ts := desc.Props["timestamp"].(time.Time)
			Expect(ts.Location()).To(Equal(time.UTC))
			Expect(ts.Hour()).To(Equal(13))
		})
	})

	Context("when mapping order line items", func() {
		It("produces an edge-only CONTAINS descriptor", func() {
			row := stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(2).Get()

			desc, err := sync.MapRow(domain.EntityTypeOrderItem, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Props).To(BeNil())
			Expect(desc.Edges[0].Type).To(Equal("CONTAINS"))
			Expect(desc.Edges[0].Props["quantity"]).To(Equal(int64(2)))
		})

		It("rejects quantity below one", func() {
			row := stubs.NewOrderItemRowStub().WithQuantity(0).Get()

			_, err := sync.MapRow(domain.EntityTypeOrderItem, row)

			var mappingErr *domain.MappingError
			Expect(errors.As(err, &mappingErr)).To(BeTrue())
			Expect(mappingErr.Field).To(Equal("quantity"))
		})
	})

	Context("when mapping behavioral events", func() {
		It("maps known event types to their relationship types", func() {
			for eventType, relType := range map[string]string{
				"view":        "VIEWED",
				"click":       "CLICKED",
				"add_to_cart": "ADDED_TO_CART",
			} {
				row := stubs.NewEventRowStub().WithEventType(eventType).Get()

				desc, err := sync.MapRow(domain.EntityTypeEvent, row)

				Expect(err).NotTo(HaveOccurred())
				Expect(desc.Edges[0].Type).To(Equal(relType))
			}
		})

		It("falls back to INTERACTED for unknown event types", func() {
			row := stubs.NewEventRowStub().WithEventType("hover").Get()

			desc, err := sync.MapRow(domain.EntityTypeEvent, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Edges[0].Type).To(Equal("INTERACTED"))
		})

		It("carries the event id as the edge identity", func() {
			row := stubs.NewEventRowStub().WithID(999).Get()

			desc, err := sync.MapRow(domain.EntityTypeEvent, row)

			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Edges[0].MergeKey).To(Equal("event_id"))
			Expect(desc.Edges[0].Props["event_id"]).To(Equal(int64(999)))
		})
	})
})

var _ = Describe("MapBatch", func() {
	It("aggregates repeated line items for the same (order, product) pair", func() {
		// ARRANGE
		rows := []domain.SourceRow{
			stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(2).Get(),
			stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(3).Get(),
			stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(8).WithQuantity(1).Get(),
		}

		// ACT
		descriptors, failed := sync.MapBatch(domain.EntityTypeOrderItem, rows)

		// ASSERT
		Expect(failed).To(BeEmpty())
		Expect(descriptors).To(HaveLen(2))
		Expect(descriptors[0].Edges[0].Props["quantity"]).To(Equal(int64(5)))
		Expect(descriptors[1].Edges[0].Props["quantity"]).To(Equal(int64(1)))
	})

	It("counts unmappable rows without dropping the rest of the batch", func() {
		rows := []domain.SourceRow{
			stubs.NewProductRowStub().WithID(1).Get(),
			stubs.NewProductRowStub().WithID(2).WithPrice("free").Get(),
			stubs.NewProductRowStub().WithID(3).Get(),
		}

		descriptors, failed := sync.MapBatch(domain.EntityTypeProduct, rows)

		Expect(descriptors).To(HaveLen(2))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Key).To(Equal("2"))
		Expect(failed[0].Reason).To(ContainSubstring("price"))
	})
})
