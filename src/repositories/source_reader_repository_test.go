package repositories

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/widodu77/knowledge-graph/src/domain"
)

var _ = Describe("keyset cursors", func() {
	Context("when deriving the next cursor from the last row of a batch", func() {
		It("uses the numeric id for id-keyed tables", func() {
			cursor, err := nextCursor(domain.EntityTypeProduct, domain.SourceRow{"id": int64(37)})

			Expect(err).NotTo(HaveOccurred())
			Expect(cursor).To(Equal(domain.Cursor("37")))
		})

		It("uses the (order_id, product_id) pair for line items", func() {
			cursor, err := nextCursor(domain.EntityTypeOrderItem, domain.SourceRow{
				"order_id":   int64(11),
				"product_id": int64(7),
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(cursor).To(Equal(domain.Cursor("11:7")))
		})

		It("fails when the cursor columns are absent", func() {
			_, err := nextCursor(domain.EntityTypeProduct, domain.SourceRow{"name": "orphan"})

			Expect(err).To(HaveOccurred())
		})
	})

	Context("when parsing an incoming cursor", func() {
		It("round-trips the id cursor", func() {
			Expect(parseIDCursor(domain.Cursor("37"))).To(Equal(int64(37)))
		})

		It("treats the empty cursor as the start of the table", func() {
			Expect(parseIDCursor(domain.Cursor(""))).To(Equal(int64(0)))
		})

		It("round-trips the pair cursor", func() {
			orderID, productID := parsePairCursor(domain.Cursor("11:7"))

			Expect(orderID).To(Equal(int64(11)))
			Expect(productID).To(Equal(int64(7)))
		})

		It("falls back to the table start on a malformed pair", func() {
			orderID, productID := parsePairCursor(domain.Cursor("garbage"))

			Expect(orderID).To(BeZero())
			Expect(productID).To(BeZero())
		})
	})
})

var _ = Describe("rowInt64", func() {
	It("normalizes the integer widths the database driver can return", func() {
		for _, value := range []any{int64(7), int32(7), int16(7), int(7)} {
			got, ok := rowInt64(domain.SourceRow{"id": value}, "id")

			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(int64(7)))
		}
	})

	It("reports absence for non-integer values", func() {
		_, ok := rowInt64(domain.SourceRow{"id": "7"}, "id")

		Expect(ok).To(BeFalse())
	})
})
