package repositories

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/widodu77/knowledge-graph/src/domain"
)

var _ = Describe("groupDescriptors", func() {
	Context("when the batch carries plain node upserts", func() {
		It("groups rows of the same label into one statement", func() {
			// ARRANGE
			descriptors := []domain.UpsertDescriptor{
				{Label: "Customer", Key: 1, Props: map[string]any{"id": int64(1), "name": "Alice"}},
				{Label: "Customer", Key: 2, Props: map[string]any{"id": int64(2), "name": "Bob"}},
				{Label: "Product", Key: 7, Props: map[string]any{"id": int64(7)}},
			}

			// ACT
			nodes, conditionals, edges, err := groupDescriptors(descriptors)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(conditionals).To(BeEmpty())
			Expect(edges).To(BeEmpty())
			Expect(nodes).To(HaveLen(2))
			Expect(nodes[0].label).To(Equal("Customer"))
			Expect(nodes[0].rows).To(HaveLen(2))
			Expect(nodes[0].indexes).To(Equal([]int{0, 1}))
			Expect(nodes[1].label).To(Equal("Product"))
		})
	})

	Context("when a node merge depends on a required edge", func() {
		It("routes the descriptor to a conditional group carrying the edge target", func() {
			descriptors := []domain.UpsertDescriptor{{
				Label: "Order",
				Key:   11,
				Props: map[string]any{"id": int64(11)},
				Edges: []domain.EdgeUpsert{{
					Type:        "PLACED",
					TargetLabel: "Customer",
					TargetKey:   42,
					Incoming:    true,
					Required:    true,
				}},
			}}

			nodes, conditionals, edges, err := groupDescriptors(descriptors)

			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
			Expect(edges).To(BeEmpty())
			Expect(conditionals).To(HaveLen(1))
			Expect(conditionals[0].label).To(Equal("Order"))
			Expect(conditionals[0].edgeType).To(Equal("PLACED"))
			Expect(conditionals[0].targetLabel).To(Equal("Customer"))
			Expect(conditionals[0].incoming).To(BeTrue())
			Expect(conditionals[0].rows[0]["target_id"]).To(Equal(int64(42)))
		})
	})

	Context("when descriptors are edge-only", func() {
		It("assigns each edge row a distinct ordinal across groups", func() {
			descriptors := []domain.UpsertDescriptor{
				{Label: "Order", Key: 11, Edges: []domain.EdgeUpsert{{
					Type: "CONTAINS", TargetLabel: "Product", TargetKey: 7,
					Props: map[string]any{"quantity": int64(2)},
				}}},
				{Label: "Order", Key: 11, Edges: []domain.EdgeUpsert{{
					Type: "CONTAINS", TargetLabel: "Product", TargetKey: 8,
					Props: map[string]any{"quantity": int64(1)},
				}}},
				{Label: "Customer", Key: 1, Edges: []domain.EdgeUpsert{{
					Type: "VIEWED", TargetLabel: "Product", TargetKey: 7,
					Props:    map[string]any{"event_id": int64(99)},
					MergeKey: "event_id",
				}}},
			}

			_, _, edges, err := groupDescriptors(descriptors)

			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))

			contains := edges[0]
			Expect(contains.edgeType).To(Equal("CONTAINS"))
			Expect(contains.rows).To(HaveLen(2))
			Expect(contains.rows[0]["ordinal"]).To(Equal(int64(0)))
			Expect(contains.rows[1]["ordinal"]).To(Equal(int64(1)))

			viewed := edges[1]
			Expect(viewed.mergeKey).To(Equal("event_id"))
			Expect(viewed.rows[0]["ordinal"]).To(Equal(int64(2)))
			Expect(viewed.rows[0]["merge_value"]).To(Equal(int64(99)))
		})

		It("separates edges with different merge keys into different groups", func() {
			descriptors := []domain.UpsertDescriptor{
				{Label: "Customer", Key: 1, Edges: []domain.EdgeUpsert{{
					Type: "VIEWED", TargetLabel: "Product", TargetKey: 7,
					Props:    map[string]any{"event_id": int64(1)},
					MergeKey: "event_id",
				}}},
				{Label: "Customer", Key: 1, Edges: []domain.EdgeUpsert{{
					Type: "VIEWED", TargetLabel: "Product", TargetKey: 7,
				}}},
			}

			_, _, edges, err := groupDescriptors(descriptors)

			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))
		})
	})

	Context("when an identifier would not survive query interpolation", func() {
		It("rejects a label with punctuation", func() {
			descriptors := []domain.UpsertDescriptor{
				{Label: "Customer) DETACH DELETE (x", Key: 1, Props: map[string]any{"id": int64(1)}},
			}

			_, _, _, err := groupDescriptors(descriptors)

			Expect(err).To(MatchError(ContainSubstring("invalid graph identifier")))
		})

		It("rejects an edge type with spaces", func() {
			descriptors := []domain.UpsertDescriptor{
				{Label: "Order", Key: 1, Edges: []domain.EdgeUpsert{{
					Type: "HAS ITEM", TargetLabel: "Product", TargetKey: 7,
				}}},
			}

			_, _, _, err := groupDescriptors(descriptors)

			Expect(err).To(MatchError(ContainSubstring("invalid graph identifier")))
		})
	})
})

var _ = Describe("validateIdent", func() {
	It("accepts snake_case and PascalCase identifiers", func() {
		Expect(validateIdent("ADDED_TO_CART")).To(Succeed())
		Expect(validateIdent("Customer")).To(Succeed())
		Expect(validateIdent("_internal")).To(Succeed())
	})

	It("rejects identifiers starting with a digit", func() {
		Expect(validateIdent("1stLabel")).NotTo(Succeed())
	})

	It("rejects the empty string", func() {
		Expect(validateIdent("")).NotTo(Succeed())
	})
})
