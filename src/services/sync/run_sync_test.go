package sync_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/services/sync"
	"github.com/widodu77/knowledge-graph/src/test_artefacts/comparer"
	"github.com/widodu77/knowledge-graph/src/test_artefacts/fakes"
	"github.com/widodu77/knowledge-graph/src/test_artefacts/stubs"
)

func newSyncService(source *fakes.SourceStore, store *fakes.GraphStore, lease *fakes.Lease) *sync.SyncService {
	return newSyncServiceWithBatchSize(source, store, lease, 10)
}

func newSyncServiceWithBatchSize(source *fakes.SourceStore, store *fakes.GraphStore, lease *fakes.Lease, batchSize int) *sync.SyncService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sync.NewSyncService(logger, source, store, store, lease, batchSize)
}

var _ = Describe("SyncService.RunSync", func() {
	var (
		ctx    context.Context
		source *fakes.SourceStore
		store  *fakes.GraphStore
		lease  *fakes.Lease
		svc    *sync.SyncService
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = fakes.NewSourceStore()
		store = fakes.NewGraphStore()
		lease = fakes.NewLease()
		svc = newSyncService(source, store, lease)
	})

	loadMinimalCatalog := func() {
		source.Load(domain.EntityTypeCategory, stubs.NewCategoryRowStub().WithID(1).WithName("Electronics").Get())
		source.Load(domain.EntityTypeProduct, stubs.NewProductRowStub().WithID(1).WithPrice("9.99").WithCategoryID(1).Get())
		source.Load(domain.EntityTypeCustomer, stubs.NewCustomerRowStub().WithID(1).WithName("Alice").Get())
		source.Load(domain.EntityTypeOrder, stubs.NewOrderRowStub().WithID(1).WithCustomerID(1).Get())
		source.Load(domain.EntityTypeOrderItem, stubs.NewOrderItemRowStub().WithOrderID(1).WithProductID(1).WithQuantity(2).Get())
	}

	Context("when the source holds one customer, one product and one order", func() {
		BeforeEach(loadMinimalCatalog)

		It("materializes the full subgraph in dependency order", func() {
			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.TotalFailedRows()).To(BeZero())

			Expect(store.NodeCount("Category")).To(Equal(1))
			Expect(store.NodeCount("Product")).To(Equal(1))
			Expect(store.NodeCount("Customer")).To(Equal(1))
			Expect(store.NodeCount("Order")).To(Equal(1))
			Expect(store.TotalEdgeCount()).To(Equal(3))

			placed, found := store.FindEdge("PLACED", 1, 1)
			Expect(found).To(BeTrue())
			Expect(placed.SrcLabel).To(Equal("Customer"))
			Expect(placed.TgtLabel).To(Equal("Order"))

			contains, found := store.FindEdge("CONTAINS", 1, 1)
			Expect(found).To(BeTrue())
			Expect(contains.Props["quantity"]).To(Equal(int64(2)))

			Expect(comparer.CountsDiff(map[domain.EntityType]int{
				domain.EntityTypeCategory:  1,
				domain.EntityTypeProduct:   1,
				domain.EntityTypeCustomer:  1,
				domain.EntityTypeOrder:     1,
				domain.EntityTypeOrderItem: 1,
			}, report.Processed)).To(BeEmpty())
		})

		It("converges to the same graph when run twice against an unchanged source", func() {
			// ARRANGE
			_, err := svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(store.NodeCount("Customer")).To(Equal(1))
			Expect(store.NodeCount("Product")).To(Equal(1))
			Expect(store.NodeCount("Order")).To(Equal(1))
			Expect(store.TotalEdgeCount()).To(Equal(3))
		})

		It("ensures constraints and indexes before the first write of every run", func() {
			_, err := svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(store.SchemaEnsured).To(Equal(2))
		})

		It("releases the run lease after completion", func() {
			_, err := svc.RunSync(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(lease.Held()).To(BeFalse())
			Expect(lease.Acquired).To(Equal(1))
			Expect(lease.Released).To(Equal(1))
		})

		It("exposes the finished report through LastReport", func() {
			report, err := svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())

			last, ok := svc.LastReport()
			Expect(ok).To(BeTrue())
			Expect(last).To(BeIdenticalTo(report))

			state, _ := svc.State()
			Expect(state).To(Equal(domain.RunStateCompleted))
		})
	})

	Context("when a source row changes between runs", func() {
		It("overwrites the node attributes in place without duplicating the node", func() {
			// ARRANGE
			row := stubs.NewCustomerRowStub().WithID(1).WithName("Alice").Get()
			source.Load(domain.EntityTypeCustomer, row)
			_, err := svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())

			row["name"] = "Alicia"

			// ACT
			_, err = svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(store.NodeCount("Customer")).To(Equal(1))
			props, ok := store.NodeProps("Customer", 1)
			Expect(ok).To(BeTrue())
			Expect(props["name"]).To(Equal("Alicia"))
		})
	})

	Context("when an order references a customer missing from the source", func() {
		BeforeEach(func() {
			source.Load(domain.EntityTypeOrder, stubs.NewOrderRowStub().WithID(50).WithCustomerID(999).Get())
		})

		It("counts the order as failed without creating a dangling node", func() {
			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.FailedRows[domain.EntityTypeOrder]).To(Equal(1))
			Expect(store.NodeCount("Order")).To(BeZero())
			Expect(store.EdgeCount("PLACED")).To(BeZero())
		})
	})

	Context("when a line item references a product missing from the source", func() {
		BeforeEach(func() {
			source.Load(domain.EntityTypeCustomer, stubs.NewCustomerRowStub().WithID(1).Get())
			source.Load(domain.EntityTypeOrder, stubs.NewOrderRowStub().WithID(1).WithCustomerID(1).Get())
			source.Load(domain.EntityTypeOrderItem, stubs.NewOrderItemRowStub().WithOrderID(1).WithProductID(999).WithQuantity(1).Get())
		})

		It("counts the line item as failed without creating a dangling edge", func() {
			report, err := svc.RunSync(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.FailedRows[domain.EntityTypeOrderItem]).To(Equal(1))
			Expect(store.EdgeCount("CONTAINS")).To(BeZero())
			Expect(store.EdgeCount("PLACED")).To(Equal(1))
		})
	})

	Context("when duplicate line items would straddle a batch boundary", func() {
		BeforeEach(func() {
			source.Load(domain.EntityTypeProduct, stubs.NewProductRowStub().WithID(7).WithoutCategory().Get())
			source.Load(domain.EntityTypeCustomer, stubs.NewCustomerRowStub().WithID(1).Get())
			source.Load(domain.EntityTypeOrder, stubs.NewOrderRowStub().WithID(11).WithCustomerID(1).Get())
			source.Load(domain.EntityTypeOrderItem,
				stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(2).Get(),
				stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(3).Get(),
			)
		})

		It("still converges to the summed quantity", func() {
			// ARRANGE: com lotes de uma linha, as duas linhas do par (11, 7)
			// cairiam em lotes separados se o reader cortasse no meio do par.
			svc = newSyncServiceWithBatchSize(source, store, lease, 1)

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.TotalFailedRows()).To(BeZero())
			Expect(store.EdgeCount("CONTAINS")).To(Equal(1))

			edge, found := store.FindEdge("CONTAINS", 11, 7)
			Expect(found).To(BeTrue())
			Expect(edge.Props["quantity"]).To(Equal(int64(5)))
		})
	})

	Context("when two distinct events share a (customer, product) pair", func() {
		BeforeEach(func() {
			source.Load(domain.EntityTypeCustomer, stubs.NewCustomerRowStub().WithID(1).Get())
			source.Load(domain.EntityTypeProduct, stubs.NewProductRowStub().WithID(1).WithoutCategory().Get())
			source.Load(domain.EntityTypeEvent,
				stubs.NewEventRowStub().WithID(100).WithCustomerID(1).WithProductID(1).WithEventType("view").Get(),
				stubs.NewEventRowStub().WithID(101).WithCustomerID(1).WithProductID(1).WithEventType("view").Get(),
			)
		})

		It("keeps one edge per event", func() {
			report, err := svc.RunSync(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.TotalFailedRows()).To(BeZero())
			Expect(store.EdgeCount("VIEWED")).To(Equal(2))
		})

		It("does not duplicate event edges on re-sync", func() {
			_, err := svc.RunSync(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.RunSync(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(store.EdgeCount("VIEWED")).To(Equal(2))
		})
	})

	Context("when rows fail to map", func() {
		It("skips the bad rows and finishes the run", func() {
			// ARRANGE
			source.Load(domain.EntityTypeProduct,
				stubs.NewProductRowStub().WithID(1).WithoutCategory().Get(),
				stubs.NewProductRowStub().WithID(2).WithPrice("free").WithoutCategory().Get(),
			)

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.Processed[domain.EntityTypeProduct]).To(Equal(1))
			Expect(report.FailedRows[domain.EntityTypeProduct]).To(Equal(1))
			Expect(store.NodeCount("Product")).To(Equal(1))
		})
	})

	Context("when another run already holds the lease", func() {
		It("refuses to start", func() {
			// ARRANGE
			lease.ForceHold("another-run")

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).To(MatchError(domain.ErrSyncAlreadyRunning))
			Expect(report).To(BeNil())
			Expect(lease.Held()).To(BeTrue())
		})
	})

	Context("when the graph store becomes unreachable mid-run", func() {
		BeforeEach(func() {
			loadMinimalCatalog()
			store.NextWriteErr = &domain.ConnectivityError{
				Store: "neo4j",
				Err:   errors.New("connection refused"),
			}
		})

		It("fails the run and still releases the lease", func() {
			report, err := svc.RunSync(ctx)

			Expect(err).To(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateFailed))
			Expect(report.Error).To(ContainSubstring("neo4j unreachable"))
			Expect(lease.Held()).To(BeFalse())

			state, _ := svc.State()
			Expect(state).To(Equal(domain.RunStateFailed))
		})
	})

	Context("when a batch violates a uniqueness constraint", func() {
		BeforeEach(func() {
			loadMinimalCatalog()
			store.NextWriteErr = &domain.ConstraintViolationError{
				Label: "Category",
				Err:   errors.New("node already exists"),
			}
		})

		It("counts the rolled-back batch and keeps the run going", func() {
			report, err := svc.RunSync(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.FailedRows[domain.EntityTypeCategory]).To(Equal(1))
			Expect(store.NodeCount("Category")).To(BeZero())

			// Os estágios seguintes rodaram normalmente.
			Expect(store.NodeCount("Customer")).To(Equal(1))
		})
	})

	Context("when a line-item batch is rolled back", func() {
		It("counts the rolled-back source rows, not the aggregated descriptors", func() {
			// ARRANGE: duas linhas do mesmo par agregam num descriptor só; o
			// rollback ainda derruba as duas linhas de origem.
			source.Load(domain.EntityTypeOrderItem,
				stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(2).Get(),
				stubs.NewOrderItemRowStub().WithOrderID(11).WithProductID(7).WithQuantity(3).Get(),
			)
			store.NextWriteErr = &domain.ConstraintViolationError{
				Label: "Order",
				Err:   errors.New("relationship already exists"),
			}

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateCompleted))
			Expect(report.FailedRows[domain.EntityTypeOrderItem]).To(Equal(2))
			Expect(store.EdgeCount("CONTAINS")).To(BeZero())
		})
	})

	Context("when the source read fails", func() {
		It("fails the run with the read error", func() {
			// ARRANGE
			source.NextFetchErr = &domain.ConnectivityError{
				Store: "postgres",
				Err:   errors.New("dial timeout"),
			}

			// ACT
			report, err := svc.RunSync(ctx)

			// ASSERT
			Expect(err).To(HaveOccurred())
			Expect(report.State).To(Equal(domain.RunStateFailed))
			Expect(report.Error).To(ContainSubstring("postgres unreachable"))
		})
	})

	Context("when the context is cancelled", func() {
		It("stops at the next batch boundary", func() {
			// ARRANGE
			loadMinimalCatalog()
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			// ACT
			report, err := svc.RunSync(cancelled)

			// ASSERT
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(report.State).To(Equal(domain.RunStateFailed))
			Expect(lease.Held()).To(BeFalse())
		})
	})
})
