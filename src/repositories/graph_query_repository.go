package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/widodu77/knowledge-graph/src/domain/entities"
	infraneo4j "github.com/widodu77/knowledge-graph/src/infra/neo4j"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphQueryRepository é o lado de leitura do grafo: traversals que o motor
// de recomendação consome. Nunca escreve.
type GraphQueryRepository struct {
	client *infraneo4j.Client
}

func NewGraphQueryRepository(client *infraneo4j.Client) *GraphQueryRepository {
	return &GraphQueryRepository{client: client}
}

// GetCustomerPurchases resolve o histórico de compras de um customer via
// PLACED -> CONTAINS, mais recente primeiro.
func (r *GraphQueryRepository) GetCustomerPurchases(ctx context.Context, customerID int64) ([]entities.PurchaseLine, error) {
	session := r.client.ReadSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (c:Customer {id: $id})-[:PLACED]->(o:Order)-[ct:CONTAINS]->(p:Product)
RETURN o.id AS order_id, o.timestamp AS order_timestamp, p.id AS product_id, p.name AS product_name, ct.quantity AS quantity
ORDER BY o.timestamp DESC
`, map[string]any{"id": customerID})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases for customer %d: %w", customerID, err)
	}

	lines := make([]entities.PurchaseLine, 0)
	for _, record := range records.([]*neo4j.Record) {
		line := entities.PurchaseLine{
			OrderID:     recordInt64(record, "order_id"),
			ProductID:   recordInt64(record, "product_id"),
			ProductName: recordString(record, "product_name"),
			Quantity:    recordInt64(record, "quantity"),
		}
		if ts, ok := record.Get("order_timestamp"); ok {
			if t, ok := ts.(time.Time); ok {
				line.OrderTimestamp = t
			}
		}
		lines = append(lines, line)
	}

	return lines, nil
}

// GetProductCoOccurrence ranks products contained in the same orders as the
// anchor product, weighted by how many orders they share.
func (r *GraphQueryRepository) GetProductCoOccurrence(ctx context.Context, productID int64, limit int) ([]entities.CoOccurrence, error) {
	session := r.client.ReadSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (p:Product {id: $id})<-[:CONTAINS]-(:Order)-[:CONTAINS]->(other:Product)
WHERE other.id <> $id
RETURN other.id AS product_id, other.name AS product_name, count(*) AS weight
ORDER BY weight DESC, product_id
LIMIT $limit
`, map[string]any{"id": productID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query co-occurrence for product %d: %w", productID, err)
	}

	items := make([]entities.CoOccurrence, 0)
	for _, record := range records.([]*neo4j.Record) {
		items = append(items, entities.CoOccurrence{
			ProductID:   recordInt64(record, "product_id"),
			ProductName: recordString(record, "product_name"),
			Weight:      recordInt64(record, "weight"),
		})
	}

	return items, nil
}

// CountsByLabel retorna a contagem de nós por label e o total de
// relacionamentos, para verificação pós-carga.
func (r *GraphQueryRepository) CountsByLabel(ctx context.Context) (*entities.GraphCounts, error) {
	session := r.client.ReadSession(ctx)
	defer session.Close(ctx)

	counts := &entities.GraphCounts{Nodes: make(map[string]int64)}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeResult, err := tx.Run(ctx, `
MATCH (n)
UNWIND labels(n) AS label
RETURN label, count(*) AS cnt
`, nil)
		if err != nil {
			return nil, err
		}
		nodeRecords, err := nodeResult.Collect(ctx)
		if err != nil {
			return nil, err
		}

		relResult, err := tx.Run(ctx, `MATCH ()-[r]->() RETURN count(r) AS cnt`, nil)
		if err != nil {
			return nil, err
		}
		relRecord, err := relResult.Single(ctx)
		if err != nil {
			return nil, err
		}

		return []any{nodeRecords, relRecord}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query graph counts: %w", err)
	}

	parts := result.([]any)
	for _, record := range parts[0].([]*neo4j.Record) {
		counts.Nodes[recordString(record, "label")] = recordInt64(record, "cnt")
	}
	counts.Relationships = recordInt64(parts[1].(*neo4j.Record), "cnt")

	return counts, nil
}

func recordInt64(record *neo4j.Record, key string) int64 {
	value, ok := record.Get(key)
	if !ok {
		return 0
	}
	if v, ok := value.(int64); ok {
		return v
	}
	return 0
}

func recordString(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok {
		return ""
	}
	if v, ok := value.(string); ok {
		return v
	}
	return ""
}
