package repositories

import (
	"context"
	"fmt"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/infra/neo4j"
)

// GraphSchemaRepository declara constraints de unicidade e índices no grafo.
// Todas as statements são IF NOT EXISTS, então EnsureSchema é seguro em todo
// início de run.
type GraphSchemaRepository struct {
	client *neo4j.Client
}

func NewGraphSchemaRepository(client *neo4j.Client) *GraphSchemaRepository {
	return &GraphSchemaRepository{client: client}
}

var schemaStatements = []string{
	// Uma constraint de unicidade por label, sobre a chave natural. Escrever
	// sem elas arrisca duplicação silenciosa de nós.
	`CREATE CONSTRAINT customer_id_unique IF NOT EXISTS FOR (c:Customer) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT product_id_unique IF NOT EXISTS FOR (p:Product) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT category_id_unique IF NOT EXISTS FOR (c:Category) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT order_id_unique IF NOT EXISTS FOR (o:Order) REQUIRE o.id IS UNIQUE`,

	// Índices secundários para lookups de range/texto do lado de leitura.
	`CREATE INDEX customer_name_idx IF NOT EXISTS FOR (c:Customer) ON (c.name)`,
	`CREATE INDEX product_name_idx IF NOT EXISTS FOR (p:Product) ON (p.name)`,
	`CREATE INDEX product_price_idx IF NOT EXISTS FOR (p:Product) ON (p.price)`,
	`CREATE INDEX order_timestamp_idx IF NOT EXISTS FOR (o:Order) ON (o.timestamp)`,
}

// EnsureSchema falhar aqui é fatal para o run que a chamou.
func (r *GraphSchemaRepository) EnsureSchema(ctx context.Context) error {
	session := r.client.WriteSession(ctx)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			if neo4j.IsConnectivity(err) {
				return &domain.ConnectivityError{Store: "graph store", Err: err}
			}
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	return nil
}
