package graph

import (
	"context"

	"github.com/widodu77/knowledge-graph/src/domain/entities"
)

// Queries é o contrato de leitura que o grafo populado expõe para a camada
// de recomendação.
type Queries interface {
	GetCustomerPurchases(ctx context.Context, customerID int64) ([]entities.PurchaseLine, error)
	GetProductCoOccurrence(ctx context.Context, productID int64, limit int) ([]entities.CoOccurrence, error)
	CountsByLabel(ctx context.Context) (*entities.GraphCounts, error)
}

type GraphService struct {
	queries Queries
}

func NewGraphService(queries Queries) *GraphService {
	return &GraphService{queries: queries}
}

func (gs *GraphService) GetCustomerPurchases(ctx context.Context, customerID int64) ([]entities.PurchaseLine, error) {
	return gs.queries.GetCustomerPurchases(ctx, customerID)
}

const defaultCoOccurrenceLimit = 10

func (gs *GraphService) GetProductCoOccurrence(ctx context.Context, productID int64, limit int) ([]entities.CoOccurrence, error) {
	if limit <= 0 {
		limit = defaultCoOccurrenceLimit
	}
	return gs.queries.GetProductCoOccurrence(ctx, productID, limit)
}

func (gs *GraphService) Counts(ctx context.Context) (*entities.GraphCounts, error) {
	return gs.queries.CountsByLabel(ctx)
}
