package sync

import (
	"fmt"
	"time"

	"github.com/widodu77/knowledge-graph/src/domain"

	"github.com/shopspring/decimal"
)

// Tipos de evento comportamental da origem -> tipo de relacionamento no
// grafo. Tipos desconhecidos caem em INTERACTED em vez de perder o evento.
var eventRelationshipTypes = map[string]string{
	"view":        "VIEWED",
	"click":       "CLICKED",
	"add_to_cart": "ADDED_TO_CART",
}

const fallbackEventRelationship = "INTERACTED"

// MapRow is a pure transformation from one relational row to one upsert
// descriptor. No I/O happens here; price and timestamps are normalized to
// fixed semantic types so the graph store's native types are unambiguous.
func MapRow(entityType domain.EntityType, row domain.SourceRow) (domain.UpsertDescriptor, error) {
	switch entityType {
	case domain.EntityTypeCategory:
		return mapCategory(row)
	case domain.EntityTypeProduct:
		return mapProduct(row)
	case domain.EntityTypeCustomer:
		return mapCustomer(row)
	case domain.EntityTypeOrder:
		return mapOrder(row)
	case domain.EntityTypeOrderItem:
		return mapOrderItem(row)
	case domain.EntityTypeEvent:
		return mapEvent(row)
	default:
		return domain.UpsertDescriptor{}, &domain.MappingError{
			EntityType: entityType,
			Field:      "entity_type",
			Err:        fmt.Errorf("unknown entity type"),
		}
	}
}

// MapBatch maps a whole batch, collecting row-scoped mapping failures
// instead of aborting. Line items are aggregated so repeated rows for the
// same (order, product) pair converge to one CONTAINS edge whose quantity is
// the sum.
func MapBatch(entityType domain.EntityType, rows []domain.SourceRow) ([]domain.UpsertDescriptor, []domain.FailedRow) {
	descriptors := make([]domain.UpsertDescriptor, 0, len(rows))
	var failed []domain.FailedRow

	for _, row := range rows {
		desc, err := MapRow(entityType, row)
		if err != nil {
			failed = append(failed, domain.FailedRow{
				EntityType: entityType,
				Key:        rowKeyForReport(entityType, row),
				Reason:     err.Error(),
			})
			continue
		}
		descriptors = append(descriptors, desc)
	}

	if entityType == domain.EntityTypeOrderItem {
		descriptors = aggregateLineItems(descriptors)
	}

	return descriptors, failed
}

func mapCategory(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	id, err := requireInt64(domain.EntityTypeCategory, row, "id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	return domain.UpsertDescriptor{
		Label: "Category",
		Key:   id,
		Props: map[string]any{
			"id":   id,
			"name": asString(row["name"]),
		},
	}, nil
}

func mapProduct(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	id, err := requireInt64(domain.EntityTypeProduct, row, "id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	price, err := normalizePrice(row["price"])
	if err != nil {
		return domain.UpsertDescriptor{}, &domain.MappingError{
			EntityType: domain.EntityTypeProduct,
			Field:      "price",
			Err:        err,
		}
	}

	desc := domain.UpsertDescriptor{
		Label: "Product",
		Key:   id,
		Props: map[string]any{
			"id":    id,
			"name":  asString(row["name"]),
			"price": price,
		},
	}

	// category_id nulo é válido: um Product pode não ter categoria.
	if categoryID, ok := asInt64(row["category_id"]); ok {
		desc.Edges = append(desc.Edges, domain.EdgeUpsert{
			Type:        "IN_CATEGORY",
			TargetLabel: "Category",
			TargetKey:   categoryID,
		})
	}

	return desc, nil
}

func mapCustomer(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	id, err := requireInt64(domain.EntityTypeCustomer, row, "id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	props := map[string]any{
		"id":   id,
		"name": asString(row["name"]),
	}

	if joinDate, ok := asTime(row["join_date"]); ok {
		props["join_date"] = joinDate
	}
	if email := asString(row["email"]); email != "" {
		props["email"] = email
	}

	return domain.UpsertDescriptor{
		Label: "Customer",
		Key:   id,
		Props: props,
	}, nil
}

func mapOrder(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	id, err := requireInt64(domain.EntityTypeOrder, row, "id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	customerID, err := requireInt64(domain.EntityTypeOrder, row, "customer_id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	timestamp, ok := asTime(row["ts"])
	if !ok {
		return domain.UpsertDescriptor{}, &domain.MappingError{
			EntityType: domain.EntityTypeOrder,
			Field:      "ts",
			Err:        fmt.Errorf("not a timestamp: %v", row["ts"]),
		}
	}

	return domain.UpsertDescriptor{
		Label: "Order",
		Key:   id,
		Props: map[string]any{
			"id":        id,
			"timestamp": timestamp,
		},
		Edges: []domain.EdgeUpsert{{
			// PLACED aponta do Customer para o Order; Required faz o merge
			// do nó Order depender do Customer existir no grafo.
			Type:        "PLACED",
			TargetLabel: "Customer",
			TargetKey:   customerID,
			Incoming:    true,
			Required:    true,
		}},
	}, nil
}

func mapOrderItem(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	orderID, err := requireInt64(domain.EntityTypeOrderItem, row, "order_id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	productID, err := requireInt64(domain.EntityTypeOrderItem, row, "product_id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	quantity, ok := asInt64(row["quantity"])
	if !ok || quantity < 1 {
		return domain.UpsertDescriptor{}, &domain.MappingError{
			EntityType: domain.EntityTypeOrderItem,
			Field:      "quantity",
			Err:        fmt.Errorf("quantity must be an integer >= 1, got %v", row["quantity"]),
		}
	}

	// Edge-only: Props nil, os dois nós já devem existir no grafo.
	return domain.UpsertDescriptor{
		Label: "Order",
		Key:   orderID,
		Edges: []domain.EdgeUpsert{{
			Type:        "CONTAINS",
			TargetLabel: "Product",
			TargetKey:   productID,
			Props:       map[string]any{"quantity": quantity},
		}},
	}, nil
}

func mapEvent(row domain.SourceRow) (domain.UpsertDescriptor, error) {
	eventID, err := requireInt64(domain.EntityTypeEvent, row, "id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	customerID, err := requireInt64(domain.EntityTypeEvent, row, "customer_id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	productID, err := requireInt64(domain.EntityTypeEvent, row, "product_id")
	if err != nil {
		return domain.UpsertDescriptor{}, err
	}

	timestamp, ok := asTime(row["ts"])
	if !ok {
		return domain.UpsertDescriptor{}, &domain.MappingError{
			EntityType: domain.EntityTypeEvent,
			Field:      "ts",
			Err:        fmt.Errorf("not a timestamp: %v", row["ts"]),
		}
	}

	relType, ok := eventRelationshipTypes[asString(row["event_type"])]
	if !ok {
		relType = fallbackEventRelationship
	}

	// MergeKey event_id: re-sync do mesmo evento não duplica a aresta, mas
	// eventos distintos (mesmo com o mesmo par e timestamp) ficam distintos.
	return domain.UpsertDescriptor{
		Label: "Customer",
		Key:   customerID,
		Edges: []domain.EdgeUpsert{{
			Type:        relType,
			TargetLabel: "Product",
			TargetKey:   productID,
			Props: map[string]any{
				"event_id":  eventID,
				"timestamp": timestamp,
			},
			MergeKey: "event_id",
		}},
	}, nil
}

// aggregateLineItems merges CONTAINS descriptors for the same
// (order, product) pair, summing quantities. Readers guarantee a pair never
// straddles a batch boundary, so summing within the batch is the full sum.
func aggregateLineItems(descriptors []domain.UpsertDescriptor) []domain.UpsertDescriptor {
	type pair struct {
		orderID   int64
		productID int64
	}

	merged := make([]domain.UpsertDescriptor, 0, len(descriptors))
	seen := make(map[pair]int)

	for _, desc := range descriptors {
		key := pair{orderID: desc.Key, productID: desc.Edges[0].TargetKey}
		if idx, ok := seen[key]; ok {
			existing := merged[idx].Edges[0].Props
			existing["quantity"] = existing["quantity"].(int64) + desc.Edges[0].Props["quantity"].(int64)
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, desc)
	}

	return merged
}

func rowKeyForReport(entityType domain.EntityType, row domain.SourceRow) string {
	if entityType == domain.EntityTypeOrderItem {
		orderID, _ := asInt64(row["order_id"])
		productID, _ := asInt64(row["product_id"])
		return fmt.Sprintf("%d:%d", orderID, productID)
	}
	id, _ := asInt64(row["id"])
	return fmt.Sprintf("%d", id)
}

func requireInt64(entityType domain.EntityType, row domain.SourceRow, field string) (int64, error) {
	value, ok := asInt64(row[field])
	if !ok {
		return 0, &domain.MappingError{
			EntityType: entityType,
			Field:      field,
			Err:        fmt.Errorf("not an integer: %v", row[field]),
		}
	}
	return value, nil
}

// normalizePrice aceita a representação textual ou numérica da origem e
// devolve um float arredondado a 2 casas, nunca negativo.
func normalizePrice(value any) (float64, error) {
	var price decimal.Decimal

	switch v := value.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return 0, fmt.Errorf("non-numeric price %q", v)
		}
		price = parsed
	case float64:
		price = decimal.NewFromFloat(v)
	case int64:
		price = decimal.NewFromInt(v)
	case int:
		price = decimal.NewFromInt(int64(v))
	default:
		return 0, fmt.Errorf("non-numeric price %v", value)
	}

	if price.IsNegative() {
		return 0, fmt.Errorf("negative price %s", price)
	}

	return price.Round(2).InexactFloat64(), nil
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func asString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}
