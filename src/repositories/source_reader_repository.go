package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/infra/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceReaderRepository lê a base relacional de origem em lotes limitados,
// com paginação por keyset para que um retry retome do último lote aplicado.
type SourceReaderRepository struct {
	pool *pgxpool.Pool
}

func NewSourceReaderRepository(pool *pgxpool.Pool) *SourceReaderRepository {
	return &SourceReaderRepository{pool: pool}
}

// FetchBatch returns the next batch of rows for the entity type, starting
// right after the cursor. The ordering column per table is stable (primary
// key, or the (order_id, product_id) pair for line items), so re-running
// after a partial failure never skips or re-scans rows.
func (r *SourceReaderRepository) FetchBatch(ctx context.Context, entityType domain.EntityType, cursor domain.Cursor, batchSize int) ([]domain.SourceRow, domain.Cursor, bool, error) {
	var (
		rows pgx.Rows
		err  error
	)

	switch entityType {
	case domain.EntityTypeCategory:
		rows, err = r.pool.Query(ctx,
			`SELECT id, name FROM categories WHERE id > $1 ORDER BY id LIMIT $2`,
			parseIDCursor(cursor), batchSize)

	case domain.EntityTypeProduct:
		// price::text para manter a precisão decimal até a normalização.
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, price::text AS price, category_id FROM products WHERE id > $1 ORDER BY id LIMIT $2`,
			parseIDCursor(cursor), batchSize)

	case domain.EntityTypeCustomer:
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, join_date FROM customers WHERE id > $1 ORDER BY id LIMIT $2`,
			parseIDCursor(cursor), batchSize)

	case domain.EntityTypeOrder:
		rows, err = r.pool.Query(ctx,
			`SELECT id, customer_id, ts FROM orders WHERE id > $1 ORDER BY id LIMIT $2`,
			parseIDCursor(cursor), batchSize)

	case domain.EntityTypeOrderItem:
		// Linhas repetidas do mesmo par somam quantity já na origem. Cada par
		// vira exatamente uma linha, então o cursor (order_id, product_id) é
		// único e um limite de lote nunca corta um par no meio.
		lastOrder, lastProduct := parsePairCursor(cursor)
		rows, err = r.pool.Query(ctx,
			`SELECT order_id, product_id, SUM(quantity)::bigint AS quantity FROM order_items WHERE (order_id, product_id) > ($1, $2) GROUP BY order_id, product_id ORDER BY order_id, product_id LIMIT $3`,
			lastOrder, lastProduct, batchSize)

	case domain.EntityTypeEvent:
		rows, err = r.pool.Query(ctx,
			`SELECT id, customer_id, product_id, event_type, ts FROM events WHERE id > $1 ORDER BY id LIMIT $2`,
			parseIDCursor(cursor), batchSize)

	default:
		return nil, cursor, false, fmt.Errorf("unknown entity type %q", entityType)
	}

	if err != nil {
		if postgres.IsConnectivity(err) {
			return nil, cursor, false, &domain.ConnectivityError{Store: "source database", Err: err}
		}
		return nil, cursor, false, fmt.Errorf("failed to fetch %s batch: %w", entityType, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, cursor, false, fmt.Errorf("failed to collect %s rows: %w", entityType, err)
	}

	batch := make([]domain.SourceRow, len(maps))
	for i, m := range maps {
		batch[i] = domain.SourceRow(m)
	}

	if len(batch) == 0 {
		return batch, cursor, true, nil
	}

	next, err := nextCursor(entityType, batch[len(batch)-1])
	if err != nil {
		return nil, cursor, false, err
	}

	return batch, next, len(batch) < batchSize, nil
}

func nextCursor(entityType domain.EntityType, last domain.SourceRow) (domain.Cursor, error) {
	if entityType == domain.EntityTypeOrderItem {
		orderID, ok := rowInt64(last, "order_id")
		productID, ok2 := rowInt64(last, "product_id")
		if !ok || !ok2 {
			return "", fmt.Errorf("order_items row missing (order_id, product_id) cursor columns")
		}
		return domain.Cursor(fmt.Sprintf("%d:%d", orderID, productID)), nil
	}

	id, ok := rowInt64(last, "id")
	if !ok {
		return "", fmt.Errorf("%s row missing id cursor column", entityType)
	}
	return domain.Cursor(strconv.FormatInt(id, 10)), nil
}

func parseIDCursor(cursor domain.Cursor) int64 {
	id, err := strconv.ParseInt(string(cursor), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parsePairCursor(cursor domain.Cursor) (int64, int64) {
	parts := strings.SplitN(string(cursor), ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	first, err1 := strconv.ParseInt(parts[0], 10, 64)
	second, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return first, second
}

func rowInt64(row domain.SourceRow, column string) (int64, bool) {
	switch v := row[column].(type) {
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
