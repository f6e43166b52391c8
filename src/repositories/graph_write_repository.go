package repositories

import (
	"context"
	"fmt"
	"regexp"

	"github.com/widodu77/knowledge-graph/src/domain"
	infraneo4j "github.com/widodu77/knowledge-graph/src/infra/neo4j"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Labels e tipos de relacionamento não são parametrizáveis em Cypher; eles
// são interpolados na query e por isso validados contra esse padrão antes.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GraphWriteRepository aplica descriptors de upsert no grafo. Cada lote roda
// dentro de uma única managed transaction: ou todos os merges do lote
// commitam, ou nenhum.
type GraphWriteRepository struct {
	client *infraneo4j.Client
}

func NewGraphWriteRepository(client *infraneo4j.Client) *GraphWriteRepository {
	return &GraphWriteRepository{client: client}
}

// nodeGroup is one UNWIND-able statement worth of unconditional node merges.
type nodeGroup struct {
	label   string
	rows    []map[string]any
	indexes []int
}

// conditionalGroup merges nodes whose creation depends on the required edge
// target existing (Order + PLACED). A row whose MATCH misses is skipped by
// the statement and surfaces as a referential gap.
type conditionalGroup struct {
	label       string
	edgeType    string
	targetLabel string
	incoming    bool
	rows        []map[string]any
	indexes     []int
}

// edgeGroup merges edges between nodes that must already exist.
type edgeGroup struct {
	srcLabel    string
	targetLabel string
	edgeType    string
	mergeKey    string
	incoming    bool
	rows        []map[string]any
	indexes     []int
}

// ApplyBatch upserts every descriptor of the batch inside one transaction.
// Row-scoped referential gaps are returned as failed rows and do not abort
// sibling rows; constraint and connectivity errors abort the whole batch.
func (r *GraphWriteRepository) ApplyBatch(ctx context.Context, descriptors []domain.UpsertDescriptor) (int, []domain.FailedRow, error) {
	if len(descriptors) == 0 {
		return 0, nil, nil
	}

	nodeGroups, conditionalGroups, edgeGroups, err := groupDescriptors(descriptors)
	if err != nil {
		return 0, nil, err
	}

	session := r.client.WriteSession(ctx)
	defer session.Close(ctx)

	failedIndexes := make(map[int]string)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Nós primeiro: arestas do mesmo lote dependem deles.
		for _, group := range nodeGroups {
			query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {id: row.id})
SET n = row.props
`, group.label)
			if err := runConsume(ctx, tx, query, group.rows); err != nil {
				return nil, err
			}
		}

		for _, group := range conditionalGroups {
			pattern := fmt.Sprintf(`(n)-[:%s]->(t)`, group.edgeType)
			if group.incoming {
				pattern = fmt.Sprintf(`(t)-[:%s]->(n)`, group.edgeType)
			}
			query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (t:%s {id: row.target_id})
MERGE (n:%s {id: row.id})
SET n = row.props
MERGE %s
RETURN row.id AS id
`, group.targetLabel, group.label, pattern)

			applied, err := runCollectIDs(ctx, tx, query, group.rows, "id")
			if err != nil {
				return nil, err
			}
			for i, row := range group.rows {
				if !applied[row["id"].(int64)] {
					gap := &domain.ReferentialGapError{
						EdgeType:    group.edgeType,
						TargetLabel: group.targetLabel,
						TargetKey:   row["target_id"].(int64),
					}
					failedIndexes[group.indexes[i]] = gap.Error()
				}
			}
		}

		for _, group := range edgeGroups {
			merge := fmt.Sprintf(`(s)-[e:%s]->(t)`, group.edgeType)
			if group.mergeKey != "" {
				merge = fmt.Sprintf(`(s)-[e:%s {%s: row.merge_value}]->(t)`, group.edgeType, group.mergeKey)
			}
			if group.incoming {
				merge = fmt.Sprintf(`(t)-[e:%s]->(s)`, group.edgeType)
				if group.mergeKey != "" {
					merge = fmt.Sprintf(`(t)-[e:%s {%s: row.merge_value}]->(s)`, group.edgeType, group.mergeKey)
				}
			}
			query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (s:%s {id: row.src})
MATCH (t:%s {id: row.tgt})
MERGE %s
SET e = row.props
RETURN row.ordinal AS ordinal
`, group.srcLabel, group.targetLabel, merge)

			applied, err := runCollectIDs(ctx, tx, query, group.rows, "ordinal")
			if err != nil {
				return nil, err
			}
			for i, row := range group.rows {
				if !applied[row["ordinal"].(int64)] {
					gap := &domain.ReferentialGapError{
						EdgeType:    group.edgeType,
						TargetLabel: group.targetLabel,
						TargetKey:   row["tgt"].(int64),
					}
					failedIndexes[group.indexes[i]] = gap.Error()
				}
			}
		}

		return nil, nil
	})

	if err != nil {
		return 0, nil, classifyWriteError(err)
	}

	var failedRows []domain.FailedRow
	for idx, reason := range failedIndexes {
		failedRows = append(failedRows, domain.FailedRow{
			EntityType: domain.EntityType(descriptors[idx].Label),
			Key:        fmt.Sprintf("%d", descriptors[idx].Key),
			Reason:     reason,
		})
	}

	return len(descriptors) - len(failedIndexes), failedRows, nil
}

func groupDescriptors(descriptors []domain.UpsertDescriptor) ([]*nodeGroup, []*conditionalGroup, []*edgeGroup, error) {
	nodeGroups := make(map[string]*nodeGroup)
	conditionalGroups := make(map[string]*conditionalGroup)
	edgeGroups := make(map[string]*edgeGroup)

	var nodeOrder []*nodeGroup
	var conditionalOrder []*conditionalGroup
	var edgeOrder []*edgeGroup

	ordinal := int64(0)

	for idx, desc := range descriptors {
		if err := validateIdent(desc.Label); err != nil {
			return nil, nil, nil, err
		}

		required := requiredEdge(desc)

		switch {
		case desc.Props != nil && required == nil:
			group, ok := nodeGroups[desc.Label]
			if !ok {
				group = &nodeGroup{label: desc.Label}
				nodeGroups[desc.Label] = group
				nodeOrder = append(nodeOrder, group)
			}
			group.rows = append(group.rows, map[string]any{"id": desc.Key, "props": desc.Props})
			group.indexes = append(group.indexes, idx)

		case desc.Props != nil:
			if err := validateIdent(required.Type); err != nil {
				return nil, nil, nil, err
			}
			if err := validateIdent(required.TargetLabel); err != nil {
				return nil, nil, nil, err
			}
			key := fmt.Sprintf("%s|%s|%s|%v", desc.Label, required.Type, required.TargetLabel, required.Incoming)
			group, ok := conditionalGroups[key]
			if !ok {
				group = &conditionalGroup{
					label:       desc.Label,
					edgeType:    required.Type,
					targetLabel: required.TargetLabel,
					incoming:    required.Incoming,
				}
				conditionalGroups[key] = group
				conditionalOrder = append(conditionalOrder, group)
			}
			group.rows = append(group.rows, map[string]any{
				"id":        desc.Key,
				"props":     desc.Props,
				"target_id": required.TargetKey,
			})
			group.indexes = append(group.indexes, idx)
		}

		for i := range desc.Edges {
			edge := &desc.Edges[i]
			if edge.Required {
				continue // já tratada junto com o merge do nó
			}
			if err := validateIdent(edge.Type); err != nil {
				return nil, nil, nil, err
			}
			if err := validateIdent(edge.TargetLabel); err != nil {
				return nil, nil, nil, err
			}
			if edge.MergeKey != "" {
				if err := validateIdent(edge.MergeKey); err != nil {
					return nil, nil, nil, err
				}
			}

			key := fmt.Sprintf("%s|%s|%s|%s|%v", desc.Label, edge.Type, edge.TargetLabel, edge.MergeKey, edge.Incoming)
			group, ok := edgeGroups[key]
			if !ok {
				group = &edgeGroup{
					srcLabel:    desc.Label,
					targetLabel: edge.TargetLabel,
					edgeType:    edge.Type,
					mergeKey:    edge.MergeKey,
					incoming:    edge.Incoming,
				}
				edgeGroups[key] = group
				edgeOrder = append(edgeOrder, group)
			}

			props := edge.Props
			if props == nil {
				props = map[string]any{}
			}
			row := map[string]any{
				"ordinal": ordinal,
				"src":     desc.Key,
				"tgt":     edge.TargetKey,
				"props":   props,
			}
			if edge.MergeKey != "" {
				row["merge_value"] = props[edge.MergeKey]
			}
			ordinal++

			group.rows = append(group.rows, row)
			group.indexes = append(group.indexes, idx)
		}
	}

	return nodeOrder, conditionalOrder, edgeOrder, nil
}

// requiredEdge returns the edge the node merge is conditional on, if any.
// Descriptors carry at most one.
func requiredEdge(desc domain.UpsertDescriptor) *domain.EdgeUpsert {
	for i := range desc.Edges {
		if desc.Edges[i].Required {
			return &desc.Edges[i]
		}
	}
	return nil
}

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid graph identifier %q", name)
	}
	return nil
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, query string, rows []map[string]any) error {
	result, err := tx.Run(ctx, query, map[string]any{"rows": rows})
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// runCollectIDs executa a statement e retorna o conjunto de valores int64 da
// coluna pedida, um por linha que realmente deu match e foi aplicada.
func runCollectIDs(ctx context.Context, tx neo4j.ManagedTransaction, query string, rows []map[string]any, column string) (map[int64]bool, error) {
	result, err := tx.Run(ctx, query, map[string]any{"rows": rows})
	if err != nil {
		return nil, err
	}

	applied := make(map[int64]bool, len(rows))
	for result.Next(ctx) {
		value, ok := result.Record().Get(column)
		if !ok {
			continue
		}
		if id, ok := value.(int64); ok {
			applied[id] = true
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	return applied, nil
}

func classifyWriteError(err error) error {
	switch {
	case infraneo4j.IsConstraintViolation(err):
		return &domain.ConstraintViolationError{Err: err}
	case infraneo4j.IsConnectivity(err):
		return &domain.ConnectivityError{Store: "graph store", Err: err}
	default:
		return fmt.Errorf("failed to apply batch: %w", err)
	}
}
