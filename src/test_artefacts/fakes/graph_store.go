package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/widodu77/knowledge-graph/src/domain"
)

// FakeEdge é uma aresta materializada no grafo em memória.
type FakeEdge struct {
	Type       string
	SrcLabel   string
	SrcKey     int64
	TgtLabel   string
	TgtKey     int64
	Props      map[string]any
	MergeValue any
}

// GraphStore reproduz em memória a semântica de upsert do graph writer real:
// merge de nó por chave natural, merge de aresta por par de pontas (ou por
// merge key), nós antes de arestas dentro do lote, gaps referenciais
// contados sem abortar o lote.
type GraphStore struct {
	mu sync.Mutex

	Nodes map[string]map[int64]map[string]any
	Edges []FakeEdge

	SchemaEnsured int
	NextWriteErr  error
}

func NewGraphStore() *GraphStore {
	return &GraphStore{
		Nodes: make(map[string]map[int64]map[string]any),
	}
}

func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SchemaEnsured++
	return nil
}

func (g *GraphStore) ApplyBatch(ctx context.Context, descriptors []domain.UpsertDescriptor) (int, []domain.FailedRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.NextWriteErr != nil {
		err := g.NextWriteErr
		g.NextWriteErr = nil
		return 0, nil, err
	}

	failedIndexes := make(map[int]string)

	// Passo 1: nós incondicionais, para que arestas do mesmo lote os achem.
	for _, desc := range descriptors {
		if desc.Props != nil && requiredEdge(desc) == nil {
			g.mergeNode(desc.Label, desc.Key, desc.Props)
		}
	}

	// Passo 2: nós condicionados à ponta da aresta obrigatória existir.
	for idx, desc := range descriptors {
		required := requiredEdge(desc)
		if desc.Props == nil || required == nil {
			continue
		}
		if !g.nodeExists(required.TargetLabel, required.TargetKey) {
			gap := &domain.ReferentialGapError{
				EdgeType:    required.Type,
				TargetLabel: required.TargetLabel,
				TargetKey:   required.TargetKey,
			}
			failedIndexes[idx] = gap.Error()
			continue
		}
		g.mergeNode(desc.Label, desc.Key, desc.Props)
		g.mergeEdge(edgeFromUpsert(desc, *required))
	}

	// Passo 3: arestas não obrigatórias.
	for idx, desc := range descriptors {
		for _, edge := range desc.Edges {
			if edge.Required {
				continue
			}
			if !g.nodeExists(desc.Label, desc.Key) || !g.nodeExists(edge.TargetLabel, edge.TargetKey) {
				gap := &domain.ReferentialGapError{
					EdgeType:    edge.Type,
					TargetLabel: edge.TargetLabel,
					TargetKey:   edge.TargetKey,
				}
				failedIndexes[idx] = gap.Error()
				continue
			}
			g.mergeEdge(edgeFromUpsert(desc, edge))
		}
	}

	var failed []domain.FailedRow
	for idx, reason := range failedIndexes {
		failed = append(failed, domain.FailedRow{
			EntityType: domain.EntityType(descriptors[idx].Label),
			Key:        fmt.Sprintf("%d", descriptors[idx].Key),
			Reason:     reason,
		})
	}

	return len(descriptors) - len(failedIndexes), failed, nil
}

func (g *GraphStore) NodeCount(label string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Nodes[label])
}

func (g *GraphStore) NodeProps(label string, key int64) (map[string]any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	props, ok := g.Nodes[label][key]
	return props, ok
}

func (g *GraphStore) EdgeCount(edgeType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, edge := range g.Edges {
		if edge.Type == edgeType {
			count++
		}
	}
	return count
}

func (g *GraphStore) TotalEdgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Edges)
}

func (g *GraphStore) FindEdge(edgeType string, srcKey int64, tgtKey int64) (FakeEdge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, edge := range g.Edges {
		if edge.Type == edgeType && edge.SrcKey == srcKey && edge.TgtKey == tgtKey {
			return edge, true
		}
	}
	return FakeEdge{}, false
}

func (g *GraphStore) mergeNode(label string, key int64, props map[string]any) {
	if g.Nodes[label] == nil {
		g.Nodes[label] = make(map[int64]map[string]any)
	}
	// Sobrescrita total de atributos, como SET n = props.
	copied := make(map[string]any, len(props))
	for k, v := range props {
		copied[k] = v
	}
	g.Nodes[label][key] = copied
}

func (g *GraphStore) nodeExists(label string, key int64) bool {
	_, ok := g.Nodes[label][key]
	return ok
}

func (g *GraphStore) mergeEdge(candidate FakeEdge) {
	for i, edge := range g.Edges {
		// O writer real dá MATCH nas pontas por label; a identidade da aresta
		// inclui os labels, não só as chaves.
		if edge.Type != candidate.Type ||
			edge.SrcLabel != candidate.SrcLabel || edge.SrcKey != candidate.SrcKey ||
			edge.TgtLabel != candidate.TgtLabel || edge.TgtKey != candidate.TgtKey {
			continue
		}
		if edge.MergeValue != candidate.MergeValue {
			continue
		}
		g.Edges[i].Props = candidate.Props
		return
	}
	g.Edges = append(g.Edges, candidate)
}

func requiredEdge(desc domain.UpsertDescriptor) *domain.EdgeUpsert {
	for i := range desc.Edges {
		if desc.Edges[i].Required {
			return &desc.Edges[i]
		}
	}
	return nil
}

func edgeFromUpsert(desc domain.UpsertDescriptor, edge domain.EdgeUpsert) FakeEdge {
	props := edge.Props
	if props == nil {
		props = map[string]any{}
	}

	materialized := FakeEdge{
		Type:     edge.Type,
		SrcLabel: desc.Label,
		SrcKey:   desc.Key,
		TgtLabel: edge.TargetLabel,
		TgtKey:   edge.TargetKey,
		Props:    props,
	}
	if edge.MergeKey != "" {
		materialized.MergeValue = props[edge.MergeKey]
	}
	if edge.Incoming {
		materialized.SrcLabel, materialized.TgtLabel = edge.TargetLabel, desc.Label
		materialized.SrcKey, materialized.TgtKey = edge.TargetKey, desc.Key
	}
	return materialized
}
