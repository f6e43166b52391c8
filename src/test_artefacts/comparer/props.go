package comparer

import (
	"github.com/google/go-cmp/cmp"
)

// PropsDiff devolve o diff legível entre dois conjuntos de atributos de
// nó/aresta; vazio quando iguais.
func PropsDiff(want map[string]any, got map[string]any) string {
	return cmp.Diff(want, got)
}

// CountsDiff compara mapas de contagem por tipo (processed/failed de um
// SyncReport, contagens de nós por label).
func CountsDiff[K comparable](want map[K]int, got map[K]int) string {
	return cmp.Diff(want, got)
}
