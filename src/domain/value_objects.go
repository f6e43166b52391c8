package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSyncAlreadyRunning = errors.New("a sync run is already in progress")

	ErrUnavailableServer = errors.New("Oops, something unexpected happened. Please try again later.")
)

// EntityType identifica uma tabela de origem dentro do pipeline de sync.
type EntityType string

const (
	EntityTypeCategory  EntityType = "Category"
	EntityTypeProduct   EntityType = "Product"
	EntityTypeCustomer  EntityType = "Customer"
	EntityTypeOrder     EntityType = "Order"
	EntityTypeOrderItem EntityType = "OrderItem"
	EntityTypeEvent     EntityType = "Event"
)

// SyncStages is the dependency order the orchestrator walks: categories and
// products before orders (IN_CATEGORY), customers before orders (PLACED),
// orders and products before line items (CONTAINS), and every node type
// before behavioral events.
var SyncStages = []EntityType{
	EntityTypeCategory,
	EntityTypeProduct,
	EntityTypeCustomer,
	EntityTypeOrder,
	EntityTypeOrderItem,
	EntityTypeEvent,
}

// SourceRow é uma linha crua lida do Postgres, indexada pelo nome da coluna.
type SourceRow map[string]any

// Cursor marks the last row of the previous batch so extraction resumes
// without re-scanning or skipping rows. Empty means "from the beginning".
// Its encoding is owned by the source reader.
type Cursor string

// ############################################################
// ############ PROCESSO DE ESCRITA DO GRAFO ##################
// ############################################################

// UpsertDescriptor is the unit of work the graph writer applies: one node
// merge keyed by its natural id, plus zero or more edge merges. A descriptor
// with nil Props is edge-only: both endpoints must already exist.
type UpsertDescriptor struct {
	Label string
	Key   int64
	Props map[string]any
	Edges []EdgeUpsert
}

// EdgeUpsert describes one relationship to merge from (or to) the
// descriptor's node.
type EdgeUpsert struct {
	Type        string
	TargetLabel string
	TargetKey   int64
	Props       map[string]any

	// MergeKey names the edge property that carries the edge's identity
	// (behavioral edges merge on event_id so each source event stays a
	// distinct occurrence). Empty means the edge is unique per endpoint pair.
	MergeKey string

	// Incoming flips direction: the edge points from the target to this node
	// (PLACED goes Customer -> Order while the descriptor is the Order).
	Incoming bool

	// Required makes the node merge conditional on the target existing. An
	// Order whose placing Customer is missing must not be created at all.
	Required bool
}

// FailedRow is one source row the run could not land in the graph, with the
// reason attached so the report never hides partial failure.
type FailedRow struct {
	EntityType EntityType `json:"entity_type"`
	Key        string     `json:"key"`
	Reason     string     `json:"reason"`
}

// ############################################################
// ############### ESTADO E RELATÓRIO DO RUN ##################
// ############################################################

type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateReading   RunState = "reading"
	RunStateMapping   RunState = "mapping"
	RunStateWriting   RunState = "writing"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// SyncReport resume um run completo. FailedRows conta falhas por tipo de
// entidade; um run "completed" com FailedRows > 0 ainda é falha parcial e o
// chamador decide se dispara de novo.
type SyncReport struct {
	RunID      string             `json:"run_id"`
	State      RunState           `json:"state"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Duration   time.Duration      `json:"duration_ns"`
	Processed  map[EntityType]int `json:"processed_per_type"`
	FailedRows map[EntityType]int `json:"failed_rows_per_type"`
	Failures   []FailedRow        `json:"failures,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func NewSyncReport(runID string) *SyncReport {
	return &SyncReport{
		RunID:      runID,
		State:      RunStateIdle,
		StartedAt:  time.Now().UTC(),
		Processed:  make(map[EntityType]int),
		FailedRows: make(map[EntityType]int),
	}
}

func (r *SyncReport) TotalFailedRows() int {
	total := 0
	for _, n := range r.FailedRows {
		total += n
	}
	return total
}

// ############################################################
// #################### TIPOS DE ERRO #########################
// ############################################################

// ConnectivityError wraps a source or graph store being unreachable. Fatal:
// the run transitions to failed.
type ConnectivityError struct {
	Store string
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Store, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ConstraintViolationError means a write would duplicate a unique key, which
// indicates a mapping bug. The batch transaction is rolled back.
type ConstraintViolationError struct {
	Label string
	Err   error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("uniqueness constraint violated for label %s: %v", e.Label, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ReferentialGapError is row-scoped: an edge endpoint is not in the graph
// yet. It is counted, never silently dropped, and never aborts the batch.
type ReferentialGapError struct {
	EdgeType    string
	TargetLabel string
	TargetKey   int64
}

func (e *ReferentialGapError) Error() string {
	return fmt.Sprintf("%s edge target %s %d not present in graph", e.EdgeType, e.TargetLabel, e.TargetKey)
}

// MappingError is row-scoped: a source row failed normalization (non-numeric
// price, missing key). The row is skipped and counted.
type MappingError struct {
	EntityType EntityType
	Field      string
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map %s row field %q: %v", e.EntityType, e.Field, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
