package sync

import (
	"context"
	"log/slog"
	gosync "sync"

	"github.com/widodu77/knowledge-graph/src/domain"
)

// SourceReader puxa linhas da base relacional em lotes limitados.
type SourceReader interface {
	FetchBatch(ctx context.Context, entityType domain.EntityType, cursor domain.Cursor, batchSize int) ([]domain.SourceRow, domain.Cursor, bool, error)
}

// GraphWriter aplica um lote de descriptors dentro de uma transação.
type GraphWriter interface {
	ApplyBatch(ctx context.Context, descriptors []domain.UpsertDescriptor) (int, []domain.FailedRow, error)
}

// SchemaManager garante constraints e índices antes de qualquer escrita.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// RunLease é o lock explícito que mantém no máximo um run ativo.
type RunLease interface {
	Acquire(ctx context.Context, runID string) error
	Release(ctx context.Context, runID string) error
}

// SyncService orquestra reader -> mapper -> writer por tipo de entidade, na
// ordem de dependência de domain.SyncStages.
type SyncService struct {
	logger    *slog.Logger
	reader    SourceReader
	writer    GraphWriter
	schema    SchemaManager
	lease     RunLease
	batchSize int

	mu           gosync.Mutex
	state        domain.RunState
	currentStage domain.EntityType
	lastReport   *domain.SyncReport
}

func NewSyncService(
	logger *slog.Logger,
	reader SourceReader,
	writer GraphWriter,
	schema SchemaManager,
	lease RunLease,
	batchSize int,
) *SyncService {
	return &SyncService{
		logger:    logger,
		reader:    reader,
		writer:    writer,
		schema:    schema,
		lease:     lease,
		batchSize: batchSize,
		state:     domain.RunStateIdle,
	}
}

// State retorna o estado corrente da máquina e o estágio em processamento.
func (s *SyncService) State() (domain.RunState, domain.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.currentStage
}

// LastReport retorna o relatório do último run finalizado, se houver.
func (s *SyncService) LastReport() (*domain.SyncReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport, s.lastReport != nil
}

func (s *SyncService) setState(state domain.RunState, stage domain.EntityType) {
	s.mu.Lock()
	s.state = state
	s.currentStage = stage
	s.mu.Unlock()
}

func (s *SyncService) storeReport(report *domain.SyncReport) {
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
}
