package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/widodu77/knowledge-graph/src/domain"

	"github.com/google/uuid"
)

// RunSync executa um ciclo completo de sincronização e devolve o relatório.
// O run é idempotente: contra uma origem inalterada, rodar duas vezes produz
// o mesmo estado de grafo. Cancelamento só é honrado em fronteira de lote,
// deixando o grafo consistente até o último lote commitado.
func (s *SyncService) RunSync(ctx context.Context) (*domain.SyncReport, error) {
	runID := uuid.NewString()
	report := domain.NewSyncReport(runID)

	if err := s.lease.Acquire(ctx, runID); err != nil {
		if errors.Is(err, domain.ErrSyncAlreadyRunning) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	// Liberar em todos os caminhos de saída, inclusive falha.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lease.Release(releaseCtx, runID); err != nil {
			s.logger.Error("Failed to release run lease", "run_id", runID, "error", err)
		}
	}()

	s.logger.Info("Sync run started", "run_id", runID)

	err := s.executeRun(ctx, report)

	report.FinishedAt = time.Now().UTC()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	if err != nil {
		report.State = domain.RunStateFailed
		report.Error = err.Error()
		s.setState(domain.RunStateFailed, s.currentStageLocked())
		s.logger.Error("Sync run failed",
			"run_id", runID,
			"duration", report.Duration,
			"error", err)
	} else {
		report.State = domain.RunStateCompleted
		s.setState(domain.RunStateCompleted, "")
		s.logger.Info("Sync run completed",
			"run_id", runID,
			"duration", report.Duration,
			"failed_rows", report.TotalFailedRows())
	}

	s.storeReport(report)
	return report, err
}

func (s *SyncService) executeRun(ctx context.Context, report *domain.SyncReport) error {
	// Escrever sem schema arrisca duplicação silenciosa: falha aqui é fatal.
	if err := s.schema.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}

	for _, stage := range domain.SyncStages {
		if err := s.runStage(ctx, stage, report); err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
	}

	return nil
}

type batchResult struct {
	rows []domain.SourceRow
	err  error
}

func (s *SyncService) runStage(ctx context.Context, stage domain.EntityType, report *domain.SyncReport) error {
	s.setState(domain.RunStateReading, stage)

	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := s.startReader(stageCtx, stage)

	for batch := range batches {
		if batch.err != nil {
			return batch.err
		}

		s.setState(domain.RunStateMapping, stage)
		descriptors, mapFailures := MapBatch(stage, batch.rows)
		s.recordFailures(report, stage, mapFailures)

		s.setState(domain.RunStateWriting, stage)
		applied, writeFailures, err := s.writer.ApplyBatch(ctx, descriptors)
		if err != nil {
			var constraintErr *domain.ConstraintViolationError
			if errors.As(err, &constraintErr) {
				// Bug de mapeamento: o lote foi revertido inteiro. Conta as
				// linhas e segue, não derruba o run.
				mappedRows := len(batch.rows) - len(mapFailures)
				s.logger.Error("Batch rolled back on constraint violation",
					"stage", stage, "rows", mappedRows, "error", err)
				s.recordBatchFailure(report, stage, descriptors, mappedRows, constraintErr)
				continue
			}
			return err
		}

		report.Processed[stage] += applied
		s.recordFailures(report, stage, writeFailures)

		// Cancelamento só em fronteira de lote.
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(domain.RunStateReading, stage)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// startReader pipelines extraction one batch ahead of the writer: the
// buffered channel lets the next FetchBatch overlap with the current
// ApplyBatch while writes stay strictly sequential.
func (s *SyncService) startReader(ctx context.Context, stage domain.EntityType) <-chan batchResult {
	out := make(chan batchResult, 1)

	go func() {
		defer close(out)

		cursor := domain.Cursor("")
		for {
			rows, next, done, err := s.reader.FetchBatch(ctx, stage, cursor, s.batchSize)
			if err != nil {
				select {
				case out <- batchResult{err: err}:
				case <-ctx.Done():
				}
				return
			}

			if len(rows) > 0 {
				select {
				case out <- batchResult{rows: rows}:
				case <-ctx.Done():
					return
				}
			}

			if done {
				return
			}
			cursor = next
		}
	}()

	return out
}

func (s *SyncService) recordFailures(report *domain.SyncReport, stage domain.EntityType, failures []domain.FailedRow) {
	for _, failure := range failures {
		failure.EntityType = stage
		report.FailedRows[stage]++
		report.Failures = append(report.Failures, failure)
		s.logger.Warn("Row failed",
			"stage", stage,
			"key", failure.Key,
			"reason", failure.Reason)
	}
}

// recordBatchFailure conta as linhas de origem derrubadas pelo rollback, não
// os descriptors: no estágio de line items várias linhas agregam num
// descriptor só. O detalhe em Failures fica por descriptor.
func (s *SyncService) recordBatchFailure(report *domain.SyncReport, stage domain.EntityType, descriptors []domain.UpsertDescriptor, rowCount int, cause error) {
	report.FailedRows[stage] += rowCount
	for _, desc := range descriptors {
		report.Failures = append(report.Failures, domain.FailedRow{
			EntityType: stage,
			Key:        fmt.Sprintf("%d", desc.Key),
			Reason:     cause.Error(),
		})
	}
}

func (s *SyncService) currentStageLocked() domain.EntityType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStage
}
