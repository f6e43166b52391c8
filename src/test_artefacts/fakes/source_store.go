package fakes

import (
	"context"
	"strconv"
	"sync"

	"github.com/widodu77/knowledge-graph/src/domain"
)

// SourceStore serve linhas pré-carregadas por tipo de entidade, paginadas
// como o reader real. O cursor aqui é o offset do próximo lote.
type SourceStore struct {
	mu sync.Mutex

	Rows         map[domain.EntityType][]domain.SourceRow
	NextFetchErr error
	FetchCalls   int
}

func NewSourceStore() *SourceStore {
	return &SourceStore{
		Rows: make(map[domain.EntityType][]domain.SourceRow),
	}
}

func (s *SourceStore) Load(entityType domain.EntityType, rows ...domain.SourceRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rows[entityType] = append(s.Rows[entityType], rows...)
}

func (s *SourceStore) FetchBatch(ctx context.Context, entityType domain.EntityType, cursor domain.Cursor, batchSize int) ([]domain.SourceRow, domain.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FetchCalls++

	if s.NextFetchErr != nil {
		err := s.NextFetchErr
		s.NextFetchErr = nil
		return nil, cursor, false, err
	}

	all := s.Rows[entityType]

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(string(cursor))
		if err == nil {
			offset = parsed
		}
	}

	if offset >= len(all) {
		return nil, cursor, true, nil
	}

	end := offset + batchSize
	if end > len(all) {
		end = len(all)
	}

	// Mesmo contrato do reader real: um lote nunca termina no meio de um par
	// (order_id, product_id), senão a agregação de quantity quebra.
	if entityType == domain.EntityTypeOrderItem {
		for end < len(all) &&
			all[end]["order_id"] == all[end-1]["order_id"] &&
			all[end]["product_id"] == all[end-1]["product_id"] {
			end++
		}
	}

	batch := all[offset:end]
	next := domain.Cursor(strconv.Itoa(end))
	return batch, next, end == len(all), nil
}

// Lease guarda o holder em memória com a mesma semântica do lease real.
type Lease struct {
	mu     sync.Mutex
	holder string

	Acquired int
	Released int
}

func NewLease() *Lease {
	return &Lease{}
}

func (l *Lease) Acquire(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return domain.ErrSyncAlreadyRunning
	}
	l.holder = runID
	l.Acquired++
	return nil
}

func (l *Lease) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
		l.Released++
	}
	return nil
}

// Held diz se alguém segura o lease agora.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder != ""
}

// ForceHold simula outro processo segurando o lease.
func (l *Lease) ForceHold(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holder = runID
}
