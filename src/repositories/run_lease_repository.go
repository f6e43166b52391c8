package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/infra/redis"
)

const runLeaseKey = "sync:run-lease"

// RunLeaseRepository garante no máximo um sync run ativo por vez. O lease
// vive no Redis (SET NX + TTL) com o run id como holder, então a exclusão
// vale entre processos e o TTL cobre o caso de um run que morreu sem liberar.
type RunLeaseRepository struct {
	redisClient *redis.RedisClient
	ttl         time.Duration
}

func NewRunLeaseRepository(redisClient *redis.RedisClient, ttl time.Duration) *RunLeaseRepository {
	return &RunLeaseRepository{redisClient: redisClient, ttl: ttl}
}

// Acquire takes the lease for runID or returns ErrSyncAlreadyRunning when
// another run holds it.
func (r *RunLeaseRepository) Acquire(ctx context.Context, runID string) error {
	acquired, err := r.redisClient.SetKeyNX(ctx, runLeaseKey, runID, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !acquired {
		return domain.ErrSyncAlreadyRunning
	}
	return nil
}

// Release frees the lease, but only if runID still holds it: an expired
// lease taken over by a newer run must not be deleted from under it.
func (r *RunLeaseRepository) Release(ctx context.Context, runID string) error {
	_, err := r.redisClient.DeleteKeyIfValue(ctx, runLeaseKey, runID)
	if err != nil {
		return fmt.Errorf("failed to release run lease: %w", err)
	}
	return nil
}
