package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr string, poolSize int) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr: addr,

		PoolSize:     poolSize,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisClient{client: client}
}

// SetKeyNX grava key=value somente se a key não existir, com TTL. Retorna
// true se a key foi adquirida.
func (rc *RedisClient) SetKeyNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return rc.client.SetNX(ctx, key, value, ttl).Result()
}

// GetKey retorna o valor da key e se ela existe.
func (rc *RedisClient) GetKey(ctx context.Context, key string) (string, bool, error) {
	result := rc.client.Get(ctx, key)
	if result.Err() == redis.Nil {
		return "", false, nil
	}
	if result.Err() != nil {
		return "", false, result.Err()
	}
	return result.Val(), true, nil
}

// DeleteKeyIfValue apaga a key somente se ela ainda carrega o valor esperado,
// de forma atômica. Evita que um run antigo apague o lease de um run novo.
func (rc *RedisClient) DeleteKeyIfValue(ctx context.Context, key string, expected string) (bool, error) {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	deleted, err := script.Run(ctx, rc.client, []string{key}, expected).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}
