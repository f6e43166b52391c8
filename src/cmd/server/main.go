package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/widodu77/knowledge-graph/src/helper/env"
	infraneo4j "github.com/widodu77/knowledge-graph/src/infra/neo4j"
	"github.com/widodu77/knowledge-graph/src/infra/postgres"
	"github.com/widodu77/knowledge-graph/src/infra/redis"
	"github.com/widodu77/knowledge-graph/src/repositories"
	"github.com/widodu77/knowledge-graph/src/server"
	graphservice "github.com/widodu77/knowledge-graph/src/services/graph"
	syncservice "github.com/widodu77/knowledge-graph/src/services/sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting graph sync API server with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newSourcePool,
			newGraphClient,
			newRedisClient,
			newSourceReaderRepository,
			newGraphSchemaRepository,
			newGraphWriteRepository,
			newGraphQueryRepository,
			newRunLeaseRepository,
			newSyncService,
			newGraphService,
			newServer,
		),

		// Invocations
		fx.Invoke(registerServerHooks),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	<-app.Done()
}

func newLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// newSourcePool configures the read-only pool against the relational source
func newSourcePool() (*pgxpool.Pool, error) {
	dbHost := env.MustGetString("SOURCE_DB_HOST")
	dbPort := env.GetString("SOURCE_DB_PORT", "5432")
	dbname := env.MustGetString("SOURCE_DB_NAME")
	dbUser := env.MustGetString("SOURCE_DB_USER")
	dbPassword := env.MustGetString("SOURCE_DB_PASSWORD")
	maxConnections := env.GetInt("SOURCE_DB_MAX_POOL_CONNECTIONS", 10)

	return postgres.NewPostgresClient(dbHost, dbPort, dbname, dbUser, dbPassword, maxConnections)
}

func newGraphClient() (*infraneo4j.Client, error) {
	uri := env.GetString("NEO4J_URI", "bolt://localhost:7687")
	user := env.GetString("NEO4J_USER", "neo4j")
	password := env.MustGetString("NEO4J_PASSWORD")
	database := env.GetString("NEO4J_DATABASE", "neo4j")

	return infraneo4j.NewNeo4jClient(uri, user, password, database)
}

func newRedisClient() *redis.RedisClient {
	addr := env.GetString("REDIS_ADDR", "localhost:6379")
	poolSize := env.GetInt("REDIS_POOL_SIZE", 10)

	return redis.NewRedisClient(addr, poolSize)
}

func newSourceReaderRepository(pool *pgxpool.Pool) *repositories.SourceReaderRepository {
	return repositories.NewSourceReaderRepository(pool)
}

func newGraphSchemaRepository(client *infraneo4j.Client) *repositories.GraphSchemaRepository {
	return repositories.NewGraphSchemaRepository(client)
}

func newGraphWriteRepository(client *infraneo4j.Client) *repositories.GraphWriteRepository {
	return repositories.NewGraphWriteRepository(client)
}

func newGraphQueryRepository(client *infraneo4j.Client) *repositories.GraphQueryRepository {
	return repositories.NewGraphQueryRepository(client)
}

func newRunLeaseRepository(redisClient *redis.RedisClient) *repositories.RunLeaseRepository {
	leaseTTL := env.GetDuration("SYNC_RUN_LEASE_TTL", 30*time.Minute)
	return repositories.NewRunLeaseRepository(redisClient, leaseTTL)
}

func newSyncService(
	logger *slog.Logger,
	reader *repositories.SourceReaderRepository,
	writer *repositories.GraphWriteRepository,
	schema *repositories.GraphSchemaRepository,
	lease *repositories.RunLeaseRepository,
) *syncservice.SyncService {
	batchSize := env.GetInt("SYNC_BATCH_SIZE", 1000)
	return syncservice.NewSyncService(logger, reader, writer, schema, lease, batchSize)
}

func newGraphService(queryRepository *repositories.GraphQueryRepository) *graphservice.GraphService {
	return graphservice.NewGraphService(queryRepository)
}

// storePinger adapta os clients de infra para o health check do server.
type storePinger struct {
	pool        *pgxpool.Pool
	graphClient *infraneo4j.Client
}

func (p *storePinger) PingSource(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *storePinger) PingGraph(ctx context.Context) error {
	return p.graphClient.Driver.VerifyConnectivity(ctx)
}

func newServer(
	logger *slog.Logger,
	syncService *syncservice.SyncService,
	graphService *graphservice.GraphService,
	pool *pgxpool.Pool,
	graphClient *infraneo4j.Client,
) *server.Server {
	port := env.GetInt("SERVER_PORT", 8888)

	return server.NewServer(logger, port, syncService, graphService, &storePinger{
		pool:        pool,
		graphClient: graphClient,
	})
}

// registerServerHooks registers lifecycle hooks for the HTTP server
func registerServerHooks(
	lc fx.Lifecycle,
	srv *server.Server,
	pool *pgxpool.Pool,
	graphClient *infraneo4j.Client,
	redisClient *redis.RedisClient,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			log.Println("Shutting down server...")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server forced to shutdown: %v", err)
				return err
			}

			pool.Close()
			if err := graphClient.Close(shutdownCtx); err != nil {
				log.Printf("Failed to close neo4j driver: %v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("Failed to close redis client: %v", err)
			}

			log.Println("Server exited gracefully")
			return nil
		},
	})
}
