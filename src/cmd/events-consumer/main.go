package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/widodu77/knowledge-graph/src/adapters/kafka/consumers"
	"github.com/widodu77/knowledge-graph/src/helper/env"
	"github.com/widodu77/knowledge-graph/src/infra/kafka"
	infraneo4j "github.com/widodu77/knowledge-graph/src/infra/neo4j"
	"github.com/widodu77/knowledge-graph/src/repositories"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting behavioral events consumer with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newGraphClient,
			newKafkaClient,
			newGraphWriteRepository,
			newBehavioralEventsConsumer,
		),

		// Invocations
		fx.Invoke(startConsumer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer application: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down behavioral events consumer...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}

	log.Println("Behavioral events consumer shutdown complete")
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

func newGraphClient() (*infraneo4j.Client, error) {
	uri := env.GetString("NEO4J_URI", "bolt://localhost:7687")
	user := env.GetString("NEO4J_USER", "neo4j")
	password := env.MustGetString("NEO4J_PASSWORD")
	database := env.GetString("NEO4J_DATABASE", "neo4j")

	return infraneo4j.NewNeo4jClient(uri, user, password, database)
}

func newKafkaClient() (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	groupID := env.GetString("KAFKA_EVENTS_CONSUMER_GROUP_ID", "graph-sync-events")
	batchSize := env.GetInt("KAFKA_BATCH_SIZE", 500)

	return kafka.NewKafkaClient(brokers, groupID, batchSize)
}

func newGraphWriteRepository(client *infraneo4j.Client) *repositories.GraphWriteRepository {
	return repositories.NewGraphWriteRepository(client)
}

func newBehavioralEventsConsumer(
	logger *slog.Logger,
	graphWriteRepository *repositories.GraphWriteRepository,
) *consumers.BehavioralEventsConsumer {
	return consumers.NewBehavioralEventsConsumer(logger, graphWriteRepository)
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	graphClient *infraneo4j.Client,
	eventsConsumer *consumers.BehavioralEventsConsumer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topic := env.GetString("KAFKA_EVENTS_TOPIC", "shop.events")
			logger.Info("Starting behavioral events consumer", "topic", topic)

			go func() {
				if err := eventsConsumer.Start(ctx, kafkaClient, topic); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Kafka client...")
			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			if err := graphClient.Close(ctx); err != nil {
				logger.Error("Failed to close neo4j driver", "error", err)
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
