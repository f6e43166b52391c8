package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/widodu77/knowledge-graph/src/helper/env"
	"github.com/widodu77/knowledge-graph/src/infra/kafka"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Popula a base relacional de origem com dados fake para testes locais do
// pipeline. Também consegue publicar os eventos no tópico Kafka para
// exercitar o caminho de stream.
func main() {
	customers := flag.Int("customers", 200, "number of customers to seed")
	products := flag.Int("products", 100, "number of products to seed")
	categories := flag.Int("categories", 12, "number of categories to seed")
	orders := flag.Int("orders", 500, "number of orders to seed")
	events := flag.Int("events", 2000, "number of behavioral events to seed")
	publishEvents := flag.Bool("publish-events", false, "also publish events to Kafka")
	flag.Parse()

	ctx := context.Background()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		env.MustGetString("SOURCE_DB_USER"),
		env.MustGetString("SOURCE_DB_PASSWORD"),
		env.MustGetString("SOURCE_DB_HOST"),
		env.GetString("SOURCE_DB_PORT", "5432"),
		env.MustGetString("SOURCE_DB_NAME"),
	)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to source database: %v", err)
	}
	defer pool.Close()

	seeder := &seeder{pool: pool}

	if err := seeder.seedCategories(ctx, *categories); err != nil {
		log.Fatalf("Failed to seed categories: %v", err)
	}
	if err := seeder.seedProducts(ctx, *products, *categories); err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}
	if err := seeder.seedCustomers(ctx, *customers); err != nil {
		log.Fatalf("Failed to seed customers: %v", err)
	}
	if err := seeder.seedOrders(ctx, *orders, *customers, *products); err != nil {
		log.Fatalf("Failed to seed orders: %v", err)
	}

	eventRows, err := seeder.seedEvents(ctx, *events, *customers, *products)
	if err != nil {
		log.Fatalf("Failed to seed events: %v", err)
	}

	if *publishEvents {
		if err := publishToKafka(eventRows); err != nil {
			log.Fatalf("Failed to publish events to Kafka: %v", err)
		}
	}

	log.Printf("Seeded %d categories, %d products, %d customers, %d orders, %d events",
		*categories, *products, *customers, *orders, *events)
}

type seeder struct {
	pool *pgxpool.Pool
}

type eventRow struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	ProductID  int64     `json:"product_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"ts"`
}

func (s *seeder) seedCategories(ctx context.Context, count int) error {
	for i := 1; i <= count; i++ {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO categories (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			i, gofakeit.ProductCategory())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedProducts(ctx context.Context, count int, categories int) error {
	for i := 1; i <= count; i++ {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO products (id, name, price, category_id) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			i, gofakeit.ProductName(), gofakeit.Price(1, 500), rand.Intn(categories)+1)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedCustomers(ctx context.Context, count int) error {
	for i := 1; i <= count; i++ {
		joinDate := gofakeit.DateRange(
			time.Now().AddDate(-3, 0, 0),
			time.Now(),
		)
		_, err := s.pool.Exec(ctx,
			`INSERT INTO customers (id, name, join_date) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			i, gofakeit.Name(), joinDate)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedOrders(ctx context.Context, count int, customers int, products int) error {
	for i := 1; i <= count; i++ {
		ts := gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
		_, err := s.pool.Exec(ctx,
			`INSERT INTO orders (id, customer_id, ts) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			i, rand.Intn(customers)+1, ts)
		if err != nil {
			return err
		}

		// 1 a 4 itens por pedido; produto repetido é intencional, exercita a
		// agregação de quantity do CONTAINS.
		items := rand.Intn(4) + 1
		for j := 0; j < items; j++ {
			_, err := s.pool.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
				i, rand.Intn(products)+1, rand.Intn(3)+1)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *seeder) seedEvents(ctx context.Context, count int, customers int, products int) ([]eventRow, error) {
	eventTypes := []string{"view", "click", "add_to_cart"}

	rows := make([]eventRow, count)
	copyRows := make([][]any, count)
	for i := 0; i < count; i++ {
		row := eventRow{
			ID:         int64(i + 1),
			CustomerID: int64(rand.Intn(customers) + 1),
			ProductID:  int64(rand.Intn(products) + 1),
			EventType:  eventTypes[rand.Intn(len(eventTypes))],
			Timestamp:  gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()).UTC(),
		}
		rows[i] = row
		copyRows[i] = []any{row.ID, row.CustomerID, row.ProductID, row.EventType, row.Timestamp}
	}

	// COPY é ordens de magnitude mais rápido que INSERTs individuais aqui.
	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"events"},
		[]string{"id", "customer_id", "product_id", "event_type", "ts"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func publishToKafka(rows []eventRow) error {
	brokers := env.MustGetString("KAFKA_BROKERS")
	topic := env.GetString("KAFKA_EVENTS_TOPIC", "shop.events")

	client, err := kafka.NewKafkaClient(brokers, "datagen", len(rows))
	if err != nil {
		return err
	}
	defer client.Close()

	messages := make([]kafka.Message, 0, len(rows))
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		messages = append(messages, kafka.Message{
			Key:   fmt.Sprintf("%d", row.CustomerID),
			Value: payload,
		})
	}

	return client.Producer(messages, topic)
}
