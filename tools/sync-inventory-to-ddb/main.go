package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	ddb "github.com/yashrajoria/beacon-market/pkg/dynamodb"
	"github.com/yashrajoria/beacon-market/services/checkout-service/database"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

// sync-inventory-to-ddb copies stock of every tracked product from Postgres
// into the DynamoDB inventory table (created if missing), for switching
// INVENTORY_BACKEND to dynamodb. Untracked products are left out of the table
// and products that already have an item are skipped, so re-running it never
// puts sold stock back on sale.
func main() {
	var table string
	var batchSize int
	flag.StringVar(&table, "table", os.Getenv("INVENTORY_TABLE"), "DynamoDB inventory table name")
	flag.IntVar(&batchSize, "batch", 500, "products read per page")
	flag.Parse()

	if table == "" {
		table = "Inventory"
	}
	if batchSize <= 0 {
		log.Fatal("batch must be positive")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	database.LoadEnv(logger)
	ctx := context.Background()

	db, err := database.ConnectPostgres(database.PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DB:       os.Getenv("POSTGRES_DB"),
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
	}, logger)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer database.Close(db)
	products := repository.NewGormProductRepository(db)

	ddbClient, err := ddb.NewClient(ctx)
	if err != nil {
		log.Fatalf("dynamodb: %v", err)
	}
	if err := ddb.EnsureTable(ctx, ddbClient, table, "product_id"); err != nil {
		log.Fatalf("inventory table: %v", err)
	}
	inventory := repository.NewDynamoInventoryReserver(ddbClient, table, logger)

	var count, skipped, failed int
	after := uuid.Nil
	for {
		page, err := products.ListTracked(ctx, after, batchSize)
		if err != nil {
			log.Fatalf("list products: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			after = p.ID
			err := inventory.Seed(ctx, p.ID, *p.InventoryCount, p.SalesCount)
			if errors.Is(err, repository.ErrInventoryExists) {
				skipped++
				continue
			}
			if err != nil {
				logger.Warn("failed to seed inventory", zap.String("product_id", p.ID.String()), zap.Error(err))
				failed++
				continue
			}
			count++
			if count%100 == 0 {
				logger.Info("synced products", zap.Int("count", count))
			}
		}
	}
	fmt.Printf("Sync complete. synced=%d skipped=%d failed=%d\n", count, skipped, failed)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
