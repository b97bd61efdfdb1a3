package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

var users = []orders.User{
	{Email: "admin@example.com", Name: "Admin User", Role: orders.RoleAdmin},
	{Email: "user@example.com", Name: "Regular User", Role: orders.RoleUser},
}

var stock = []struct {
	id, name, price string
	qty             int
}{
	{"smartphone", "Smartphone", "83999.99", 50},
	{"laptop", "Laptop", "129999.99", 25},
	{"headphones", "Headphones", "7399.99", 100},
	{"smartwatch", "Smartwatch", "29949.99", 40},
	{"tablet", "Tablet", "349.99", 60},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName+"-seed", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	store := postgres.NewStore(db)
	if err := store.DeleteAll(ctx); err != nil {
		log.Fatal("clear data", zap.Error(err))
	}
	log.Info("existing data cleared")

	for _, u := range users {
		created, err := store.CreateUser(ctx, u)
		if err != nil {
			log.Fatal("create user", zap.String("email", u.Email), zap.Error(err))
		}
		log.Info("user created", zap.String("id", created.ID), zap.String("email", created.Email), zap.String("role", string(created.Role)))
	}

	inv := orders.NewInventory(store)
	for _, s := range stock {
		if _, err := inv.Create(ctx, s.id, s.name, s.qty, decimal.RequireFromString(s.price)); err != nil {
			log.Fatal("create inventory", zap.String("product_id", s.id), zap.Error(err))
		}
	}
	log.Info("inventory created", zap.Int("items", len(stock)))
}
