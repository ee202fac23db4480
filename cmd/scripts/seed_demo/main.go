package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/models"
	"github.com/wuwenbin0122/finbot/internal/utils"
)

type seedTransaction struct {
	description string
	category    string
	amount      string
	daysAgo     int
}

func main() {
	userID := flag.String("user", "", "user id to seed")
	flag.Parse()
	if *userID == "" {
		log.Fatal("seed: -user is required")
	}

	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	profile := models.UserProfile{
		UserID:        *userID,
		Persona:       models.PersonaProfessional,
		Age:           "32",
		Income:        models.Income50KTo100K,
		Goals:         "Emergency fund, Retirement",
		Country:       "India",
		Currency:      "INR",
		RiskTolerance: 3,
		TimeHorizon:   "10 years",
	}
	if err := postgres.SaveProfile(ctx, profile); err != nil {
		log.Fatalf("save profile: %v", err)
	}

	transactions := []seedTransaction{
		{description: "Salary", category: "Salary", amount: "85000", daysAgo: 40},
		{description: "Salary", category: "Salary", amount: "85000", daysAgo: 10},
		{description: "Rent", category: "Housing", amount: "-25000", daysAgo: 38},
		{description: "Rent", category: "Housing", amount: "-25000", daysAgo: 8},
		{description: "Groceries", category: "Food", amount: "-8200", daysAgo: 30},
		{description: "Groceries", category: "Food", amount: "-7650", daysAgo: 5},
		{description: "Electricity", category: "Utilities", amount: "-2400", daysAgo: 20},
		{description: "Cinema", category: "Entertainment", amount: "-1200", daysAgo: 12},
		{description: "Freelance project", category: "Side Income", amount: "15000", daysAgo: 15},
	}

	now := time.Now().UTC()
	for _, seed := range transactions {
		tx := models.Transaction{
			Description: seed.description,
			Category:    seed.category,
			Amount:      decimal.RequireFromString(seed.amount),
			Date:        now.AddDate(0, 0, -seed.daysAgo),
		}
		if _, err := postgres.AddTransaction(ctx, *userID, tx); err != nil {
			log.Fatalf("add transaction %s: %v", seed.description, err)
		}
	}

	holdings := []models.Holding{
		{Name: "Nifty 50 Index Fund", Ticker: "NIFTYBEES", Value: decimal.RequireFromString("120000"), Gain: decimal.RequireFromString("14500")},
		{Name: "Public Provident Fund", Ticker: "PPF", Value: decimal.RequireFromString("80000"), Gain: decimal.RequireFromString("5600")},
		{Name: "Vanguard Total Stock Market", Ticker: "VTI", Value: decimal.RequireFromString("45000"), Gain: decimal.RequireFromString("-1800")},
	}
	for _, h := range holdings {
		if _, err := postgres.AddHolding(ctx, *userID, h); err != nil {
			log.Fatalf("add holding %s: %v", h.Ticker, err)
		}
	}

	log.Printf("seeded profile, %d transactions and %d holdings for %s", len(transactions), len(holdings), *userID)
}
