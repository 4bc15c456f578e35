package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jabinweb/sciocare-sub001/internal/config"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/infra/db/postgres"
	"github.com/jabinweb/sciocare-sub001/internal/infra/redis"
)

// Sets up a clean, predictable database state for manual end-to-end
// testing: schema applied, caches wiped, one pending payment per gateway.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/4] Applying schema...")
	ddl, err := os.ReadFile("deploy/postgres/init.sql")
	if err != nil {
		log.Fatalf("failed to read init.sql: %v", err)
	}
	if _, err := pool.Exec(ctx, string(ddl)); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	log.Println("[2/4] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	log.Println("[3/4] Wiping existing rows...")
	if _, err := pool.Exec(ctx, `TRUNCATE payments, subscriptions, error_logs RESTART IDENTITY CASCADE`); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[4/4] Seeding pending payments...")
	seedPayments(ctx, postgres.NewPaymentRepo(pool))

	log.Println("--- E2E Environment Setup Complete ---")
}

func seedPayments(ctx context.Context, repo repository.PaymentRepository) {
	userID := uuid.NewString()
	now := time.Now()

	razorpay := &model.Payment{
		ID:              uuid.NewString(),
		UserID:          userID,
		Gateway:         model.GatewayRazorpay,
		Amount:          49900,
		Currency:        "INR",
		Status:          model.PaymentStatusPending,
		RazorpayOrderID: "order_e2e_razorpay",
		Metadata: map[string]interface{}{
			"type":      model.ProvisionTypeClass,
			"userId":    userID,
			"userEmail": "e2e@example.com",
			"classId":   float64(7),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Save(ctx, nil, razorpay); err != nil {
		log.Printf("failed to save razorpay payment: %v", err)
	}

	cashfree := &model.Payment{
		ID:              uuid.NewString(),
		UserID:          userID,
		Gateway:         model.GatewayCashfree,
		Amount:          29900,
		Currency:        "INR",
		Status:          model.PaymentStatusPending,
		CashfreeOrderID: "order_e2e_cashfree",
		Metadata: map[string]interface{}{
			"type":       model.ProvisionTypeSubject,
			"userId":     userID,
			"userEmail":  "e2e@example.com",
			"subjectIds": []interface{}{float64(101), float64(102)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Save(ctx, nil, cashfree); err != nil {
		log.Printf("failed to save cashfree payment: %v", err)
	}

	log.Printf("seeded user %s with razorpay order %s and cashfree order %s",
		userID, razorpay.RazorpayOrderID, cashfree.CashfreeOrderID)
}
