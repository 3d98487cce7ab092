package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studycard-subscription/internal/config"
	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	pg "studycard-subscription/internal/infra/db/postgres"
	"studycard-subscription/internal/infra/security"
	"studycard-subscription/internal/usecase"
)

// Seeds one demo user with a completed monthly payment and an active
// subscription so local clients have something to render.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	userID := flag.String("user", "demo-user", "user id to seed")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 16 && len(encKey) != 24 && len(encKey) != 32 {
		encKey = "0123456789abcdef0123456789abcdef"
	}
	cipher, err := security.NewBillingKeyCipher(encKey)
	if err != nil {
		log.Fatalf("billing key cipher: %v", err)
	}

	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool, cipher)
	orders := usecase.NewOrderIDGenerator()

	// If the user already has an active subscription, do nothing.
	if _, err := subRepo.FindActiveByUser(ctx, nil, *userID); err == nil {
		fmt.Printf("user %s already has an active subscription. No changes.\n", *userID)
		return
	} else if err != domain.ErrSubscriptionNotFound {
		log.Fatalf("find active subscription: %v", err)
	}

	now := time.Now()
	plan, cycle := model.PlanPro, model.BillingCycleMonthly

	p, err := model.NewPendingPayment(uuid.NewString(), *userID, orders.Next(), plan.Price(cycle), model.PaymentTypeInitial, plan, cycle, "cus_"+*userID)
	if err != nil {
		log.Fatalf("new payment: %v", err)
	}
	if err := p.Complete("seed_"+uuid.NewString(), "CARD", now); err != nil {
		log.Fatalf("complete payment: %v", err)
	}
	if err := payRepo.Save(ctx, nil, p); err != nil {
		log.Fatalf("save payment: %v", err)
	}

	sub, err := model.NewPendingSubscription(uuid.NewString(), *userID, p.CustomerKey, plan, cycle)
	if err != nil {
		log.Fatalf("new subscription: %v", err)
	}
	billingKey := "bkey_" + uuid.NewString()
	sub.BillingKey = &billingKey
	if err := sub.Activate(now); err != nil {
		log.Fatalf("activate subscription: %v", err)
	}
	if err := subRepo.Save(ctx, nil, sub); err != nil {
		log.Fatalf("save subscription: %v", err)
	}

	fmt.Printf("seeded user %s: payment %s, subscription %s (until %s)\n", *userID, p.OrderID, sub.ID, sub.EndDate.Format(time.RFC3339))
}
