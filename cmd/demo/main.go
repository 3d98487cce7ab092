package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/infra/worker"
	"studycard-subscription/internal/usecase"
)

// Walks the payment and subscription state machines in memory. Useful for
// eyeballing lifecycle behavior without a database or a gateway account.
func main() {
	orders := usecase.NewOrderIDGenerator()
	userID := uuid.NewString()
	now := time.Now()

	fmt.Println("== initial purchase ==")
	p, err := model.NewPendingPayment(uuid.NewString(), userID, orders.Next(), model.PlanPro.Price(model.BillingCycleMonthly), model.PaymentTypeInitial, model.PlanPro, model.BillingCycleMonthly, "cus_"+userID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("payment %s: %s, %d KRW\n", p.OrderID, p.Status, p.Amount)

	if err := p.Complete("demo_pk_"+uuid.NewString(), "CARD", now); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("payment %s: %s\n", p.OrderID, p.Status)

	sub, err := model.NewPendingSubscription(uuid.NewString(), userID, p.CustomerKey, p.Plan, p.BillingCycle)
	if err != nil {
		log.Fatal(err)
	}
	bk := "bkey_demo"
	sub.BillingKey = &bk
	if err := sub.Activate(now); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("subscription %s: %s until %s\n", sub.ID, sub.Status, sub.EndDate.Format(time.RFC3339))

	fmt.Println("\n== renewal ==")
	renewAt := sub.EndDate.Add(-12 * time.Hour)
	fmt.Printf("renewable within 24h of window close: %v\n", sub.RenewableWithin(renewAt, renewAt.Add(24*time.Hour)))
	if err := sub.Renew(renewAt, sub.BillingCycle.Period(renewAt)); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("subscription %s: %s until %s\n", sub.ID, sub.Status, sub.EndDate.Format(time.RFC3339))

	fmt.Println("\n== cancellation keeps the window open ==")
	if err := sub.Cancel("demo cancel", renewAt); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("subscription %s: %s, auto_renew=%v, usable=%v\n", sub.ID, sub.Status, sub.AutoRenew, sub.EndDate.After(renewAt))

	fmt.Println("\n== bounded batch pool ==")
	pool := worker.NewPool(3)
	tasks := make([]worker.Task, 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		tasks = append(tasks, func(ctx context.Context) error {
			if i%4 == 3 {
				return fmt.Errorf("task %d: simulated decline", i)
			}
			return nil
		})
	}
	ok := pool.Run(context.Background(), tasks)
	fmt.Printf("batch: %d/%d tasks succeeded\n", ok, len(tasks))
}
