package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/safarshop/fulfillment/internal/catalog"
	"github.com/safarshop/fulfillment/internal/config"
	"github.com/safarshop/fulfillment/internal/events"
	"github.com/safarshop/fulfillment/internal/httpx"
	"github.com/safarshop/fulfillment/internal/inventory"
	"github.com/safarshop/fulfillment/internal/orders"
	"github.com/safarshop/fulfillment/internal/postgres"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/redisx"
	"github.com/safarshop/fulfillment/internal/shipping"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	bus := events.NewBus(cfg.KafkaBrokers, cfg.ServiceName,
		events.TopicOrderCreated, events.TopicOrderPaid,
		events.TopicOrderCancelled, events.TopicOrderRefunded)
	bus.Start(ctx)

	ledger := &orders.Ledger{
		Store:             &orders.Repo{DB: db, PointsPerUnit: cfg.PointsPerUnit},
		Pricer:            &promo.Engine{Store: &promo.Repo{DB: db}},
		Events:            bus,
		ReservationTTL:    cfg.ReservationTTL,
		DeliveryCostCents: cfg.DeliveryFeeCents,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Ledger:   ledger,
		Catalog:  &catalog.Repo{DB: db},
		Stock:    &inventory.Ledger{DB: db},
		Shipping: &shipping.Tracker{DB: db},
		Redis:    rdb,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	bus.Close()
	cancel()
	bus.WaitClosed()
}
