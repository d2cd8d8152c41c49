package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/safarshop/fulfillment/internal/config"
	"github.com/safarshop/fulfillment/internal/events"
	"github.com/safarshop/fulfillment/internal/inventory"
	kafkax "github.com/safarshop/fulfillment/internal/kafka"
	"github.com/safarshop/fulfillment/internal/orders"
	"github.com/safarshop/fulfillment/internal/postgres"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/redisx"
	"github.com/safarshop/fulfillment/internal/shipping"
	"github.com/safarshop/fulfillment/internal/tracking"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	bus := events.NewBus(cfg.KafkaBrokers, cfg.ServiceName+"-sweeper",
		events.TopicShipmentUpdated)
	bus.Start(ctx)

	ledger := &orders.Ledger{
		Store:          &orders.Repo{DB: db, PointsPerUnit: cfg.PointsPerUnit},
		Pricer:         &promo.Engine{Store: &promo.Repo{DB: db}},
		Events:         bus,
		ReservationTTL: cfg.ReservationTTL,
	}
	svc := &tracking.Service{
		Tracker: &shipping.Tracker{DB: db},
		Orders:  ledger,
		Redis:   rdb,
		Events:  bus,
	}
	sweeper := &inventory.Sweeper{
		Reservations: &inventory.Reservations{DB: db},
		Interval:     cfg.SweepInterval,
	}

	group := getenv("TRACKING_GROUP", "fulfillment-sweeper")
	workers := atoi(os.Getenv("TRACKING_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicShipmentTracking, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("reservation sweep every %s", cfg.SweepInterval)
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("tracking consumer started: group=%s topic=%s workers=%d", group, events.TopicShipmentTracking, workers)
		return cons.Start(gctx, svc.HandleUpdate)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down...")
	case <-gctx.Done():
	}
	cancel()
	if err := g.Wait(); err != nil {
		log.Printf("worker exit: %v", err)
	}
	bus.Close()
	bus.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
