package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uzbk/farmmarket/internal/config"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/events"
	"github.com/uzbk/farmmarket/internal/geo"
	"github.com/uzbk/farmmarket/internal/httpx"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.Redis.Addr)
	defer rdb.Close()

	producers := httpx.Producers{
		OrderPlaced:        kafkax.NewProducer(cfg.Kafka.Brokers, events.TopicOrderPlaced, 1024),
		OrderStatusChanged: kafkax.NewProducer(cfg.Kafka.Brokers, events.TopicOrderStatusChanged, 1024),
		ListingSold:        kafkax.NewProducer(cfg.Kafka.Brokers, events.TopicListingSold, 1024),
		ReviewCreated:      kafkax.NewProducer(cfg.Kafka.Brokers, events.TopicReviewCreated, 1024),
	}
	for _, p := range producerList(producers) {
		p.Start(ctx)
	}

	geocoder := geo.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout)

	server := httpx.NewServer(db, rdb, geocoder, producers, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("HTTP listening at :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	for _, p := range producerList(producers) {
		p.Close()
	}
	cancel()
	for _, p := range producerList(producers) {
		p.WaitClosed()
	}
}

func producerList(p httpx.Producers) []*kafkax.Producer {
	return []*kafkax.Producer{p.OrderPlaced, p.OrderStatusChanged, p.ListingSold, p.ReviewCreated}
}
