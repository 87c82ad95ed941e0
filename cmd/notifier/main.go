package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uzbk/farmmarket/internal/config"
	"github.com/uzbk/farmmarket/internal/events"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/notifier"
	"github.com/uzbk/farmmarket/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.Redis.Addr)
	defer rdb.Close()

	svc := &notifier.Service{
		Redis:       rdb,
		ServiceName: cfg.Service.Name + "-notifier",
	}

	placed := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		events.TopicOrderPlaced, cfg.Kafka.Workers)
	changed := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		events.TopicOrderStatusChanged, cfg.Kafka.Workers)

	go func() {
		log.Printf("notifier consuming %s group=%s workers=%d",
			events.TopicOrderPlaced, cfg.Kafka.ConsumerGroup, cfg.Kafka.Workers)
		if err := placed.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()
	go func() {
		log.Printf("notifier consuming %s group=%s workers=%d",
			events.TopicOrderStatusChanged, cfg.Kafka.ConsumerGroup, cfg.Kafka.Workers)
		if err := changed.Start(ctx, svc.HandleStatusChanged); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down notifier...")
	cancel()
}
