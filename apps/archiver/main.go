package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahaj/baithak/pkg/config"
	"github.com/mahaj/baithak/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	session, err := store.NewSession(cfg.ScyllaHosts, cfg.Keyspace, cfg.ScyllaTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, store.NewCounterStore(session))
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Println("Archiver consuming message events...")
	consumer.Consume(ctx)
}
