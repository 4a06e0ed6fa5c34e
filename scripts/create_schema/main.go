package main

import (
	"log"

	"github.com/mahaj/baithak/pkg/config"
	"github.com/mahaj/baithak/pkg/store"
)

// One-shot schema bootstrap for local development.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sys, err := store.NewSession(cfg.ScyllaHosts, "system", cfg.ScyllaTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB system keyspace: %v", err)
	}
	if err := store.EnsureKeyspace(sys, cfg.Keyspace); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	sys.Close()

	session, err := store.NewSession(cfg.ScyllaHosts, cfg.Keyspace, cfg.ScyllaTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB %s keyspace: %v", cfg.Keyspace, err)
	}
	defer session.Close()

	if err := store.EnsureSchema(session); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Schema ready")
}
