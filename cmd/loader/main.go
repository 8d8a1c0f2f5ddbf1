package main

import (
	"flag"
	"log"
	"os"

	"github.com/ansh-info/StockPulse/internal/di"
	"github.com/ansh-info/StockPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s topic=%s symbols=%d", cfg.Environment, cfg.Kafka.Topic, len(cfg.Stocks))

	app, err := di.InitializeLoader(cfg)
	if err != nil {
		log.Fatalf("loader initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("loader error: %v", err)
		os.Exit(1)
	}
}
