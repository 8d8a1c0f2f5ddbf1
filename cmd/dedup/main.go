package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ansh-info/StockPulse/internal/dedup"
	pkgch "github.com/ansh-info/StockPulse/pkg/clickhouse"
	"github.com/ansh-info/StockPulse/pkg/config"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		log.Fatalf("clickhouse connect failed: %v", err)
	}
	defer client.Close()

	pass := dedup.New(client.DB(), logger)
	ctx := context.Background()

	failed := false
	for _, sc := range cfg.Stocks {
		for _, suffix := range []string{"_raw", "_processed"} {
			table := fmt.Sprintf("%s.%s%s", cfg.ClickHouse.Database, sc.Table, suffix)
			rows, err := pass.Run(ctx, table)
			if err != nil {
				logger.Error("dedup failed",
					applogger.String("table", table), applogger.Error(err))
				failed = true
				continue
			}
			logger.Info("dedup done",
				applogger.String("table", table), applogger.Int("rows", rows))
		}
	}
	if failed {
		os.Exit(1)
	}
}
