package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
kafka:
  brokers:
    - localhost:9092
clickhouse:
  host: localhost
stocks:
  AMZN:
    table: amazon_stock
  MSFT:
    table: microsoft_stock
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Kafka.Topic != "stock-ticks" {
		t.Errorf("topic = %q", cfg.Kafka.Topic)
	}
	if cfg.Kafka.Consumer.GroupID != "stockpulse-loader" {
		t.Errorf("group id = %q", cfg.Kafka.Consumer.GroupID)
	}
	if cfg.ClickHouse.Port != 9000 || cfg.ClickHouse.Database != "stockpulse" {
		t.Errorf("clickhouse defaults: port=%d db=%q", cfg.ClickHouse.Port, cfg.ClickHouse.Database)
	}
	if cfg.Loader.BatchSize != 100 {
		t.Errorf("batch size = %d", cfg.Loader.BatchSize)
	}
	if cfg.Loader.BatchTimeout != 120*time.Second {
		t.Errorf("batch timeout = %s", cfg.Loader.BatchTimeout)
	}
	if cfg.Loader.MinBatchInterval != 10*time.Second {
		t.Errorf("min batch interval = %s", cfg.Loader.MinBatchInterval)
	}
	if cfg.Loader.MaxConcurrentLoads != 4 {
		t.Errorf("max concurrent loads = %d", cfg.Loader.MaxConcurrentLoads)
	}
	if cfg.Ingest.Source != "alphavantage" {
		t.Errorf("ingest source = %q", cfg.Ingest.Source)
	}
	if cfg.Cache.FreshnessTTL != 4*time.Minute {
		t.Errorf("freshness ttl = %s", cfg.Cache.FreshnessTTL)
	}
}

func TestParseRejectsMissingBrokers(t *testing.T) {
	yaml := `
clickhouse:
  host: localhost
stocks:
  AMZN:
    table: amazon_stock
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("config without brokers must fail validation")
	}
}

func TestParseRejectsMissingStocks(t *testing.T) {
	yaml := `
kafka:
  brokers:
    - localhost:9092
clickhouse:
  host: localhost
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("config without stocks must fail validation")
	}
}

func TestParseRejectsBadIngestSource(t *testing.T) {
	yaml := minimalYAML + `
ingest:
  source: carrier-pigeon
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("unknown ingest source must fail validation")
	}
}

func TestParseRejectsDuplicateTables(t *testing.T) {
	yaml := `
kafka:
  brokers:
    - localhost:9092
clickhouse:
  host: localhost
stocks:
  AMZN:
    table: shared_stock
  MSFT:
    table: shared_stock
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("duplicate destination tables must fail validation")
	}
	if !strings.Contains(err.Error(), "shared_stock") {
		t.Fatalf("error should name the duplicate table, got: %v", err)
	}
}

func TestParseRejectsStockWithoutTable(t *testing.T) {
	yaml := `
kafka:
  brokers:
    - localhost:9092
clickhouse:
  host: localhost
stocks:
  AMZN: {}
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("stock without a table must fail validation")
	}
}

func TestSymbols(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	syms := cfg.Symbols()
	if len(syms) != 2 {
		t.Fatalf("symbols = %v", syms)
	}
	seen := map[string]bool{}
	for _, s := range syms {
		seen[s] = true
	}
	if !seen["AMZN"] || !seen["MSFT"] {
		t.Fatalf("symbols = %v", syms)
	}
}
