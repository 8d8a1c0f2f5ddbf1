package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	pkgch "github.com/ansh-info/StockPulse/pkg/clickhouse"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

const insertChunkSize = 2000

// ClickHouse server error codes that clear up on their own.
var transientCodes = map[int32]bool{
	159: true, // TIMEOUT_EXCEEDED
	202: true, // TOO_MANY_SIMULTANEOUS_QUERIES
	209: true, // SOCKET_TIMEOUT
	241: true, // MEMORY_LIMIT_EXCEEDED
	252: true, // TOO_MANY_PARTS
}

// ClickHouseSink writes tick batches to per-symbol raw and processed tables.
// Each configured symbol maps to a table prefix; the sink appends _raw and
// _processed. Errors the server is expected to recover from are marked
// transient so the coordinator retries them.
type ClickHouseSink struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
	tables   map[string]string // symbol -> table prefix
	log      *applogger.Logger
}

func NewClickHouseSink(client *pkgch.Client, database string, tables map[string]string, log *applogger.Logger) *ClickHouseSink {
	return &ClickHouseSink{
		client:   client,
		db:       client.DB(),
		database: database,
		tables:   tables,
		log:      log.With(applogger.String("component", "clickhouse_sink")),
	}
}

// RawTable returns the fully qualified raw table for symbol, or "" when the
// symbol is not configured.
func (s *ClickHouseSink) RawTable(symbol string) string {
	prefix, ok := s.tables[symbol]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s.%s_raw", s.database, prefix)
}

// ProcessedTable returns the fully qualified processed table for symbol.
func (s *ClickHouseSink) ProcessedTable(symbol string) string {
	prefix, ok := s.tables[symbol]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s.%s_processed", s.database, prefix)
}

// Init creates the database and every per-symbol table pair. Idempotent.
func (s *ClickHouseSink) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
	}
	for symbol := range s.tables {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				timestamp DateTime,
				symbol String,
				open Float64,
				high Float64,
				low Float64,
				close Float64,
				volume Int64,
				ingested_at DateTime DEFAULT now()
			) ENGINE = MergeTree()
			ORDER BY (symbol, timestamp)`, s.RawTable(symbol)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				timestamp DateTime,
				symbol String,
				open Float64,
				high Float64,
				low Float64,
				close Float64,
				volume Int64,
				daily_return Float64,
				ma7 Float64,
				ma20 Float64,
				volatility Float64,
				volume_ma5 Float64,
				momentum Float64,
				ingested_at DateTime DEFAULT now()
			) ENGINE = MergeTree()
			ORDER BY (symbol, timestamp)`, s.ProcessedTable(symbol)),
		)
	}
	if err := s.client.InitSchema(ctx, stmts); err != nil {
		return err
	}
	s.log.Info("schema ready", applogger.Int("symbols", len(s.tables)))
	return nil
}

// StoreRawBatch appends ticks to the symbol's raw table in chunked multi-row
// inserts.
func (s *ClickHouseSink) StoreRawBatch(ctx context.Context, symbol string, ticks []models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	table := s.RawTable(symbol)
	if table == "" {
		return models.ErrUnknownSymbol
	}

	for start := 0; start < len(ticks); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(ticks) {
			end = len(ticks)
		}
		if err := s.insertRawChunk(ctx, table, ticks[start:end]); err != nil {
			return classifyErr(fmt.Errorf("store raw batch %s: %w", symbol, err))
		}
	}
	return nil
}

func (s *ClickHouseSink) insertRawChunk(ctx context.Context, table string, ticks []models.Tick) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (timestamp, symbol, open, high, low, close, volume, ingested_at) VALUES ",
		table))

	args := make([]interface{}, 0, len(ticks)*8)
	for i, t := range ticks {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, now())")
		args = append(args, t.Timestamp, t.Symbol, t.Open, t.High, t.Low, t.Close, t.Volume)
	}

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// StoreProcessedBatch appends enriched rows to the symbol's processed table.
func (s *ClickHouseSink) StoreProcessedBatch(ctx context.Context, symbol string, rows []models.ProcessedTick) error {
	if len(rows) == 0 {
		return nil
	}
	table := s.ProcessedTable(symbol)
	if table == "" {
		return models.ErrUnknownSymbol
	}

	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertProcessedChunk(ctx, table, rows[start:end]); err != nil {
			return classifyErr(fmt.Errorf("store processed batch %s: %w", symbol, err))
		}
	}
	return nil
}

func (s *ClickHouseSink) insertProcessedChunk(ctx context.Context, table string, rows []models.ProcessedTick) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (timestamp, symbol, open, high, low, close, volume, daily_return, ma7, ma20, volatility, volume_ma5, momentum, ingested_at) VALUES ",
		table))

	args := make([]interface{}, 0, len(rows)*14)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now())")
		args = append(args,
			r.Timestamp, r.Symbol, r.Open, r.High, r.Low, r.Close, r.Volume,
			r.DailyReturn, r.MA7, r.MA20, r.Volatility, r.VolumeMA5, r.Momentum)
	}

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *ClickHouseSink) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseSink) Close() error {
	return s.client.Close()
}

// classifyErr marks retryable server and network failures transient.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var ex *clickhouse.Exception
	if errors.As(err, &ex) && transientCodes[ex.Code] {
		return models.MarkTransient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.MarkTransient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.MarkTransient(err)
	}
	return err
}
