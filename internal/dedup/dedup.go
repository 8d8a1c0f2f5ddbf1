// Package dedup rewrites warehouse tables so exactly one row survives per
// (symbol, timestamp) identity key. Loader retries after partial failures
// can legitimately write the same rows twice; this pass is the reconciler.
// It runs as a standalone batch job, not inside the loader.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/util"
)

const insertChunkSize = 2000

// coreColumns carry the tick identity and OHLCV payload. Every other column
// counts toward a row's completeness when picking duplicate winners.
var coreColumns = map[string]bool{
	"symbol":      true,
	"timestamp":   true,
	"open":        true,
	"high":        true,
	"low":         true,
	"close":       true,
	"volume":      true,
	"ingested_at": true,
}

// Pass deduplicates one table at a time via a staging-table swap. Running it
// on an already clean table rewrites the same rows, so it is idempotent.
type Pass struct {
	db  *sql.DB
	log *applogger.Logger
}

func New(db *sql.DB, log *applogger.Logger) *Pass {
	return &Pass{db: db, log: log.With(applogger.String("component", "dedup"))}
}

// Run deduplicates table and returns the surviving row count. The winners
// are written to a staging table which is then exchanged with the original,
// so readers never observe a partially rewritten table.
func (p *Pass) Run(ctx context.Context, table string) (int, error) {
	cols, rows, err := p.readAll(ctx, table)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		p.log.Info("table empty, nothing to deduplicate", applogger.String("table", table))
		return 0, nil
	}

	winners, err := selectWinners(cols, rows)
	if err != nil {
		return 0, fmt.Errorf("dedup %s: %w", table, err)
	}

	staging := table + "_dedup_tmp"
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", staging)); err != nil {
		return 0, fmt.Errorf("drop stale staging: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", staging, table)); err != nil {
		return 0, fmt.Errorf("create staging: %w", err)
	}
	if err := p.insertRows(ctx, staging, cols, winners); err != nil {
		return 0, fmt.Errorf("populate staging: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("EXCHANGE TABLES %s AND %s", staging, table)); err != nil {
		return 0, fmt.Errorf("exchange tables: %w", err)
	}
	// staging now holds the old data
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", staging)); err != nil {
		p.log.Warn("could not drop staging table",
			applogger.String("table", staging), applogger.Error(err))
	}

	p.log.Info("table deduplicated",
		applogger.String("table", table),
		applogger.Int("before", len(rows)),
		applogger.Int("after", len(winners)))
	return len(winners), nil
}

// readAll loads the whole table. The scan order is fixed so repeated runs
// visit rows identically.
func (p *Pass) readAll(ctx context.Context, table string) ([]string, [][]interface{}, error) {
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY symbol, timestamp", table)
	result, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer result.Close()

	cols, err := result.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns of %s: %w", table, err)
	}

	var rows [][]interface{}
	for result.Next() {
		row := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := result.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rows = append(rows, row)
	}
	return cols, rows, result.Err()
}

func (p *Pass) insertRows(ctx context.Context, table string, cols []string, rows [][]interface{}) error {
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", ")))
		placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

		args := make([]interface{}, 0, len(chunk)*len(cols))
		for i, row := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholders)
			args = append(args, row...)
		}
		if _, err := p.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// selectWinners keeps one row per (symbol, timestamp). Ties break on column
// completeness, then ingestion recency; a remaining tie keeps the first row
// scanned, which the fixed read order makes deterministic.
func selectWinners(cols []string, rows [][]interface{}) ([][]interface{}, error) {
	symIdx, tsIdx := -1, -1
	ingIdx := -1
	for i, c := range cols {
		switch c {
		case "symbol":
			symIdx = i
		case "timestamp":
			tsIdx = i
		case "ingested_at":
			ingIdx = i
		}
	}
	if symIdx < 0 || tsIdx < 0 {
		return nil, fmt.Errorf("table lacks identity columns (have %v)", cols)
	}

	type entry struct {
		row   []interface{}
		order int
	}
	best := make(map[string]entry, len(rows))
	var keys []string
	for i, row := range rows {
		key := fmt.Sprintf("%s\x00%s", asString(row[symIdx]), asString(row[tsIdx]))
		cur, ok := best[key]
		if !ok {
			best[key] = entry{row: row, order: i}
			keys = append(keys, key)
			continue
		}
		if better(cols, row, cur.row, ingIdx) {
			best[key] = entry{row: row, order: cur.order}
		}
	}

	sort.Strings(keys)
	out := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k].row)
	}
	return out, nil
}

// better reports whether candidate should replace incumbent.
func better(cols []string, candidate, incumbent []interface{}, ingIdx int) bool {
	cr, ir := richness(cols, candidate), richness(cols, incumbent)
	if cr != ir {
		return cr > ir
	}
	if ingIdx >= 0 {
		ct, co := asTime(candidate[ingIdx])
		it, io := asTime(incumbent[ingIdx])
		if co && io && !ct.Equal(it) {
			return ct.After(it)
		}
	}
	return false
}

// richness counts populated non-core columns.
func richness(cols []string, row []interface{}) int {
	n := 0
	for i, c := range cols {
		if coreColumns[c] {
			continue
		}
		if populated(row[i]) {
			n++
		}
	}
	return n
}

func populated(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return util.FormatWire(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asTime(v interface{}) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}
