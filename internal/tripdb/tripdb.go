// Package tripdb embeds an analytical SQL engine over an uploaded trip log.
// Each run owns one Engine: the trip rows are loaded into an in-memory
// SQLite table once, then the engine only ever executes read-only queries.
package tripdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// TableName is the table the trip log is loaded into.
const TableName = "trips"

// Statements must start with one of these keywords to run. This allow-list
// is a contract: the engine never executes writes or DDL after the load.
var readOnlyPrefixes = []string{"select", "with", "pragma", "describe", "explain", "show"}

// Engine is a per-run embedded SQL engine over one trip dataset.
type Engine struct {
	db      *sql.DB
	columns []string
	closed  bool
}

// Open creates an in-memory engine and loads the dataset into it. Columns
// are stored as TEXT; the aggregate formulas cast as needed.
func Open(ctx context.Context, header []string, rows [][]string) (*Engine, error) {
	if len(header) == 0 {
		return nil, eris.New("tripdb: dataset has no header row")
	}
	header = dedupeColumns(header)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, eris.Wrap(err, "tripdb: open")
	}
	// The engine is scoped to a single sequential run.
	db.SetMaxOpenConns(1)

	eng := &Engine{db: db, columns: header}
	if err := eng.load(ctx, header, rows); err != nil {
		_ = db.Close()
		return nil, err
	}
	return eng, nil
}

func (e *Engine) load(ctx context.Context, header []string, rows [][]string) error {
	cols := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, name := range header {
		cols[i] = quoteIdent(name) + " TEXT"
		placeholders[i] = "?"
	}

	createSQL := "CREATE TABLE " + TableName + " (" + strings.Join(cols, ", ") + ")"
	if _, err := e.db.ExecContext(ctx, createSQL); err != nil {
		return eris.Wrap(err, "tripdb: create table")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "tripdb: begin load")
	}
	defer func() { _ = tx.Rollback() }()

	quoted := make([]string, len(header))
	for i, name := range header {
		quoted[i] = quoteIdent(name)
	}
	insertSQL := "INSERT INTO " + TableName + " (" + strings.Join(quoted, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return eris.Wrap(err, "tripdb: prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(header))
	for _, row := range rows {
		for i := range header {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrap(err, "tripdb: insert row")
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "tripdb: commit load")
	}
	return nil
}

// Columns returns the dataset's column names in file order.
func (e *Engine) Columns() []string {
	return e.columns
}

// Query executes a read-only statement and returns normalized rows: 64-bit
// integers become plain floats, byte slices become strings, and timestamps
// become RFC 3339 strings. Non-read-only statements are rejected before
// touching the database.
func (e *Engine) Query(ctx context.Context, query string) ([]map[string]any, error) {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	allowed := false
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &model.QueryError{Query: query, Reason: "only read-only SQL statements are permitted"}
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &model.QueryError{Query: query, Reason: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &model.QueryError{Query: query, Reason: err.Error()}
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &model.QueryError{Query: query, Reason: err.Error()}
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.QueryError{Query: query, Reason: err.Error()}
	}

	return out, nil
}

// Close releases the engine. Safe to call more than once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

func normalize(v any) any {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// dedupeColumns renames repeated header names so CREATE TABLE accepts them:
// the first occurrence keeps its name, later ones get _1, _2, ... suffixes.
// SQLite treats column names case-insensitively, so the collision check does
// too.
func dedupeColumns(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		candidate := name
		for n := 1; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}
