package warehouse

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Warehouse runs assembled statements and streams rows back as JSON lines.
// A Warehouse without a database only compiles: Execute returns nil, nil.
type Warehouse struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects with a driver registered by the caller ("pgx", "sqlite").
// An empty dsn yields a compile-only Warehouse.
func Open(driver, dsn string) (*Warehouse, error) {
	if strings.TrimSpace(dsn) == "" {
		return &Warehouse{timeout: defaultTimeout}, nil
	}
	if driver == "" {
		return nil, fmt.Errorf("warehouse: driver is required when dsn is set")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open %s: %w", driver, err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Warehouse {
	return &Warehouse{
		db:      db,
		timeout: defaultTimeout,
	}
}

// SetTimeout bounds each Execute call. Zero disables the bound.
func (w *Warehouse) SetTimeout(d time.Duration) {
	w.timeout = d
}

func (w *Warehouse) Timeout() time.Duration {
	if w == nil {
		return 0
	}
	return w.timeout
}

// Enabled reports whether statements are executed at all.
func (w *Warehouse) Enabled() bool {
	return w != nil && w.db != nil
}

func (w *Warehouse) Ping(ctx context.Context) error {
	if !w.Enabled() {
		return nil
	}
	if err := w.db.PingContext(ctx); err != nil {
		return &ExecError{
			Code:    http.StatusBadGateway,
			Message: "warehouse is unreachable",
			Err:     err,
		}
	}
	return nil
}

func (w *Warehouse) Close() error {
	if !w.Enabled() {
		return nil
	}
	return w.db.Close()
}

// Execute runs query and encodes every row as one JSON object per line, keyed
// by column name.
func (w *Warehouse) Execute(ctx context.Context, query string, args []any) ([]byte, error) {
	if !w.Enabled() {
		return nil, nil
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecError{
			Code:    http.StatusBadGateway,
			Message: fmt.Sprintf("failed to execute query: %v", err),
			Err:     err,
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{
			Code:    http.StatusBadGateway,
			Message: "failed to read result columns",
			Err:     err,
		}
	}

	var out bytes.Buffer
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecError{
				Code:    http.StatusBadGateway,
				Message: "failed to scan row",
				Err:     err,
			}
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = jsonValue(values[i])
		}
		line, err := json.Marshal(row)
		if err != nil {
			return nil, &ExecError{
				Code:    http.StatusBadGateway,
				Message: "failed to marshal row",
				Err:     err,
			}
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{
			Code:    http.StatusBadGateway,
			Message: fmt.Sprintf("failed to read rows: %v", err),
			Err:     err,
		}
	}
	return out.Bytes(), nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t
	}
}
