package warehouse

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE EVENTS (NAME TEXT, AMOUNT INTEGER, NOTE TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO EVENTS (NAME, AMOUNT, NOTE) VALUES ('a', 1, NULL), ('a', 2, 'x'), ('b', 5, 'y')`)
	require.NoError(t, err)
	return db
}

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		row := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &row))
		rows = append(rows, row)
	}
	return rows
}

func TestExecute(t *testing.T) {
	w := New(openTestDB(t))
	require.True(t, w.Enabled())
	require.NoError(t, w.Ping(context.Background()))

	data, err := w.Execute(context.Background(), "SELECT NAME, SUM(AMOUNT) AS TOTAL FROM EVENTS GROUP BY 1 ORDER BY NAME ASC NULLS LAST LIMIT 10", nil)
	require.NoError(t, err)

	rows := decodeLines(t, data)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"NAME": "a", "TOTAL": float64(3)}, rows[0])
	assert.Equal(t, map[string]any{"NAME": "b", "TOTAL": float64(5)}, rows[1])
}

func TestExecuteNulls(t *testing.T) {
	w := New(openTestDB(t))
	data, err := w.Execute(context.Background(), "SELECT NOTE FROM EVENTS WHERE NOTE IS NULL", nil)
	require.NoError(t, err)
	rows := decodeLines(t, data)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["NOTE"])
}

func TestExecuteArgs(t *testing.T) {
	w := New(openTestDB(t))
	data, err := w.Execute(context.Background(), "SELECT AMOUNT FROM EVENTS WHERE NAME = ?", []any{"b"})
	require.NoError(t, err)
	rows := decodeLines(t, data)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(5), rows[0]["AMOUNT"])
}

func TestExecuteFailure(t *testing.T) {
	w := New(openTestDB(t))
	_, err := w.Execute(context.Background(), "SELECT MISSING FROM NOWHERE", nil)
	var ee *ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 502, ee.Code)
}

func TestExecuteCanceled(t *testing.T) {
	w := New(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Execute(ctx, "SELECT NAME FROM EVENTS", nil)
	require.Error(t, err)
}

func TestCompileOnly(t *testing.T) {
	w, err := Open("pgx", "")
	require.NoError(t, err)
	assert.False(t, w.Enabled())

	data, err := w.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Nil(t, data)
	require.NoError(t, w.Ping(context.Background()))
	require.NoError(t, w.Close())

	_, err = Open("", "postgres://localhost/db")
	require.Error(t, err)
}

func TestTimeout(t *testing.T) {
	w := New(openTestDB(t))
	assert.Equal(t, defaultTimeout, w.Timeout())

	w.SetTimeout(0)
	assert.Zero(t, w.Timeout())
	_, err := w.Execute(context.Background(), "SELECT NAME FROM EVENTS", nil)
	require.NoError(t, err)

	var missing *Warehouse
	assert.Zero(t, missing.Timeout())
}
