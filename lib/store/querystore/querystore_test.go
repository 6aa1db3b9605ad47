package querystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*QueryStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "queries")
	s, err := New(dir, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s, dir
}

func storeCode(t *testing.T, err error) int {
	t.Helper()
	var se *StoreError
	require.True(t, errors.As(err, &se), "expected StoreError, got %v", err)
	return se.Code
}

func TestSaveLoadListRemove(t *testing.T) {
	s, dir := newStore(t)

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	key, err := s.Save("Daily_Totals", []byte(`{"table":"t","columns":["c"]}`), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "daily_totals", key)
	_, err = os.Stat(filepath.Join(dir, "daily_totals.json"))
	require.NoError(t, err)

	_, err = s.Save("by-name", []byte(`{"table":"u","columns":["*"]}`), SaveOptions{})
	require.NoError(t, err)

	body, found, err := s.Load("DAILY_TOTALS")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"table":"t","columns":["c"]}`, string(body))

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"by-name", "daily_totals"}, names)

	require.NoError(t, s.Remove("daily_totals", false))
	_, found, err = s.Load("daily_totals")
	require.NoError(t, err)
	assert.False(t, found)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".lock")
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSaveExisting(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Save("q", []byte(`{"v":1}`), SaveOptions{})
	require.NoError(t, err)

	_, err = s.Save("q", []byte(`{"v":2}`), SaveOptions{})
	assert.Equal(t, 409, storeCode(t, err))

	_, err = s.Save("q", []byte(`{"v":2}`), SaveOptions{IfNotExists: true})
	require.NoError(t, err)
	body, _, err := s.Load("q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(body))

	_, err = s.Save("q", []byte(`{"v":3}`), SaveOptions{OrReplace: true})
	require.NoError(t, err)
	body, _, err = s.Load("q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":3}`, string(body))
}

func TestRemoveMissing(t *testing.T) {
	s, _ := newStore(t)
	assert.Equal(t, 404, storeCode(t, s.Remove("nope", false)))
	require.NoError(t, s.Remove("nope", true))
}

func TestInvalidNames(t *testing.T) {
	s, _ := newStore(t)
	for _, name := range []string{"", "  ", "../etc", "a/b", "a.b", "a b"} {
		_, err := s.Save(name, []byte(`{}`), SaveOptions{})
		assert.Equal(t, 400, storeCode(t, err), name)
	}
	_, err := s.Save("bad-json", []byte(`{`), SaveOptions{})
	assert.Equal(t, 400, storeCode(t, err))
}

func TestLockedQuery(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busy.lock"), nil, 0o600))

	_, err := s.Save("busy", []byte(`{}`), SaveOptions{})
	assert.Equal(t, 423, storeCode(t, err))
}

func TestNilStore(t *testing.T) {
	s, err := New("  ", nil)
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = s.Save("q", []byte(`{}`), SaveOptions{})
	assert.Equal(t, 501, storeCode(t, err))
	_, _, err = s.Load("q")
	assert.Equal(t, 501, storeCode(t, err))
	_, err = s.List()
	assert.Equal(t, 501, storeCode(t, err))
	assert.Equal(t, 501, storeCode(t, s.Remove("q", true)))
}
