package querystore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

const (
	fileExt       = ".json"
	maxNameLength = 128
)

// QueryStore keeps named query documents as one JSON file each.
type QueryStore struct {
	dir string
	mu  sync.RWMutex
	log *zap.Logger
}

type SaveOptions struct {
	OrReplace   bool
	IfNotExists bool
}

// New returns nil, nil for an empty dir; every method of a nil store reports
// that no directory is configured.
func New(dir string, log *zap.Logger) (*QueryStore, error) {
	cleaned := strings.TrimSpace(dir)
	if cleaned == "" {
		return nil, nil
	}
	if strings.Contains(cleaned, "\x00") {
		return nil, fmt.Errorf("querystore: invalid queries directory")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryStore{dir: filepath.Clean(cleaned), log: log}, nil
}

func notConfigured() error {
	return &StoreError{
		Code:    http.StatusNotImplemented,
		Message: "querystore: saved queries require a configured queries directory",
	}
}

func sanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &StoreError{
			Code:    http.StatusBadRequest,
			Message: "querystore: query name is empty",
		}
	}
	if len(trimmed) > maxNameLength {
		return "", &StoreError{
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("querystore: query name is longer than %d characters", maxNameLength),
		}
	}
	for _, r := range trimmed {
		if !isSafeNameRune(r) {
			return "", &StoreError{
				Code:    http.StatusBadRequest,
				Message: fmt.Sprintf("querystore: invalid character %q in query name %q", r, trimmed),
			}
		}
	}
	return strings.ToLower(trimmed), nil
}

func isSafeNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

func (s *QueryStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// lock takes the per-name lock file. The returned func releases it.
func (s *QueryStore) lock(name string) (func(), error) {
	lockPath := filepath.Join(s.dir, name+".lock")
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &StoreError{
				Code:    http.StatusLocked,
				Message: fmt.Sprintf("querystore: query %s is locked", name),
				Err:     err,
			}
		}
		return nil, &StoreError{
			Code:    http.StatusLocked,
			Message: fmt.Sprintf("querystore: create lock for query %s: %v", name, err),
			Err:     err,
		}
	}
	return func() {
		if err := lockFile.Close(); err != nil {
			s.log.Warn("failed to close lock file", zap.String("path", lockPath), zap.Error(err))
		}
		if err := os.Remove(lockPath); err != nil {
			s.log.Warn("failed to remove lock file", zap.String("path", lockPath), zap.Error(err))
		}
	}, nil
}

// Save writes body under name and returns the normalized name. Writes go
// through a temp file and a rename, so readers never observe partial documents.
func (s *QueryStore) Save(name string, body []byte, opts SaveOptions) (string, error) {
	if s == nil {
		return "", notConfigured()
	}
	key, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	var doc bytes.Buffer
	if err := json.Indent(&doc, body, "", "  "); err != nil {
		return "", &StoreError{
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("querystore: query %s is not valid JSON", key),
			Err:     err,
		}
	}
	doc.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("querystore: ensure queries directory: %w", err)
	}
	unlock, err := s.lock(key)
	if err != nil {
		return "", err
	}
	defer unlock()

	queryPath := s.path(key)
	info, statErr := os.Stat(queryPath)
	if statErr == nil {
		if info.IsDir() {
			return "", fmt.Errorf("querystore: expected file for query %s but found directory", key)
		}
		if opts.IfNotExists {
			return key, nil
		}
		if !opts.OrReplace {
			return "", &StoreError{
				Code:    http.StatusConflict,
				Message: fmt.Sprintf("querystore: query %s already exists", key),
			}
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return "", fmt.Errorf("querystore: stat query %s: %w", key, statErr)
	}

	tmpFile, err := os.CreateTemp(s.dir, key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("querystore: create temp file for query %s: %w", key, err)
	}
	tmpName := tmpFile.Name()
	if _, err := tmpFile.Write(doc.Bytes()); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("querystore: write query %s: %w", key, err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("querystore: flush query %s: %w", key, err)
	}
	if err := os.Rename(tmpName, queryPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("querystore: replace query %s: %w", key, err)
	}
	return key, nil
}

// Load returns the stored document. found is false when name does not exist.
func (s *QueryStore) Load(name string) (body []byte, found bool, err error) {
	if s == nil {
		return nil, false, notConfigured()
	}
	key, err := sanitizeName(name)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, statErr := os.Stat(s.path(key))
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querystore: stat query %s: %w", key, statErr)
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("querystore: expected file for query %s but found directory", key)
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false, fmt.Errorf("querystore: read query %s: %w", key, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, fmt.Errorf("querystore: query %s is empty", key)
	}
	return data, true, nil
}

// List returns the stored names in lexical order.
func (s *QueryStore) List() ([]string, error) {
	if s == nil {
		return nil, notConfigured()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("querystore: list queries: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ok := strings.CutSuffix(entry.Name(), fileExt)
		if !ok || base == "" {
			continue
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}

func (s *QueryStore) Remove(name string, ifExists bool) error {
	if s == nil {
		return notConfigured()
	}
	key, err := sanitizeName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	queryPath := s.path(key)
	info, statErr := os.Stat(queryPath)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			if ifExists {
				return nil
			}
			return &StoreError{
				Code:    http.StatusNotFound,
				Message: fmt.Sprintf("querystore: query %s does not exist", key),
			}
		}
		return fmt.Errorf("querystore: stat query %s: %w", key, statErr)
	}
	if info.IsDir() {
		return fmt.Errorf("querystore: expected file for query %s but found directory", key)
	}

	unlock, err := s.lock(key)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(queryPath); err != nil {
		return fmt.Errorf("querystore: remove query %s: %w", key, err)
	}
	return nil
}
