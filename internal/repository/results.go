package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// ResultStore persists one DocumentResult per document ID, at most once.
type ResultStore interface {
	// Write persists result and returns its path. created is false when a result
	// for the same ID already existed; the existing file is left untouched.
	Write(result entity.DocumentResult) (path string, created bool, err error)
	Load(id string) (*entity.DocumentResult, error)
	// List returns the IDs of every persisted result in lexical order.
	List() ([]string, error)
	Path(id string) string
}

// FileResultStore writes results as <dir>/<id>.json.
type FileResultStore struct {
	dir string
	log *slog.Logger
}

func NewFileResultStore(dir string, log *slog.Logger) (*FileResultStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.PersistenceError("create output dir", err)
	}
	return &FileResultStore{dir: dir, log: log}, nil
}

func (s *FileResultStore) Path(id string) string {
	return filepath.Join(s.dir, id+constants.ResultFileExt)
}

// Write stages the JSON in a temp file next to the target, fsyncs it and hard-links
// it into place. Link fails with EEXIST if the target exists, so a second writer
// never replaces a complete result and readers never see a partial one.
func (s *FileResultStore) Write(result entity.DocumentResult) (string, bool, error) {
	if result.DocumentID == "" {
		return "", false, common.PersistenceError("result has no document id", common.ErrInvalidInput)
	}
	final := s.Path(result.DocumentID)
	if _, err := os.Stat(final); err == nil {
		s.log.Info("result already persisted", "document_id", result.DocumentID, "path", final)
		return final, false, nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", false, common.PersistenceError("encode result", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+result.DocumentID+".*.tmp")
	if err != nil {
		return "", false, common.PersistenceError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", false, common.PersistenceError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", false, common.PersistenceError("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", false, common.PersistenceError("close temp file", err)
	}

	if err := os.Link(tmpName, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			s.log.Info("result already persisted", "document_id", result.DocumentID, "path", final)
			return final, false, nil
		}
		return "", false, common.PersistenceError("link result into place", err)
	}
	syncDir(s.dir)
	s.log.Info("result persisted", "document_id", result.DocumentID, "path", final, "bytes", len(data))
	return final, true, nil
}

func (s *FileResultStore) Load(id string) (*entity.DocumentResult, error) {
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.PersistenceError("read result", err)
	}
	var r entity.DocumentResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, common.PersistenceError(fmt.Sprintf("decode result %s", id), err)
	}
	return &r, nil
}

func (s *FileResultStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, common.PersistenceError("list results", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != constants.ResultFileExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, constants.ResultFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// best effort; not every platform supports fsync on directories
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
