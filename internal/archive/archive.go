package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"go.uber.org/zap"
)

type document struct {
	Projects []project.Record `json:"projects"`
}

// Writer appends scraped projects to a single JSON document on disk.
type Writer struct {
	Path   string
	Logger *zap.Logger

	mu sync.Mutex
}

func NewWriter(path string, logger *zap.Logger) *Writer {
	return &Writer{Path: path, Logger: logger}
}

// AppendProjects reads the archive, appends records and writes the whole
// document back. A missing or unparseable archive counts as empty.
func (w *Writer) AppendProjects(records []project.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, err := w.load()
	if err != nil {
		w.Logger.Warn("archive unreadable, starting from an empty document",
			zap.String("path", w.Path), zap.Error(err))
		doc = document{}
	}
	if doc.Projects == nil {
		doc.Projects = []project.Record{}
	}
	doc.Projects = append(doc.Projects, records...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := writeFile(w.Path, data); err != nil {
		return fmt.Errorf("write archive %s: %w", w.Path, err)
	}
	w.Logger.Debug("archive updated",
		zap.String("path", w.Path),
		zap.Int("appended", len(records)),
		zap.Int("total", len(doc.Projects)))
	return nil
}

// Projects returns every record currently in the archive.
func (w *Writer) Projects() ([]project.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, err := w.load()
	return doc.Projects, err
}

func (w *Writer) load() (document, error) {
	var doc document
	data, err := os.ReadFile(w.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// writeFile replaces path through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FailedPush is one unrecoverable sync call, kept for manual recovery.
type FailedPush struct {
	Timestamp time.Time        `json:"timestamp"`
	PassID    string           `json:"pass_id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Projects  []project.Record `json:"projects"`
}

// FailureLog appends pretty-printed FailedPush objects to a file. Entries are
// concatenated, so the file as a whole is not a JSON array.
type FailureLog struct {
	Path string

	mu sync.Mutex
}

func NewFailureLog(path string) *FailureLog {
	return &FailureLog{Path: path}
}

func (l *FailureLog) Record(entry FailedPush) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode failed push: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open failed pushes log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append failed push: %w", err)
	}
	return f.Close()
}
