package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/devflow/internal/models"
)

// PersistentFlatIndex is a FlatIndex backed by a single file. Persist writes a temp file in
// the same directory, fsyncs it, and renames it over the previous snapshot.
type PersistentFlatIndex struct {
	*FlatIndex
	path string

	persistMu        sync.Mutex
	persistedVersion uint64
}

// NewPersistentFlat creates an empty index that persists to path.
func NewPersistentFlat(path string, dimensions int, metric Metric) (*PersistentFlatIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: persistent index requires a path", models.ErrConfiguration)
	}
	flat, err := NewFlatIndex(dimensions, metric)
	if err != nil {
		return nil, err
	}
	return &PersistentFlatIndex{FlatIndex: flat, path: path}, nil
}

// LoadPersistentFlat opens the index stored at path. A missing file yields an empty index.
// Unreadable or corrupt files, or files written with another dimension or metric, fail with
// models.ErrPersistence.
func LoadPersistentFlat(path string, dimensions int, metric Metric) (*PersistentFlatIndex, error) {
	idx, err := NewPersistentFlat(path, dimensions, metric)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("%w: open index file: %v", models.ErrPersistence, err)
	}
	defer f.Close()
	records, err := decodeRecords(f, metric, dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", models.ErrPersistence, path, err)
	}
	idx.replace(records)
	idx.persistedVersion = idx.currentVersion()
	return idx, nil
}

// Type returns the index type identifier.
func (p *PersistentFlatIndex) Type() string {
	return string(IndexTypePersistent)
}

// Path returns the snapshot file location.
func (p *PersistentFlatIndex) Path() string { return p.path }

// Dirty reports whether the index changed since the last successful Persist or load.
func (p *PersistentFlatIndex) Dirty() bool {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()
	return p.currentVersion() != p.persistedVersion
}

// Persist snapshots the index under the read lock and writes it atomically.
func (p *PersistentFlatIndex) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.persistMu.Lock()
	defer p.persistMu.Unlock()
	records, version := p.snapshot()
	if err := writeFileAtomic(p.path, func(f *os.File) error {
		return encodeRecords(f, p.metric, p.dimensions, records)
	}); err != nil {
		return fmt.Errorf("%w: persist %s: %v", models.ErrPersistence, p.path, err)
	}
	p.persistedVersion = version
	return nil
}

// Close persists pending changes.
func (p *PersistentFlatIndex) Close() error {
	if !p.Dirty() {
		return nil
	}
	return p.Persist(context.Background())
}

func writeFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
