package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

// AdapterRegistryFile reads and edits the adapters.json document that training runs
// register their adapters in:
//
//	{"base_model": "...", "adapters": [{"name", "path", "description", "training_date"}]}
//
// Top-level keys other than "adapters" are preserved on rewrite.
type AdapterRegistryFile struct {
	path string
	mu   sync.Mutex
}

var _ core.AdapterCatalog = (*AdapterRegistryFile)(nil)

// NewAdapterRegistryFile returns a registry backed by the file at path.
func NewAdapterRegistryFile(path string) *AdapterRegistryFile {
	return &AdapterRegistryFile{path: path}
}

// Path returns the backing file.
func (r *AdapterRegistryFile) Path() string { return r.path }

// List returns the registered adapters. A missing file is an empty registry.
func (r *AdapterRegistryFile) List(ctx context.Context) ([]model.AdapterEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if errors.Is(err, fs.ErrNotExist) {
		return []model.AdapterEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	raw, _ := doc["adapters"].([]any)
	out := make([]model.AdapterEntry, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, model.AdapterEntry(m))
		}
	}
	return out, nil
}

// Remove deletes the entry whose path equals path and returns it.
func (r *AdapterRegistryFile) Remove(ctx context.Context, path string) (model.AdapterEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("No adapter registry found")
	}
	if err != nil {
		return nil, err
	}

	raw, _ := doc["adapters"].([]any)
	var removed model.AdapterEntry
	kept := make([]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok && model.AdapterEntry(m).Path() == path {
			removed = m
			continue
		}
		kept = append(kept, item)
	}
	if removed == nil {
		return nil, apperrors.NotFound("Adapter not found")
	}

	doc["adapters"] = kept
	if err := r.store(doc); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *AdapterRegistryFile) load() (map[string]any, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "Failed to parse %s", filepath.Base(r.path))
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// store replaces the file atomically so a concurrent training run never reads a
// half-written registry.
func (r *AdapterRegistryFile) store(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode adapter registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".adapters-*.json")
	if err != nil {
		return fmt.Errorf("write adapter registry: %w", err)
	}
	name := tmp.Name()
	if info, statErr := os.Stat(r.path); statErr == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return errors.Join(fmt.Errorf("write adapter registry: %w", err), tmp.Close(), os.Remove(name))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("write adapter registry: %w", err), os.Remove(name))
	}
	if err := os.Rename(name, r.path); err != nil {
		return errors.Join(fmt.Errorf("replace adapter registry: %w", err), os.Remove(name))
	}
	return nil
}
