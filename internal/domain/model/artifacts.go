package model

import (
	"errors"
	"strings"
)

// AdapterEntry is one record of the adapter registry file that training runs append
// to. Entries are kept as decoded JSON so fields written by other tools survive a rewrite.
type AdapterEntry map[string]any

func (a AdapterEntry) str(key string) string {
	s, _ := a[key].(string)
	return s
}

// Path returns the adapter directory as recorded, usually relative to the project root.
func (a AdapterEntry) Path() string { return a.str("path") }

// Name returns the adapter's display name.
func (a AdapterEntry) Name() string { return a.str("name") }

// TrainingDate returns the recorded training date (YYYY-MM-DD), if any.
func (a AdapterEntry) TrainingDate() string { return a.str("training_date") }

// Label renders "name (date) path", falling back to the path alone.
func (a AdapterEntry) Label(path string) string {
	name := a.Name()
	if name == "" {
		return path
	}
	parts := []string{name}
	if d := a.TrainingDate(); d != "" {
		parts = append(parts, "("+d+")")
	}
	return strings.Join(append(parts, path), " ")
}

// AdapterDeleteRequest removes an adapter from the registry and optionally its files.
type AdapterDeleteRequest struct {
	Path        string `json:"path"`
	RemoveFiles bool   `json:"remove_files"`
}

// Validate checks required fields.
func (r AdapterDeleteRequest) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("path is required")
	}
	return nil
}

// AdapterDeleteResult reports what a delete removed.
type AdapterDeleteResult struct {
	Removed      AdapterEntry `json:"removed"`
	RemovedFiles bool         `json:"removed_files"`
}

// CatalogEntry is a selectable storage location.
type CatalogEntry struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// StorageCatalog groups the artifacts found under the project root by the job
// inputs they can feed.
type StorageCatalog struct {
	Models            []CatalogEntry `json:"models"`
	Merge             []CatalogEntry `json:"merge"`
	Predictions       []CatalogEntry `json:"predictions"`
	References        []CatalogEntry `json:"references"`
	EvaluationResults []CatalogEntry `json:"evaluation_results"`
}
