package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

// Directories under the project root that the catalog scans.
const (
	mergedModelDir = "merged_model"
	adapterOutDir  = "output"
	predictionsDir = "predictions"
	referencesDir  = "data"
	evaluationDir  = "evaluation"
)

// StorageCatalog lists the paths a client can pick as job inputs: merged models,
// adapters, prediction and reference datasets, and evaluation results.
func (s *ArtifactService) StorageCatalog(ctx context.Context) (model.StorageCatalog, error) {
	adapters, err := s.adapters.List(ctx)
	if err != nil {
		return model.StorageCatalog{}, err
	}

	models := catalogSet{}
	models.add(s.catalogEntry("./"+mergedModelDir, ""))
	for _, dir := range s.childDirs(mergedModelDir) {
		models.add(model.CatalogEntry{Path: dir, Label: dir})
	}
	merge := catalogSet{}
	for _, a := range adapters {
		e := s.catalogEntry(a.Path(), "")
		if e.Path == "" {
			continue
		}
		e.Label = a.Label(e.Path)
		models.add(e)
		merge.add(e)
	}
	for _, dir := range s.childDirs(adapterOutDir) {
		merge.addIfMissing(model.CatalogEntry{Path: dir, Label: dir})
	}

	evals := catalogSet{}
	for _, e := range s.files(evaluationDir, ".json") {
		if strings.HasSuffix(e.Path, "evaluation_results.json") || strings.HasSuffix(e.Path, "latest_evaluation.json") {
			evals.add(e)
		}
	}

	return model.StorageCatalog{
		Models:            models.sorted(),
		Merge:             merge.sorted(),
		Predictions:       s.files(predictionsDir, ".json", ".jsonl"),
		References:        s.files(referencesDir, ".json", ".jsonl"),
		EvaluationResults: evals.sorted(),
	}, nil
}

type catalogSet map[string]model.CatalogEntry

func (c catalogSet) add(e model.CatalogEntry) {
	if e.Path != "" {
		c[e.Path] = e
	}
}

func (c catalogSet) addIfMissing(e model.CatalogEntry) {
	if _, ok := c[e.Path]; !ok {
		c.add(e)
	}
}

func (c catalogSet) sorted() []model.CatalogEntry {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]model.CatalogEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, c[k])
	}
	return out
}

// catalogEntry normalises a recorded path; absolute paths under the root become relative.
func (s *ArtifactService) catalogEntry(p, label string) model.CatalogEntry {
	n := model.NormalizePath(p)
	if n == "" {
		return model.CatalogEntry{}
	}
	if filepath.IsAbs(n) {
		n = s.relative(n)
	}
	if label == "" {
		label = n
	}
	return model.CatalogEntry{Path: n, Label: label}
}

func (s *ArtifactService) relative(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || !within(s.root, p) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// childDirs returns the immediate subdirectories of dir, relative to the root.
func (s *ArtifactService) childDirs(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, s.relative(filepath.Join(s.root, dir, e.Name())))
		}
	}
	return out
}

// files walks dir for regular files with one of exts, sorted by relative path.
func (s *ArtifactService) files(dir string, exts ...string) []model.CatalogEntry {
	set := catalogSet{}
	base := filepath.Join(s.root, dir)
	_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == base {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !slices.Contains(exts, filepath.Ext(p)) {
			return nil
		}
		rel := s.relative(p)
		set.add(model.CatalogEntry{Path: rel, Label: rel})
		return nil
	})
	return set.sorted()
}
