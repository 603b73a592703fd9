package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest names the sources of one recomputation.
type Manifest struct {
	AgreementSource string   `yaml:"agreement_source"`
	SalesFolder     string   `yaml:"sales_folder"`
	SalesFiles      []string `yaml:"sales_files"`
}

// SalesLocations resolves each sales file against the folder, in file-list order.
// Entries that are already absolute paths or URLs are used as given.
func (m Manifest) SalesLocations() []string {
	out := make([]string, 0, len(m.SalesFiles))
	for _, name := range m.SalesFiles {
		out = append(out, joinLocation(m.SalesFolder, name))
	}
	return out
}

func joinLocation(folder, name string) string {
	if folder == "" || schemeOf(name) != "" || filepath.IsAbs(name) {
		return name
	}
	if schemeOf(folder) != "" {
		return strings.TrimSuffix(folder, "/") + "/" + strings.TrimPrefix(name, "/")
	}
	return filepath.Join(folder, name)
}

// ManifestProvider yields the manifest for the next recomputation.
type ManifestProvider interface {
	Manifest(ctx context.Context) (Manifest, error)
}

// StaticManifest always returns the same manifest.
type StaticManifest Manifest

func (s StaticManifest) Manifest(context.Context) (Manifest, error) {
	return Manifest(s), nil
}

// FileManifest re-reads a YAML manifest on every call so the file list can be
// edited without a restart. Fields the file leaves empty fall back to Base.
type FileManifest struct {
	Path string
	Base Manifest
}

func (f FileManifest) Manifest(context.Context) (Manifest, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", f.Path, err)
	}

	var fromFile Manifest
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", f.Path, err)
	}

	m := f.Base
	if fromFile.AgreementSource != "" {
		m.AgreementSource = fromFile.AgreementSource
	}
	if fromFile.SalesFolder != "" {
		m.SalesFolder = fromFile.SalesFolder
	}
	if len(fromFile.SalesFiles) > 0 {
		m.SalesFiles = fromFile.SalesFiles
	}
	return m, nil
}
