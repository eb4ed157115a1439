// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes the engine's read models (suggestions, FAQ
// candidates, update recommendations, gaps) as YAML or JSON files for
// editors and downstream agents.
package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Dir is the exports directory inside the data directory.
const Dir = "exports"

// Format selects the file encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// ParseFormat accepts "yaml", "yml", "json", or empty for YAML.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("unsupported format %q: use yaml or json", s)
}

// Exporter writes read models under <data_dir>/exports/.
type Exporter struct {
	fs  afero.Fs
	dir string
}

// New creates an Exporter rooted at dataDir on fs.
func New(fs afero.Fs, dataDir string) *Exporter {
	return &Exporter{fs: fs, dir: filepath.Join(dataDir, Dir)}
}

// Suggestions writes suggestions.<ext>.
func (x *Exporter) Suggestions(s []types.ArticleSuggestion, f Format) (string, error) {
	return x.write("suggestions", f, nonNil(s))
}

// FAQ writes faq.<ext>.
func (x *Exporter) FAQ(c []types.FAQCandidate, f Format) (string, error) {
	return x.write("faq", f, nonNil(c))
}

// Recommendations writes recommendations.<ext>.
func (x *Exporter) Recommendations(r []types.UpdateRecommendation, f Format) (string, error) {
	return x.write("recommendations", f, nonNil(r))
}

// Gaps writes gaps.<ext>.
func (x *Exporter) Gaps(g []types.KnowledgeGap, f Format) (string, error) {
	return x.write("gaps", f, nonNil(g))
}

// write marshals v and replaces the target through a temporary file so a
// reader never sees a half-written export. It returns the written path.
func (x *Exporter) write(name string, f Format, v any) (string, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case YAML, "":
		f = YAML
		data, err = yaml.Marshal(v)
	case JSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		return "", fmt.Errorf("unsupported format %q", f)
	}
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", name, err)
	}

	if err := x.fs.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", x.dir, err)
	}
	path := filepath.Join(x.dir, name+"."+string(f))
	tmp := path + ".tmp"
	if err := afero.WriteFile(x.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := x.fs.Rename(tmp, path); err != nil {
		x.fs.Remove(tmp)
		return "", fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return path, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
