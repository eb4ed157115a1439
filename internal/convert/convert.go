// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns Markdown documents into articles so an existing
// help center export can be imported without hand-writing YAML.
//
// A document may start with YAML frontmatter carrying id, title, and
// category. Missing fields are derived: the id from the file name, the
// title from the first "# " heading, and the category from the parent
// directory.
package convert

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// frontmatter is the optional YAML header of a Markdown article.
type frontmatter struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
}

// ParseMarkdown converts one document. path is used only to derive the id
// and category when the frontmatter leaves them out.
func ParseMarkdown(path string, data []byte) (types.Article, error) {
	var fm frontmatter
	body := data
	if rest, ok := bytes.CutPrefix(data, []byte("---\n")); ok {
		// Prefix a newline so an empty header closes on the first line.
		rest = append([]byte("\n"), rest...)
		end := bytes.Index(rest, []byte("\n---"))
		if end < 0 {
			return types.Article{}, fmt.Errorf("unterminated frontmatter")
		}
		if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
			return types.Article{}, fmt.Errorf("parsing frontmatter: %w", err)
		}
		body = rest[end+len("\n---"):]
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			body = body[i+1:]
		} else {
			body = nil
		}
	}

	content := strings.TrimSpace(string(body))
	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title, content = splitHeading(content)
	}

	a := types.Article{
		ID:       strings.TrimSpace(fm.ID),
		Title:    title,
		Content:  content,
		Category: strings.TrimSpace(fm.Category),
	}
	if a.ID == "" {
		a.ID = slug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if a.Category == "" {
		if dir := filepath.Base(filepath.Dir(path)); dir != "." && dir != string(filepath.Separator) {
			a.Category = dir
		}
	}
	if a.ID == "" {
		return types.Article{}, fmt.Errorf("cannot derive an article id")
	}
	return a, nil
}

// ConvertPaths reads every .md file named in paths, descending into
// directories, and prints one status line per document to w. Documents
// with no title and no content are skipped.
func ConvertPaths(fsys afero.Fs, paths []string, w io.Writer) ([]types.Article, BatchResult) {
	if w == nil {
		w = io.Discard
	}
	var (
		result   BatchResult
		articles []types.Article
	)
	for _, file := range markdownFiles(fsys, paths, w, &result) {
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", file, err)
			result.Failed++
			continue
		}
		a, err := ParseMarkdown(file, data)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", file, err)
			result.Failed++
			continue
		}
		if a.Title == "" && a.Content == "" {
			fmt.Fprintf(w, "skipped: %s (empty)\n", file)
			result.Skipped++
			continue
		}
		fmt.Fprintf(w, "converted: %s -> %s\n", file, a.ID)
		result.Converted++
		articles = append(articles, a)
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return articles, result
}

// IsMarkdown reports whether path names a Markdown file.
func IsMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

func markdownFiles(fsys afero.Fs, paths []string, w io.Writer, result *BatchResult) []string {
	var files []string
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", p, err)
			result.Failed++
			continue
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = afero.Walk(fsys, p, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && IsMarkdown(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", p, err)
			result.Failed++
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files
}

// splitHeading pulls a leading "# " heading out of content.
func splitHeading(content string) (title, rest string) {
	line, after, _ := strings.Cut(content, "\n")
	if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
		return strings.TrimSpace(t), strings.TrimSpace(after)
	}
	return "", content
}

// slug lowercases s and joins its alphanumeric runs with hyphens.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
