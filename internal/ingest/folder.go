package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Osyna/QuestionAir/internal/domain"
)

// MarkdownExt is the extension of ingested documents.
const MarkdownExt = ".md"

// ScanFolder returns every markdown file under root, sorted. Hidden
// directories are not descended into.
func ScanFolder(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && isMarkdown(path) && !isHidden(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDocument reads path and identifies it by its slash-separated path
// relative to root.
func LoadDocument(root, path string) (domain.SourceDocument, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return domain.SourceDocument{}, fmt.Errorf("%s is outside %s", path, root)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return domain.SourceDocument{}, fmt.Errorf("%s is not valid UTF-8", path)
	}
	return domain.SourceDocument{
		ID:   filepath.ToSlash(rel),
		Path: path,
		Text: string(data),
	}, nil
}

// LoadFolder scans root and loads every document in order.
func LoadFolder(root string) ([]domain.SourceDocument, error) {
	paths, err := ScanFolder(root)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.SourceDocument, 0, len(paths))
	for _, p := range paths {
		doc, err := LoadDocument(root, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), MarkdownExt)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
