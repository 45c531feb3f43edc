// Package extraction turns files on disk into plain text the rest of the
// pipeline can chunk and index. Extractors register by extension; unknown
// extensions are skipped rather than failed so one odd file never stalls a
// batch.
package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind classifies the extracted content for downstream chunking.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindCode     Kind = "code"
)

// Result is the output of one extraction.
type Result struct {
	Text     string
	Kind     Kind
	Language string
}

// Extractor converts one file into text.
type Extractor interface {
	Extract(path string) (*Result, error)
}

// ErrUnsupported reports a path with no registered extractor.
type ErrUnsupported struct {
	Path string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("no extractor for %s", e.Path)
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExtension map[string]Extractor
}

// NewRegistry returns a registry preloaded with the built-in extractors.
func NewRegistry() *Registry {
	registry := &Registry{byExtension: make(map[string]Extractor)}

	plain := &plainText{kind: KindText}
	markdown := &plainText{kind: KindMarkdown}
	for _, ext := range []string{".txt", ".text", ".log", ".csv", ".json", ".yaml", ".yml", ".toml", ".ini", ".cfg"} {
		registry.Register(ext, plain)
	}
	for _, ext := range []string{".md", ".markdown", ".mdown", ".rst"} {
		registry.Register(ext, markdown)
	}
	for ext, language := range codeLanguages {
		registry.Register(ext, &plainText{kind: KindCode, language: language})
	}
	return registry
}

// Register binds an extension (with leading dot, case-insensitive) to an
// extractor, replacing any previous binding.
func (r *Registry) Register(extension string, extractor Extractor) {
	r.byExtension[strings.ToLower(extension)] = extractor
}

// Supported reports whether the path has a registered extractor.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract runs the extractor registered for the path's extension.
func (r *Registry) Extract(path string) (*Result, error) {
	extractor, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, &ErrUnsupported{Path: path}
	}
	return extractor.Extract(path)
}

var codeLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".rb":    "ruby",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".swift": "swift",
	".kt":    "kotlin",
}

// plainText reads a file as UTF-8 text, rejecting binary content.
type plainText struct {
	kind     Kind
	language string
}

func (p *plainText) Extract(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file %s is not valid UTF-8", path)
	}
	text := normalizeText(string(data))
	return &Result{Text: text, Kind: p.kind, Language: p.language}, nil
}

// normalizeText converts line endings to \n and strips a UTF-8 BOM.
func normalizeText(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}
