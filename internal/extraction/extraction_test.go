package extraction_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chimera/internal/extraction"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
	return path
}

func TestRegistrySupported(t *testing.T) {
	registry := extraction.NewRegistry()

	for _, path := range []string{"notes.txt", "README.md", "main.go", "config.YAML", "query.sql"} {
		if !registry.Supported(path) {
			t.Fatalf("expected %s to be supported", path)
		}
	}
	for _, path := range []string{"movie.mkv", "photo.jpg", "archive.tar.gz", "noext"} {
		if registry.Supported(path) {
			t.Fatalf("expected %s to be unsupported", path)
		}
	}
}

func TestExtractClassifiesByExtension(t *testing.T) {
	dir := t.TempDir()
	registry := extraction.NewRegistry()

	cases := []struct {
		name     string
		kind     extraction.Kind
		language string
	}{
		{"plain.txt", extraction.KindText, ""},
		{"doc.md", extraction.KindMarkdown, ""},
		{"main.go", extraction.KindCode, "go"},
		{"script.py", extraction.KindCode, "python"},
	}
	for _, tc := range cases {
		path := writeFile(t, dir, tc.name, []byte("hello world\n"))
		result, err := registry.Extract(path)
		if err != nil {
			t.Fatalf("Extract %s failed: %v", tc.name, err)
		}
		if result.Kind != tc.kind || result.Language != tc.language {
			t.Fatalf("%s classified as %s/%s, want %s/%s", tc.name, result.Kind, result.Language, tc.kind, tc.language)
		}
		if result.Text != "hello world\n" {
			t.Fatalf("%s text mangled: %q", tc.name, result.Text)
		}
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", []byte("not text"))

	_, err := extraction.NewRegistry().Extract(path)
	var unsupported *extraction.ErrUnsupported
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if unsupported.Path != path {
		t.Fatalf("error names wrong path: %s", unsupported.Path)
	}
}

func TestExtractNormalizesLineEndingsAndBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crlf.txt", []byte("\ufefffirst\r\nsecond\rthird\n"))

	result, err := extraction.NewRegistry().Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "first\nsecond\nthird\n" {
		t.Fatalf("unexpected normalized text: %q", result.Text)
	}
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "binary.txt", []byte{0xff, 0xfe, 0xfd})

	if _, err := extraction.NewRegistry().Extract(path); err == nil {
		t.Fatal("expected invalid UTF-8 to be rejected")
	}
}

func TestRegisterOverridesBinding(t *testing.T) {
	registry := extraction.NewRegistry()
	registry.Register(".note", stubExtractor{})
	if !registry.Supported("x.note") {
		t.Fatal("custom extension not registered")
	}

	result, err := registry.Extract("anything.NOTE")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "stub" {
		t.Fatalf("custom extractor not used: %q", result.Text)
	}
}

type stubExtractor struct{}

func (stubExtractor) Extract(string) (*extraction.Result, error) {
	return &extraction.Result{Text: "stub", Kind: extraction.KindText}, nil
}
