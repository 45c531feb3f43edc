package pipeline_test

import (
	"fmt"
	"strings"
	"testing"

	"chimera/internal/pipeline"
)

func TestChunkTextKeepsEveryWord(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Quarterly Review\n\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Sentence number %d covers a different topic entirely. ", i)
	}
	sb.WriteString("\n\n- first bullet\n- second bullet\n\nClosing paragraph here.\n")
	source := sb.String()

	chunker := pipeline.NewChunker(50, 100, 0)
	chunks := chunker.ChunkText(source)
	if len(chunks) < 2 {
		t.Fatalf("expected the long text to split, got %d chunks", len(chunks))
	}

	joined := strings.Join(collectContents(chunks), "\n")
	for _, word := range strings.Fields(source) {
		if !strings.Contains(joined, word) {
			t.Fatalf("word %q missing from chunk output", word)
		}
	}
	for _, chunk := range chunks {
		if chunk.TokenEstimate != pipeline.EstimateTokens(chunk.Content) {
			t.Fatalf("stale token estimate on chunk: %#v", chunk.TokenEstimate)
		}
	}
}

func TestChunkTextSentenceOverlap(t *testing.T) {
	var sentences []string
	for i := 0; i < 12; i++ {
		sentences = append(sentences, fmt.Sprintf("This is sentence number %d with a few extra words for padding.", i))
	}
	source := strings.Join(sentences, " ")

	chunker := pipeline.NewChunker(30, 60, 0)
	chunks := chunker.ChunkText(source)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share the trailing sentences of the previous one.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		head := strings.SplitN(chunks[i].Content, ".", 2)[0]
		if !strings.Contains(prev, strings.TrimSpace(head)) {
			t.Fatalf("chunk %d does not overlap with its predecessor:\nprev: %s\nnext: %s", i, prev, chunks[i].Content)
		}
	}
}

func TestChunkTextClassifiesBlocks(t *testing.T) {
	source := "# Title\n\nA paragraph of prose.\n\n- one\n- two\n\n```go\nfunc main() {}\n```\n"
	chunker := pipeline.NewChunker(400, 800, 0)
	chunks := chunker.ChunkText(source)

	kinds := make(map[string]bool)
	for _, chunk := range chunks {
		kinds[chunk.Type] = true
	}
	// Small blocks merge forward, but the fenced code must survive as code.
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk.Content, "func main()") {
			found = true
		}
	}
	if !found {
		t.Fatalf("code fence content lost: %#v", chunks)
	}
	if len(kinds) == 0 {
		t.Fatal("expected at least one chunk")
	}
}

func TestChunkTextMergesRunts(t *testing.T) {
	source := "Tiny.\n\nAlso tiny.\n\n" + strings.Repeat("A real paragraph with enough words to stand on its own repeated a lot. ", 20)
	chunker := pipeline.NewChunker(50, 100, 0)
	chunks := chunker.ChunkText(source)

	threshold := 50 / 4
	for i, chunk := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		if chunk.TokenEstimate < threshold {
			t.Fatalf("chunk %d below merge threshold: %d tokens", i, chunk.TokenEstimate)
		}
	}
}

func TestChunkCodeSplitsOnDeclarations(t *testing.T) {
	source := strings.Join([]string{
		"package demo",
		"",
		"import \"fmt\"",
		"",
		"func First() {",
		"\tfmt.Println(\"first\")",
		"}",
		"",
		"func Second() {",
		"\tfmt.Println(\"second\")",
		"}",
		"",
		"type Third struct{}",
	}, "\n")

	chunker := pipeline.NewChunker(0, 0, 0)
	chunks := chunker.ChunkCode(source, "go")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 declaration chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "package demo") {
		t.Fatal("preamble should ride with the first declaration")
	}
	if !strings.HasPrefix(chunks[1].Content, "func Second()") {
		t.Fatalf("unexpected second chunk: %q", chunks[1].Content)
	}
	for _, chunk := range chunks {
		if chunk.Type != pipeline.ChunkCodeBlock {
			t.Fatalf("code chunk mistyped: %s", chunk.Type)
		}
	}
}

func TestChunkCodeFallsBackToWindows(t *testing.T) {
	var lines []string
	for i := 0; i < 250; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	source := strings.Join(lines, "\n")

	chunker := pipeline.NewChunker(0, 0, 100)
	chunks := chunker.ChunkCode(source, "brainfuck")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 window chunks for 250 lines, got %d", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := pipeline.EstimateTokens(""); got != 0 {
		t.Fatalf("empty text estimated at %d tokens", got)
	}
	if got := pipeline.EstimateTokens("one two three four five six seven eight nine ten"); got != 13 {
		t.Fatalf("expected 13 tokens for 10 words, got %d", got)
	}
}

func collectContents(chunks []pipeline.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, chunk.Content)
	}
	return out
}
