package pipeline

import (
	"regexp"
	"strings"
)

// Chunk types recorded on each stored chunk.
const (
	ChunkHeader    = "header"
	ChunkCodeBlock = "code_block"
	ChunkList      = "list"
	ChunkParagraph = "paragraph"
)

// Chunk is one unit of indexable text.
type Chunk struct {
	Content       string
	Type          string
	TokenEstimate int
}

// Chunker splits extracted text into chunks sized for embedding.
type Chunker struct {
	targetTokens    int
	maxTokens       int
	codeWindowLines int
}

// NewChunker builds a chunker. Zero values select the defaults
// (400 target, 800 max, 100-line code windows).
func NewChunker(targetTokens, maxTokens, codeWindowLines int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = 400
	}
	if maxTokens <= 0 {
		maxTokens = 800
	}
	if codeWindowLines <= 0 {
		codeWindowLines = 100
	}
	return &Chunker{
		targetTokens:    targetTokens,
		maxTokens:       maxTokens,
		codeWindowLines: codeWindowLines,
	}
}

// EstimateTokens approximates token count as words times 1.3. It is a
// sizing heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// ChunkText splits prose and markdown on header and paragraph boundaries,
// re-splitting oversized blocks on sentence boundaries with a two-sentence
// overlap, then merging runts forward.
func (c *Chunker) ChunkText(text string) []Chunk {
	blocks := splitBlocks(text)

	var chunks []Chunk
	for _, block := range blocks {
		tokens := EstimateTokens(block.content)
		if tokens <= c.maxTokens {
			chunks = append(chunks, Chunk{Content: block.content, Type: block.kind, TokenEstimate: tokens})
			continue
		}
		chunks = append(chunks, c.splitBySentences(block.content, block.kind)...)
	}
	return c.mergeForward(chunks)
}

// ChunkCode emits one chunk per top-level declaration when the language's
// declaration pattern matches, otherwise fixed line windows.
func (c *Chunker) ChunkCode(text, language string) []Chunk {
	lines := strings.Split(text, "\n")
	starts := declarationStarts(lines, language)
	if len(starts) < 2 {
		return c.windowLines(lines)
	}

	var chunks []Chunk
	bounds := append(starts, len(lines))
	// Everything before the first declaration rides with it.
	bounds[0] = 0
	for i := 0; i < len(bounds)-1; i++ {
		content := strings.Join(lines[bounds[i]:bounds[i+1]], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:       content,
			Type:          ChunkCodeBlock,
			TokenEstimate: EstimateTokens(content),
		})
	}
	return chunks
}

type block struct {
	content string
	kind    string
}

// splitBlocks walks lines once, grouping them into header, fenced code,
// list, and paragraph blocks.
func splitBlocks(text string) []block {
	lines := strings.Split(text, "\n")

	var blocks []block
	var current []string
	currentKind := ""
	inFence := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, "\n")
		if strings.TrimSpace(content) != "" {
			blocks = append(blocks, block{content: content, kind: currentKind})
		}
		current = nil
		currentKind = ""
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				current = append(current, line)
				inFence = false
				flush()
				continue
			}
			flush()
			inFence = true
			currentKind = ChunkCodeBlock
			current = append(current, line)
			continue
		}
		if inFence {
			current = append(current, line)
			continue
		}

		switch {
		case headerLine.MatchString(trimmed):
			flush()
			currentKind = ChunkHeader
			current = append(current, line)
			flush()
		case trimmed == "":
			flush()
		case listLine.MatchString(trimmed):
			if currentKind != ChunkList {
				flush()
				currentKind = ChunkList
			}
			current = append(current, line)
		default:
			if currentKind != ChunkParagraph {
				flush()
				currentKind = ChunkParagraph
			}
			current = append(current, line)
		}
	}
	flush()
	return blocks
}

var (
	headerLine = regexp.MustCompile(`^#{1,6}\s`)
	listLine   = regexp.MustCompile(`^(?:[-*+]\s|\d+[.)]\s)`)

	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// splitSentences splits text into sentences, keeping terminators attached.
func splitSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := sentenceEnd.FindStringIndex(rest)
		if loc == nil {
			break
		}
		sentences = append(sentences, rest[:loc[1]])
		rest = rest[loc[1]:]
	}
	if strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// splitBySentences packs sentences up to the target size, carrying the last
// two sentences of each sub-chunk into the next as overlap.
func (c *Chunker) splitBySentences(text, kind string) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []Chunk{{Content: text, Type: kind, TokenEstimate: EstimateTokens(text)}}
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0

	emit := func() {
		if len(current) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(current, ""))
		chunks = append(chunks, Chunk{Content: content, Type: kind, TokenEstimate: EstimateTokens(content)})
		// Overlap: the last two sentences open the next sub-chunk.
		overlapFrom := len(current) - 2
		if overlapFrom < 0 {
			overlapFrom = 0
		}
		current = append([]string(nil), current[overlapFrom:]...)
		currentTokens = 0
		for _, s := range current {
			currentTokens += EstimateTokens(s)
		}
	}

	for _, sentence := range sentences {
		tokens := EstimateTokens(sentence)
		if currentTokens+tokens > c.targetTokens && currentTokens > 0 {
			emit()
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	if len(current) > 0 {
		content := strings.TrimSpace(strings.Join(current, ""))
		chunks = append(chunks, Chunk{Content: content, Type: kind, TokenEstimate: EstimateTokens(content)})
	}
	return chunks
}

// mergeForward folds chunks smaller than a quarter of the target into the
// chunk that follows them.
func (c *Chunker) mergeForward(chunks []Chunk) []Chunk {
	threshold := c.targetTokens / 4

	var merged []Chunk
	var carry *Chunk
	for _, chunk := range chunks {
		if carry != nil {
			chunk.Content = carry.Content + "\n\n" + chunk.Content
			chunk.TokenEstimate = EstimateTokens(chunk.Content)
			carry = nil
		}
		if chunk.TokenEstimate < threshold {
			copied := chunk
			carry = &copied
			continue
		}
		merged = append(merged, chunk)
	}
	if carry != nil {
		// Nothing follows; fold backward instead of dropping.
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			last.Content = last.Content + "\n\n" + carry.Content
			last.TokenEstimate = EstimateTokens(last.Content)
		} else {
			merged = append(merged, *carry)
		}
	}
	return merged
}

func (c *Chunker) windowLines(lines []string) []Chunk {
	var chunks []Chunk
	for start := 0; start < len(lines); start += c.codeWindowLines {
		end := start + c.codeWindowLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:       content,
			Type:          ChunkCodeBlock,
			TokenEstimate: EstimateTokens(content),
		})
	}
	return chunks
}

var declarationPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(?:func|type)\s`),
	"python":     regexp.MustCompile(`^(?:def|class)\s`),
	"javascript": regexp.MustCompile(`^(?:function\s|class\s|(?:export\s+)?(?:const|let|var)\s+\w+\s*=)`),
	"typescript": regexp.MustCompile(`^(?:function\s|class\s|interface\s|(?:export\s+)?(?:const|let|var)\s+\w+\s*=)`),
	"rust":       regexp.MustCompile(`^(?:pub\s+)?(?:fn|struct|enum|impl|trait)\s`),
	"java":       regexp.MustCompile(`^(?:public|private|protected)\s`),
	"ruby":       regexp.MustCompile(`^(?:def|class|module)\s`),
	"c":          regexp.MustCompile(`^\w[\w\s*]*\(`),
	"cpp":        regexp.MustCompile(`^\w[\w\s*:<>]*\(`),
}

// declarationStarts returns line indexes where top-level declarations begin.
// Only unindented declarations count.
func declarationStarts(lines []string, language string) []int {
	pattern, ok := declarationPatterns[language]
	if !ok {
		return nil
	}
	var starts []int
	for i, line := range lines {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		if pattern.MatchString(line) {
			starts = append(starts, i)
		}
	}
	return starts
}
