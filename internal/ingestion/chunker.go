// Package ingestion handles document processing: chunking and pipeline orchestration.
package ingestion

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lexrag/lexrag/internal/repository"
)

// Chunk represents a piece of chunked content
type Chunk struct {
	Content  string
	Heading  string // section heading context, when the method tracks one
	Index    int
	Metadata map[string]string
}

// Chunker handles text chunking with different strategies
type Chunker struct {
	config repository.ChunkerConfig
}

// NewChunker creates a new Chunker with the given configuration
func NewChunker(config repository.ChunkerConfig) *Chunker {
	// Apply defaults if not set
	if config.TargetSize <= 0 {
		config.TargetSize = 256
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 512
	}
	if config.Overlap < 0 {
		config.Overlap = 32
	}
	if config.Method == "" {
		config.Method = "heading"
	}

	return &Chunker{config: config}
}

// Chunk splits content into chunks based on the configured method
func (c *Chunker) Chunk(content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	switch c.config.Method {
	case "fixed":
		return c.chunkFixed(content)
	case "sentence":
		return c.chunkSentence(content)
	case "heading":
		return c.chunkHeading(content)
	default:
		// Default to heading-aware if unknown method
		return c.chunkHeading(content)
	}
}

// headingPattern matches section headings common in statutes and judgments:
// markdown headers, "Section 12.", "Article 21A", "Chapter IV", "Part III",
// and ALL-CAPS lines.
var headingPattern = regexp.MustCompile(`(?m)^(#{1,6}\s+.+|(?:Section|Article|Chapter|Part|Schedule)\s+[0-9IVXLC]+[A-Za-z]?\.?.*|[A-Z][A-Z0-9 ,.\-()]{6,})\s*$`)

// chunkHeading splits on detected section headings and carries the current
// heading onto every chunk cut from that section. Sections that exceed the
// size limits are further split by the sentence strategy.
func (c *Chunker) chunkHeading(content string) []Chunk {
	lines := strings.Split(content, "\n")

	type section struct {
		heading string
		body    []string
	}

	var sections []section
	current := section{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && headingPattern.MatchString(trimmed) {
			if len(current.body) > 0 || current.heading != "" {
				sections = append(sections, current)
			}
			current = section{heading: strings.TrimLeft(trimmed, "# ")}
			continue
		}
		current.body = append(current.body, line)
	}
	if len(current.body) > 0 || current.heading != "" {
		sections = append(sections, current)
	}

	var chunks []Chunk
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if body == "" {
			continue
		}

		if len(strings.Fields(body)) <= c.config.MaxSize {
			chunks = append(chunks, Chunk{
				Content: body,
				Heading: sec.heading,
				Index:   len(chunks),
				Metadata: map[string]string{
					"method":     "heading",
					"word_count": strconv.Itoa(len(strings.Fields(body))),
				},
			})
			continue
		}

		// Oversized section: fall back to sentence grouping inside it.
		for _, sub := range c.chunkSentence(body) {
			sub.Heading = sec.heading
			sub.Index = len(chunks)
			chunks = append(chunks, sub)
		}
	}

	return chunks
}

// chunkSentence groups sentences until the target size is reached
func (c *Chunker) chunkSentence(content string) []Chunk {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var currentSentences []string
	currentWordCount := 0
	fresh := false // true when the buffer holds content not yet emitted

	flush := func() {
		if !fresh {
			return
		}
		chunks = append(chunks, c.newSentenceChunk(currentSentences, len(chunks)))
		currentSentences, currentWordCount = c.overlapTail(currentSentences)
		fresh = false
	}

	for _, sentence := range sentences {
		sentenceWords := len(strings.Fields(sentence))

		// A single sentence longer than the limit gets split by words.
		if sentenceWords > c.config.MaxSize {
			flush()
			currentSentences, currentWordCount = nil, 0
			for _, piece := range c.chunkFixed(sentence) {
				piece.Index = len(chunks)
				piece.Metadata["split"] = "true"
				chunks = append(chunks, piece)
			}
			continue
		}

		if currentWordCount+sentenceWords > c.config.MaxSize {
			flush()
		}

		currentSentences = append(currentSentences, sentence)
		currentWordCount += sentenceWords
		fresh = true

		if currentWordCount >= c.config.TargetSize {
			flush()
		}
	}

	flush()

	return chunks
}

// newSentenceChunk creates a chunk from accumulated sentences
func (c *Chunker) newSentenceChunk(sentences []string, index int) Chunk {
	content := strings.TrimSpace(strings.Join(sentences, " "))
	return Chunk{
		Content: content,
		Index:   index,
		Metadata: map[string]string{
			"method":         "sentence",
			"sentence_count": strconv.Itoa(len(sentences)),
			"word_count":     strconv.Itoa(len(strings.Fields(content))),
		},
	}
}

// overlapTail collects trailing sentences up to the configured overlap so
// consecutive chunks share context.
func (c *Chunker) overlapTail(sentences []string) ([]string, int) {
	if c.config.Overlap <= 0 || len(sentences) == 0 {
		return nil, 0
	}

	var tail []string
	words := 0
	for i := len(sentences) - 1; i >= 0 && words < c.config.Overlap; i-- {
		tail = append([]string{sentences[i]}, tail...)
		words += len(strings.Fields(sentences[i]))
	}

	// Overlap must never cover the whole chunk, or flushing would loop.
	if len(tail) == len(sentences) {
		return nil, 0
	}
	return tail, words
}

// chunkFixed splits content into fixed-size word windows with overlap
func (c *Chunker) chunkFixed(content string) []Chunk {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	step := c.config.TargetSize - c.config.Overlap
	if step <= 0 {
		step = c.config.TargetSize/2 + 1
	}

	var chunks []Chunk
	for i := 0; i < len(words); i += step {
		end := i + c.config.TargetSize
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, Chunk{
			Content: strings.Join(words[i:end], " "),
			Index:   len(chunks),
			Metadata: map[string]string{
				"method":     "fixed",
				"word_count": strconv.Itoa(end - i),
			},
		})

		if end >= len(words) {
			break
		}
	}

	return chunks
}

// sentenceEndPattern finds sentence boundaries. It does not special-case
// abbreviations, so citations like "AIR 1978 S.C. 597" may split early.
var sentenceEndPattern = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks content into sentences.
func splitSentences(content string) []string {
	marked := sentenceEndPattern.ReplaceAllString(content, "$1\x00")

	var sentences []string
	for _, s := range strings.Split(marked, "\x00") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
