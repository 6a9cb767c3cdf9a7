// Package chunker splits document text into bounded, overlapping segments
// along paragraph and sentence boundaries, sized for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChunkSize is ~375 tokens, a good size for embedding + retrieval.
	DefaultMaxChunkSize = 1500
	// DefaultOverlapSize is ~50 tokens of context continuity between chunks.
	DefaultOverlapSize = 200
	// DefaultCategory is used when no category is supplied.
	DefaultCategory = "general"

	// minParagraphLen filters out noise fragments (headers, page numbers).
	minParagraphLen = 20
	// minOverlapLen is the smallest overlap fragment worth prepending.
	minOverlapLen = 30
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	paragraphSep = regexp.MustCompile(`\n\n+`)
	sentenceEnd  = regexp.MustCompile(`([.!?])\s+`)
	categoryRe   = regexp.MustCompile(`^(\w+)\s*-\s*`)
)

// Chunk is one bounded segment of a source document. Content may carry a
// leading overlap fragment from the previous chunk, marked with an ellipsis.
type Chunk struct {
	Content  string
	Index    int
	Source   string
	Category string
	Metadata Metadata
}

// Metadata locates a chunk within its source document. CharStart and CharEnd
// are offsets of the chunk's un-overlapped text within the normalized input.
type Metadata struct {
	ChunkIndex  int
	TotalChunks int
	CharStart   int
	CharEnd     int
}

// Options configures ChunkText. Zero values fall back to defaults.
type Options struct {
	MaxChunkSize int    // target chars per chunk
	OverlapSize  int    // overlap between chunks for context continuity
	Source       string // file name / source attribution
	Category     string // category label for filtering
}

func (o Options) withDefaults() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.OverlapSize == 0 {
		o.OverlapSize = DefaultOverlapSize
	} else if o.OverlapSize < 0 {
		// Negative disables overlap entirely.
		o.OverlapSize = 0
	}
	if o.Category == "" {
		o.Category = DefaultCategory
	}
	return o
}

// ChunkText splits text into overlapping chunks that respect paragraph and
// sentence boundaries. The strategy:
//
//  1. Split by blank lines (paragraphs) first
//  2. If a paragraph is too long, split it by sentences
//  3. Combine small paragraphs to avoid tiny chunks
//  4. Add overlap between chunks for context continuity
//
// Deterministic for identical input and options. Returns nil for input that
// normalizes to nothing.
func ChunkText(text string, opts Options) []Chunk {
	opts = opts.withDefaults()

	cleaned := normalize(text)
	if cleaned == "" {
		return nil
	}

	paragraphs := splitParagraphs(cleaned)
	raw := buildRawChunks(paragraphs, opts.MaxChunkSize)

	chunks := make([]Chunk, 0, len(raw))
	for i, rc := range raw {
		content := rc

		// Prefix the tail of the previous chunk, trimmed back to a sentence
		// boundary so the fragment does not start mid-sentence.
		if i > 0 && opts.OverlapSize > 0 {
			if frag := overlapFragment(raw[i-1], opts.OverlapSize); frag != "" {
				content = "..." + frag + "\n\n" + content
			}
		}

		start, end := locate(cleaned, rc)
		chunks = append(chunks, Chunk{
			Content:  content,
			Index:    i,
			Source:   opts.Source,
			Category: opts.Category,
			Metadata: Metadata{
				ChunkIndex:  i,
				TotalChunks: len(raw),
				CharStart:   start,
				CharEnd:     end,
			},
		})
	}

	return chunks
}

// normalize collapses line endings and whitespace: CRLF to LF, 3+ newlines to
// a blank line, runs of spaces/tabs to a single space.
func normalize(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	s = horizontalWS.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func splitParagraphs(cleaned string) []string {
	parts := paragraphSep.Split(cleaned, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > minParagraphLen {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// buildRawChunks greedily accumulates paragraphs up to maxSize. A single
// paragraph that alone exceeds maxSize is split by sentences instead.
func buildRawChunks(paragraphs []string, maxSize int) []string {
	var raw []string
	var current string

	for _, paragraph := range paragraphs {
		if len(paragraph) > maxSize {
			// Flush whatever is pending, then accumulate sentences.
			if current != "" {
				raw = append(raw, strings.TrimSpace(current))
				current = ""
			}
			raw = append(raw, chunkSentences(paragraph, maxSize)...)
			continue
		}

		combined := paragraph
		if current != "" {
			combined = current + "\n\n" + paragraph
		}
		if len(combined) > maxSize && current != "" {
			raw = append(raw, strings.TrimSpace(current))
			current = paragraph
		} else {
			current = combined
		}
	}

	if strings.TrimSpace(current) != "" {
		raw = append(raw, strings.TrimSpace(current))
	}

	return raw
}

// chunkSentences greedily packs sentences into chunks of at most maxSize. An
// atomic sentence longer than maxSize is emitted whole rather than truncated,
// so no input text is ever lost.
func chunkSentences(paragraph string, maxSize int) []string {
	sentences := splitSentences(paragraph)

	var out []string
	var current string
	for _, sentence := range sentences {
		if current != "" && len(current)+1+len(sentence) > maxSize {
			out = append(out, strings.TrimSpace(current))
			current = sentence
		} else if current == "" {
			current = sentence
		} else {
			current = current + " " + sentence
		}
	}
	if current != "" {
		out = append(out, strings.TrimSpace(current))
	}
	return out
}

// splitSentences splits after terminal punctuation followed by whitespace.
// A simple splitter that handles the common cases; decimal numbers and
// abbreviations can produce false boundaries.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1|SPLIT|")
	parts := strings.Split(marked, "|SPLIT|")

	sentences := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// overlapFragment returns the tail of prev to prepend to the next chunk, or
// "" when the usable fragment is too short to add context.
func overlapFragment(prev string, overlapSize int) string {
	tail := prev
	if len(tail) > overlapSize {
		tail = tail[len(tail)-overlapSize:]
	}

	// Cut at the first sentence boundary inside the window so the fragment
	// starts on a sentence. Heuristic: ". " may match a decimal or
	// abbreviation occasionally.
	if idx := strings.Index(tail, ". "); idx > -1 {
		tail = tail[idx+2:]
	}

	if len(tail) <= minOverlapLen {
		return ""
	}
	return tail
}

// locate finds the character offsets of a raw chunk inside the normalized
// text via its first 50 characters. Falls back to [0, len) when not found.
func locate(cleaned, rawChunk string) (int, int) {
	prefix := rawChunk
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	start := strings.Index(cleaned, prefix)
	if start < 0 {
		return 0, len(rawChunk)
	}
	return start, start + len(rawChunk)
}

// ExtractCategory derives a category from the file naming convention
// "Category - Name.ext". Anything else maps to the default category.
func ExtractCategory(fileName string) string {
	if m := categoryRe.FindStringSubmatch(fileName); m != nil {
		return strings.ToLower(m[1])
	}
	return DefaultCategory
}

// EstimateTokens approximates token count (1 token ≈ 4 chars).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
