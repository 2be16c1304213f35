package chunker

import (
	"strconv"
	"unicode/utf8"

	"neurodoc/internal/domain"
)

// DefaultMaxChars is the maximum number of characters per chunk.
const DefaultMaxChars = 1000

// FixedChunker splits text into consecutive fixed-size chunks without overlap.
type FixedChunker struct {
	maxChars int
}

func NewFixedChunker(maxChars int) *FixedChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &FixedChunker{maxChars: maxChars}
}

// Chunk splits the document content and tags every chunk with the document id.
func (c *FixedChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	parts := Split(document.Content, c.maxChars)
	if len(parts) == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = domain.Chunk{
			ID:         ChunkID(document.ID, i),
			DocumentID: document.ID,
			Index:      i,
			Text:       text,
		}
	}
	return chunks, nil
}

// ChunkID returns the store id of the i-th chunk of a document.
func ChunkID(docID string, i int) string {
	return docID + "-" + strconv.Itoa(i)
}

// Split cuts text into pieces of maxChars characters; the last piece may be shorter.
// Characters are Unicode code points, so a piece never ends inside a UTF-8 sequence.
func Split(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	n := utf8.RuneCountInString(text)
	out := make([]string, 0, (n+maxChars-1)/maxChars)
	start, count := 0, 0
	for i := range text {
		if count == maxChars {
			out = append(out, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(out, text[start:])
}
