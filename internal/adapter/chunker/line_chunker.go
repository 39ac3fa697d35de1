package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

var _ port.Chunker = (*LineChunker)(nil)

// LineChunker splits a document into runs of whole lines of at most
// maxTokens estimated tokens. A run that fills up is cut back to its last
// blank line when one falls in its second half, so chunks tend to end
// between functions or paragraphs. Consecutive chunks share up to overlap
// tokens of trailing lines.
type LineChunker struct {
	maxTokens int
	overlap   int
	tokenizer port.Tokenizer
}

func NewLineChunker(maxTokens, overlap int, tokenizer port.Tokenizer) *LineChunker {
	return &LineChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

func (c *LineChunker) Chunk(doc domain.Document, content string) ([]domain.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return c.span(doc.ID, strings.Split(content, "\n"), 0), nil
}

// span chunks lines that start at 0-based line offset of the document.
// Chunk line numbers and IDs are relative to the whole document.
func (c *LineChunker) span(docID string, lines []string, offset int) []domain.Chunk {
	var chunks []domain.Chunk
	start := 0
	for start < len(lines) {
		end := c.cut(lines, start)
		text := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, domain.Chunk{
			ID:        chunkID(docID, fmt.Sprintf("%d-%d", offset+start, offset+end)),
			DocID:     docID,
			StartLine: offset + start + 1,
			EndLine:   offset + end,
			Tokens:    c.tokenizer.Tokenize(text),
			Text:      text,
		})
		if end >= len(lines) {
			break
		}

		next := end - c.overlapLines(lines, start, end)
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// cut returns the exclusive end of the chunk starting at start. The first
// line is always taken, however large.
func (c *LineChunker) cut(lines []string, start int) int {
	end, tokens := start, 0
	for end < len(lines) {
		n := c.tokenizer.CountTokens(lines[end])
		if tokens > 0 && tokens+n > c.maxTokens {
			break
		}
		tokens += n
		end++
	}
	if end >= len(lines) {
		return end
	}
	for i := end - 1; i > start && i >= start+(end-start)/2; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			return i + 1
		}
	}
	return end
}

// overlapLines counts the trailing lines of [start, end) that fit in the
// overlap allowance.
func (c *LineChunker) overlapLines(lines []string, start, end int) int {
	if c.overlap == 0 {
		return 0
	}
	n, tokens := 0, 0
	for i := end - 1; i >= start && tokens < c.overlap; i-- {
		tokens += c.tokenizer.CountTokens(lines[i])
		n++
	}
	return n
}

// chunkID derives a stable chunk ID from the document ID and a key that
// locates the chunk inside it.
func chunkID(docID, key string) string {
	hash := sha256.Sum256([]byte(docID + ":" + key))
	return hex.EncodeToString(hash[:8])
}
