package chunker

import (
	"strings"
	"testing"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/domain"
)

func newChunker(maxTokens, overlap int) *LineChunker {
	return NewLineChunker(maxTokens, overlap, analyzer.NewTokenizer(analyzer.NewEstimator(0)))
}

var testDoc = domain.Document{ID: "doc1", Path: "/test/file.go"}

func TestLineChunkerBasic(t *testing.T) {
	content := `package main

import "fmt"

func main() {
    fmt.Println("Hello, World!")
}`

	chunks, err := newChunker(50, 10).Chunk(testDoc, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.DocID != "doc1" || c.StartLine != 1 || c.EndLine != 7 {
		t.Errorf("chunk = %s %d-%d", c.DocID, c.StartLine, c.EndLine)
	}
	if c.Text != content {
		t.Error("chunk text differs from content")
	}
	if !contains(c.Tokens, "println") || !contains(c.Tokens, "package") {
		t.Errorf("tokens = %v", c.Tokens)
	}
}

func TestLineChunkerCoversEveryLine(t *testing.T) {
	lines := []string{"Line one", "Line two", "Line three", "Line four", "Line five", "Line six"}
	chunks, err := newChunker(4, 2).Chunk(testDoc, strings.Join(lines, "\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	for _, line := range lines {
		found := false
		for _, c := range chunks {
			if strings.Contains(c.Text, line) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("line %q not in any chunk", line)
		}
	}

	for i := 0; i < len(chunks)-1; i++ {
		if chunks[i+1].StartLine > chunks[i].EndLine+1 {
			t.Errorf("gap between chunk %d (ends %d) and %d (starts %d)", i, chunks[i].EndLine, i+1, chunks[i+1].StartLine)
		}
	}

	tail := 0
	for _, c := range chunks {
		if c.EndLine == len(lines) {
			tail++
		}
	}
	if tail != 1 {
		t.Errorf("%d chunks end on the last line, want 1", tail)
	}
}

func TestLineChunkerEmptyContent(t *testing.T) {
	chunks, err := newChunker(50, 10).Chunk(testDoc, "  \n")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestLineChunkerOversizedLine(t *testing.T) {
	content := "This is a very long line with many many words that will exceed the token limit"
	chunks, err := newChunker(5, 0).Chunk(testDoc, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Text != content {
		t.Fatalf("oversized line should be a single chunk, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 1 {
		t.Errorf("expected lines 1-1, got %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestLineChunkerPrefersBlankLines(t *testing.T) {
	content := strings.Join([]string{
		"func a() {",
		"\tx := 1",
		"}",
		"",
		"func b() {",
		"\ty := 2",
		"\tz := 3",
		"}",
	}, "\n")

	chunks, err := newChunker(12, 0).Chunk(testDoc, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 4 {
		t.Errorf("first chunk lines = %d-%d, want 1-4", chunks[0].StartLine, chunks[0].EndLine)
	}
	if !strings.HasPrefix(chunks[1].Text, "func b() {") || chunks[1].EndLine != 8 {
		t.Errorf("second chunk = %d-%d %q", chunks[1].StartLine, chunks[1].EndLine, chunks[1].Text)
	}
}

func TestLineChunkerHardCutWithoutBlankLines(t *testing.T) {
	content := "aaaa\nbbbb\ncccc\ndddd\neeee"
	chunks, err := newChunker(2, 0).Chunk(testDoc, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "aaaa\nbbbb" || chunks[2].Text != "eeee" {
		t.Errorf("chunks = %q, %q", chunks[0].Text, chunks[2].Text)
	}
}

func TestChunkIDUniqueness(t *testing.T) {
	content := "Line1\nLine2\nLine3\nLine4\nLine5\nLine6\nLine7\nLine8"
	chunks, err := newChunker(3, 1).Chunk(testDoc, content)
	if err != nil {
		t.Fatal(err)
	}

	ids := make(map[string]bool)
	for _, c := range chunks {
		if ids[c.ID] {
			t.Errorf("duplicate chunk ID: %s", c.ID)
		}
		ids[c.ID] = true
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
