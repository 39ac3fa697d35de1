package chunker

import (
	"fmt"
	"sort"
	"strings"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

var _ port.Chunker = (*DeclChunker)(nil)

// DeclChunker cuts a document at top-level declarations so that a chunk
// holds one function, type or class together with its leading comments
// and annotations.
// Declarations over maxTokens are split with a LineChunker; documents in
// languages the surgeon cannot read are chunked by lines only.
type DeclChunker struct {
	surgeon   *surgeon.Surgeon
	comments  *analyzer.CommentExtractor
	fallback  *LineChunker
	tokenizer port.Tokenizer
	maxTokens int
}

func NewDeclChunker(maxTokens, overlap int, tokenizer port.Tokenizer, s *surgeon.Surgeon) *DeclChunker {
	return &DeclChunker{
		surgeon:   s,
		comments:  analyzer.NewCommentExtractor(),
		fallback:  NewLineChunker(maxTokens, overlap, tokenizer),
		tokenizer: tokenizer,
		maxTokens: maxTokens,
	}
}

// unit is a line range [start, end) of the document, 0-based.
type unit struct {
	kind  string
	name  string
	start int
	end   int
}

func (c *DeclChunker) Chunk(doc domain.Document, content string) ([]domain.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lang := surgeon.ParseLanguage(doc.Lang)
	if lang == surgeon.LangUnknown {
		return c.fallback.Chunk(doc, content)
	}

	lines := strings.Split(content, "\n")
	units := c.units(lang, content, lines)
	if len(units) == 0 {
		return c.fallback.Chunk(doc, content)
	}

	var chunks []domain.Chunk
	for _, u := range units {
		text := strings.Join(lines[u.start:u.end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if c.tokenizer.CountTokens(text) <= c.maxTokens {
			chunks = append(chunks, domain.Chunk{
				ID:        chunkID(doc.ID, fmt.Sprintf("%s:%s:%d", u.kind, u.name, u.start+1)),
				DocID:     doc.ID,
				StartLine: u.start + 1,
				EndLine:   u.end,
				Tokens:    c.tokenizer.Tokenize(text),
				Text:      text,
			})
			continue
		}

		chunks = append(chunks, c.fallback.span(doc.ID, lines[u.start:u.end], u.start)...)
	}
	return chunks, nil
}

// units turns declaration start lines into contiguous ranges covering the
// whole document. Text before the first declaration (package clause,
// imports) forms its own unit.
func (c *DeclChunker) units(lang surgeon.Language, content string, lines []string) []unit {
	decls := c.surgeon.Declarations(lang, content)
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].Line < decls[j].Line })

	// comment end line -> start line, both 1-based
	endAt := make(map[int]int)
	for _, b := range c.comments.Extract(content, lang.String()) {
		if b.Type != analyzer.CommentDocstring {
			endAt[b.EndLine] = b.StartLine
		}
	}

	var starts []unit
	last := -1
	for _, d := range decls {
		if d.Kind == surgeon.KindImport || d.Line < 1 || d.Line > len(lines) {
			continue
		}
		start := leadingComment(lines, d.Line-1, endAt)
		if start <= last {
			continue
		}
		last = start
		starts = append(starts, unit{kind: d.Kind.String(), name: d.Name, start: start})
	}
	if len(starts) == 0 {
		return nil
	}

	units := make([]unit, 0, len(starts)+1)
	if starts[0].start > 0 {
		units = append(units, unit{kind: "header", start: 0, end: starts[0].start})
	}
	for i, u := range starts {
		u.end = len(lines)
		if i+1 < len(starts) {
			u.end = starts[i+1].start
		}
		units = append(units, u)
	}
	return units
}

// leadingComment moves the 0-based line up over the comment blocks and
// annotation lines directly above it.
func leadingComment(lines []string, line int, endAt map[int]int) int {
	for line > 0 {
		if start, ok := endAt[line]; ok {
			line = start - 1
			continue
		}
		prev := strings.TrimSpace(lines[line-1])
		if !strings.HasPrefix(prev, "@") && !strings.HasPrefix(prev, "#[") {
			break
		}
		line--
	}
	return line
}
