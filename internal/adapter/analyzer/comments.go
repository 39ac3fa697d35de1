package analyzer

import "strings"

// Comment block types.
const (
	CommentLine      = "line"
	CommentBlockType = "block"
	CommentDocstring = "docstring"
)

// CommentBlock is a run of comment lines. Consecutive line comments are
// merged into one block. Lines are 1-based and inclusive.
type CommentBlock struct {
	Text      string
	StartLine int
	EndLine   int
	Type      string
}

type delimiters struct {
	open, close string
	kind        string
}

type commentStyle struct {
	line   string
	blocks []delimiters
}

var (
	slashStyle = commentStyle{
		line:   "//",
		blocks: []delimiters{{"/*", "*/", CommentBlockType}},
	}
	hashStyle = commentStyle{line: "#"}
)

// CommentExtractor finds comments that start a line. It does not lex
// string literals, so a comment marker inside a multi-line string that
// begins a line is taken as a comment.
type CommentExtractor struct {
	styles map[string]commentStyle
}

func NewCommentExtractor() *CommentExtractor {
	return &CommentExtractor{
		styles: map[string]commentStyle{
			"go":         slashStyle,
			"typescript": slashStyle,
			"tsx":        slashStyle,
			"javascript": slashStyle,
			"java":       slashStyle,
			"rust":       slashStyle,
			"c":          slashStyle,
			"cpp":        slashStyle,
			"python": {
				line: "#",
				blocks: []delimiters{
					{`"""`, `"""`, CommentDocstring},
					{`'''`, `'''`, CommentDocstring},
				},
			},
			"ruby": {
				line:   "#",
				blocks: []delimiters{{"=begin", "=end", CommentBlockType}},
			},
			"shell": hashStyle,
		},
	}
}

// Extract returns the comments of content in line order. Unknown
// languages use // and /* */ comments.
func (e *CommentExtractor) Extract(content, lang string) []CommentBlock {
	style, ok := e.styles[strings.ToLower(lang)]
	if !ok {
		style = slashStyle
	}

	var (
		out   []CommentBlock
		open  *delimiters
		block []string
		start int
	)
	for i, raw := range strings.Split(content, "\n") {
		n := i + 1
		line := strings.TrimSpace(raw)

		if open != nil {
			block = append(block, line)
			if strings.Contains(line, open.close) {
				out = append(out, CommentBlock{Text: strings.Join(block, "\n"), StartLine: start, EndLine: n, Type: open.kind})
				open, block = nil, nil
			}
			continue
		}

		if d := style.opening(line); d != nil {
			if strings.Contains(line[len(d.open):], d.close) {
				out = append(out, CommentBlock{Text: line, StartLine: n, EndLine: n, Type: d.kind})
				continue
			}
			open, block, start = d, []string{line}, n
			continue
		}

		if !strings.HasPrefix(line, style.line) {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(line, style.line[:1]+"!"))
		if k := len(out) - 1; k >= 0 && out[k].Type == CommentLine && out[k].EndLine == n-1 {
			out[k].Text += "\n" + text
			out[k].EndLine = n
			continue
		}
		out = append(out, CommentBlock{Text: text, StartLine: n, EndLine: n, Type: CommentLine})
	}

	// An unterminated block runs to the end of the content.
	if open != nil {
		out = append(out, CommentBlock{Text: strings.Join(block, "\n"), StartLine: start, EndLine: start + len(block) - 1, Type: open.kind})
	}
	return out
}

func (s commentStyle) opening(line string) *delimiters {
	for i := range s.blocks {
		if strings.HasPrefix(line, s.blocks[i].open) {
			return &s.blocks[i]
		}
	}
	return nil
}
