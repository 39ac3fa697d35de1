package chunker

import (
	"strings"
	"testing"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
)

const authSource = `package auth

import "errors"

// Login checks credentials.
func Login(user, pass string) error {
	if user == "" {
		return errors.New("empty user")
	}
	return nil
}

// Session is a logged-in user.
type Session struct {
	User string
}`

func newDeclChunker(maxTokens int) *DeclChunker {
	tok := analyzer.NewTokenizer(analyzer.NewEstimator(0))
	return NewDeclChunker(maxTokens, 0, tok, surgeon.New())
}

func TestDeclChunkerSplitsAtDeclarations(t *testing.T) {
	doc := domain.Document{ID: "auth", Path: "auth/login.go", Lang: "go"}
	chunks, err := newDeclChunker(500).Chunk(doc, authSource)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected header, func and type chunks, got %d", len(chunks))
	}

	if !strings.HasPrefix(chunks[0].Text, "package auth") {
		t.Errorf("header chunk = %q", chunks[0].Text)
	}
	login := chunks[1]
	if login.StartLine != 5 || login.EndLine != 12 {
		t.Errorf("login chunk lines = %d-%d", login.StartLine, login.EndLine)
	}
	if !strings.HasPrefix(login.Text, "// Login checks") || !strings.Contains(login.Text, "func Login") {
		t.Errorf("login chunk = %q", login.Text)
	}
	if !strings.Contains(chunks[2].Text, "type Session struct") {
		t.Errorf("type chunk = %q", chunks[2].Text)
	}
	if chunks[2].EndLine != 16 {
		t.Errorf("last chunk should end at the last line, got %d", chunks[2].EndLine)
	}

	seen := map[string]bool{}
	for _, c := range chunks {
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestDeclChunkerSplitsLargeDeclarations(t *testing.T) {
	var b strings.Builder
	b.WriteString("package big\n\nfunc Big() {\n")
	for i := 0; i < 40; i++ {
		b.WriteString("\tstep(\"a fairly long argument to make the line heavy\")\n")
	}
	b.WriteString("}\n")

	doc := domain.Document{ID: "big", Path: "big.go", Lang: "go"}
	chunks, err := newDeclChunker(60).Chunk(doc, b.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected the function to be split, got %d chunks", len(chunks))
	}
	seen := map[string]bool{}
	for _, c := range chunks[1:] {
		if c.StartLine < 3 || c.EndLine < c.StartLine {
			t.Errorf("chunk lines %d-%d outside the function", c.StartLine, c.EndLine)
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestDeclChunkerFallsBackToLines(t *testing.T) {
	doc := domain.Document{ID: "notes", Path: "notes.txt"}
	content := "first line\nsecond line\nthird line"

	got, err := newDeclChunker(500).Chunk(doc, content)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := newChunker(500, 0).Chunk(doc, content)
	if len(got) != len(want) || got[0].Text != want[0].Text {
		t.Errorf("fallback chunks = %+v", got)
	}
}

func TestDeclChunkerKeepsBlockComment(t *testing.T) {
	src := `package auth

/*
Logout ends the session.
It is safe to call twice.
*/
func Logout() {}
`
	doc := domain.Document{ID: "logout", Path: "auth/logout.go", Lang: "go"}
	chunks, err := newDeclChunker(500).Chunk(doc, src)
	if err != nil {
		t.Fatal(err)
	}
	last := chunks[len(chunks)-1]
	if last.StartLine != 3 || !strings.HasPrefix(last.Text, "/*\nLogout ends") {
		t.Errorf("logout chunk starts at %d: %q", last.StartLine, last.Text)
	}
}

func TestDeclChunkerKeepsCommentAboveDecorator(t *testing.T) {
	src := `import functools

# Cached loader.
@functools.lru_cache
def load():
    """Load once."""
    return 1
`
	doc := domain.Document{ID: "loader", Path: "loader.py", Lang: "python"}
	chunks, err := newDeclChunker(500).Chunk(doc, src)
	if err != nil {
		t.Fatal(err)
	}
	last := chunks[len(chunks)-1]
	if last.StartLine != 3 || !strings.Contains(last.Text, "def load") {
		t.Errorf("load chunk starts at %d: %q", last.StartLine, last.Text)
	}
}
