package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentExtractor_MergesLineComments(t *testing.T) {
	src := `package a

// Open opens the store.
//
// It creates the file when missing.
func Open() {}

x := 1 // trailing comments are not blocks
`
	blocks := NewCommentExtractor().Extract(src, "go")
	require.Len(t, blocks, 1)
	assert.Equal(t, CommentBlock{
		Text:      "Open opens the store.\n\nIt creates the file when missing.",
		StartLine: 3,
		EndLine:   5,
		Type:      CommentLine,
	}, blocks[0])
}

func TestCommentExtractor_Blocks(t *testing.T) {
	src := "/* one */\nint x;\n/*\n * two\n */\n"
	blocks := NewCommentExtractor().Extract(src, "c")
	require.Len(t, blocks, 2)
	assert.Equal(t, 1, blocks[0].EndLine)
	assert.Equal(t, CommentBlockType, blocks[1].Type)
	assert.Equal(t, 3, blocks[1].StartLine)
	assert.Equal(t, 5, blocks[1].EndLine)
}

func TestCommentExtractor_Python(t *testing.T) {
	src := `#!/usr/bin/env python
"""Module doc."""

# Load the config.
def load():
    """
    Reads config.yaml.
    """
`
	blocks := NewCommentExtractor().Extract(src, "python")
	require.Len(t, blocks, 4)
	assert.Equal(t, "/usr/bin/env python", blocks[0].Text)
	assert.Equal(t, CommentDocstring, blocks[1].Type)
	assert.Equal(t, CommentLine, blocks[2].Type)
	assert.Equal(t, 4, blocks[2].StartLine)
	assert.Equal(t, CommentDocstring, blocks[3].Type)
	assert.Equal(t, 6, blocks[3].StartLine)
	assert.Equal(t, 8, blocks[3].EndLine)
}

func TestCommentExtractor_UnknownLanguageUsesSlashes(t *testing.T) {
	blocks := NewCommentExtractor().Extract("# not a comment\n// a comment", "kotlin")
	require.Len(t, blocks, 1)
	assert.Equal(t, 2, blocks[0].StartLine)
}

func TestCommentExtractor_Unterminated(t *testing.T) {
	blocks := NewCommentExtractor().Extract("code()\n/* open\nstill open", "go")
	require.Len(t, blocks, 1)
	assert.Equal(t, 2, blocks[0].StartLine)
	assert.Equal(t, 3, blocks[0].EndLine)
}
