package surgeon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxopt/internal/domain"
)

const goSource = `package shapes

import (
	"fmt"
	"math"
)

// Shape is anything with an area.
type Shape interface {
	Area() float64
}

type Circle struct {
	R float64
}

type Color int

const (
	Red Color = iota
	Green
)

func (c *Circle) Area() float64 {
	return math.Pi * c.R * c.R
}

func describe(s Shape) string {
	return fmt.Sprintf("%.2f", s.Area())
}
`

const pythonSource = `import os
from typing import (
    List,
    Optional,
)

class Greeter(Base):
    def __init__(self, name):
        self.name = name

    async def greet(self,
                    loud: bool = False) -> str:
        return "hi"

def main():
    pass
`

const rustSource = `use std::fmt;

pub struct Point {
    x: i32,
}

impl Point {
    pub fn new(x: i32) -> Self {
        Point { x }
    }
}
`

func TestExtractFullIsIdentity(t *testing.T) {
	s := New()
	inputs := []string{"", goSource, pythonSource, "not code at all {{{", "\x00\x01"}
	for _, lang := range []Language{LangGo, LangPython, LangRust, LangTypeScript, LangUnknown} {
		for _, in := range inputs {
			assert.Equal(t, in, s.Extract(lang, in, domain.ModeFull))
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	s := New()
	for _, mode := range domain.Modes() {
		for _, src := range []string{goSource, pythonSource, rustSource} {
			first := s.Extract(LangGo, src, mode)
			assert.Equal(t, first, s.Extract(LangGo, src, mode), "mode %s", mode)
		}
	}
}

func TestGoSignatures(t *testing.T) {
	out := New().Extract(LangGo, goSource, domain.ModeSignatures)

	assert.Contains(t, out, "func (c *Circle) Area() float64")
	assert.Contains(t, out, "func describe(s Shape) string")
	assert.Contains(t, out, "type Shape interface {")
	assert.Contains(t, out, "type Circle struct {")
	assert.NotContains(t, out, "math.Pi")
	assert.NotContains(t, out, "Sprintf")
	assert.NotContains(t, out, "import")
	assert.Less(t, len(out), len(goSource))
}

func TestGoTypesOnly(t *testing.T) {
	out := New().Extract(LangGo, goSource, domain.ModeTypesOnly)

	assert.Contains(t, out, "type Shape interface {")
	assert.Contains(t, out, "Area() float64")
	assert.Contains(t, out, "Red Color = iota")
	assert.NotContains(t, out, "func ")
}

func TestGoImportsAndExports(t *testing.T) {
	s := New()

	imports := s.Extract(LangGo, goSource, domain.ModeImportsOnly)
	assert.Equal(t, "import (\n\t\"fmt\"\n\t\"math\"\n)", imports)

	exports := s.Extract(LangGo, goSource, domain.ModeExportsOnly)
	lines := strings.Split(exports, "\n")
	assert.Contains(t, lines, "type Shape interface {")
	assert.Contains(t, lines, "type Circle struct {")
	assert.Contains(t, lines, "func (c *Circle) Area() float64 {")
	assert.Contains(t, lines, "\tRed Color = iota")
	assert.NotContains(t, exports, "describe")
}

func TestGoFragmentWithoutPackage(t *testing.T) {
	src := "func Add(a, b int) int {\n\treturn a + b\n}\n"
	decls := New().Declarations(LangGo, src)

	require.NotEmpty(t, decls)
	assert.Equal(t, KindFunction, decls[0].Kind)
	assert.Equal(t, "Add", decls[0].Name)
	assert.Equal(t, 1, decls[0].Line)
	assert.Equal(t, "func Add(a, b int) int", decls[0].Signature)
}

func TestAnalyzeGo(t *testing.T) {
	res := New().Analyze(LangGo, goSource)

	assert.Equal(t, goSource, res.Content)
	assert.Equal(t, 2, res.ImportCount)
	assert.Equal(t, 2, res.FunctionCount)
	assert.Equal(t, 1, res.ClassCount)
	assert.Equal(t, 3, res.TypeCount)
	assert.Equal(t, strings.Count(goSource, "\n"), res.LineCount)
}

func TestMalformedInputDegrades(t *testing.T) {
	s := New()
	broken := []string{
		"func broken( {\n",
		"package x\n\nfunc ok() int { return 1 }\n\nfunc bad( {\n",
		"class {{{{ def (",
		"}}}}))))",
	}
	for _, lang := range []Language{LangGo, LangPython, LangRust, LangJava, LangTypeScript, LangJavaScript, LangUnknown} {
		for _, src := range broken {
			for _, mode := range domain.Modes() {
				assert.NotPanics(t, func() { s.Extract(lang, src, mode) })
			}
		}
	}
}

func TestPythonSignatures(t *testing.T) {
	out := New().Extract(LangPython, pythonSource, domain.ModeSignatures)

	assert.Equal(t, strings.Join([]string{
		"class Greeter(Base)",
		"    def __init__(self, name)",
		"    async def greet(self, loud: bool = False) -> str",
		"def main()",
	}, "\n"), out)
}

func TestPythonAnalyze(t *testing.T) {
	res := New().Analyze(LangPython, pythonSource)

	assert.Equal(t, 3, res.FunctionCount)
	assert.Equal(t, 1, res.ClassCount)
	assert.Equal(t, 2, res.ImportCount)

	imports := New().Extract(LangPython, pythonSource, domain.ModeImportsOnly)
	assert.Equal(t, "import os\nfrom typing import (\n    List,\n    Optional,\n)", imports)
}

func TestRustDeclarations(t *testing.T) {
	s := New()

	types := s.Extract(LangRust, rustSource, domain.ModeTypesOnly)
	assert.Equal(t, "pub struct Point {\n    x: i32,\n}", types)

	sigs := s.Extract(LangRust, rustSource, domain.ModeSignatures)
	assert.Contains(t, sigs, "impl Point")
	assert.Contains(t, sigs, "    pub fn new(x: i32) -> Self")
	assert.NotContains(t, sigs, "Point { x }")

	exports := s.Extract(LangRust, rustSource, domain.ModeExportsOnly)
	assert.Equal(t, "pub struct Point {", exports)
}

func TestExtractFileDetectsLanguage(t *testing.T) {
	s := New()
	assert.Equal(t,
		s.Extract(LangPython, pythonSource, domain.ModeSignatures),
		s.ExtractFile("pkg/greeter.py", pythonSource, domain.ModeSignatures))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.go", LangGo},
		{"src/App.TSX", LangTSX},
		{"lib/foo.ts", LangTypeScript},
		{"index.mjs", LangJavaScript},
		{"tool.py", LangPython},
		{"lib.rs", LangRust},
		{"Main.java", LangJava},
		{"README", LangUnknown},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	assert.Equal(t, LangTypeScript, ParseLanguage("ts"))
	assert.Equal(t, LangUnknown, ParseLanguage("cobol"))
}

func TestGenericFallback(t *testing.T) {
	src := "require 'json'\n\ndef parse(input)\n  JSON.parse(input)\nend\n"
	s := New()
	assert.Equal(t, "def parse(input)", s.Extract(LangUnknown, src, domain.ModeSignatures))
	assert.Equal(t, "require 'json'", s.Extract(LangUnknown, src, domain.ModeImportsOnly))
}
