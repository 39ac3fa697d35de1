package surgeon

import (
	"regexp"
	"strings"
)

// patternSet is a line-oriented approximation of a language grammar, used
// where no parser is available.
type patternSet struct {
	imports   []*regexp.Regexp
	exports   []*regexp.Regexp
	functions []*regexp.Regexp
	classes   []*regexp.Regexp
	types     []*regexp.Regexp
	// indentMethods marks indented functions as methods (Python).
	indentMethods bool
}

type patternBackend struct {
	patterns patternSet
}

func newPatternBackend(p patternSet) patternBackend {
	return patternBackend{patterns: p}
}

func (b patternBackend) declarations(source string) []Declaration {
	lines := strings.Split(source, "\n")
	var decls []Declaration

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1
		skip := i

		switch {
		case matchAny(b.patterns.imports, line):
			text, end := joinStatement(lines, i)
			decls = append(decls, Declaration{Kind: KindImport, Line: lineNo, Source: text})
			i = end
			continue
		case matchAny(b.patterns.types, line):
			text, end := captureBlock(lines, i)
			decls = append(decls, Declaration{Kind: patternTypeKind(line), Line: lineNo, TypeText: text})
			skip = end
		case matchAny(b.patterns.classes, line):
			decls = append(decls, Declaration{Kind: KindClass, Line: lineNo, Signature: trimOpener(line)})
		case matchAny(b.patterns.functions, line):
			sig, _ := joinSignature(lines, i)
			kind := KindFunction
			if b.patterns.indentMethods && indented(line) {
				kind = KindMethod
			}
			decls = append(decls, Declaration{Kind: kind, Line: lineNo, Signature: sig})
		}

		if matchAny(b.patterns.exports, line) {
			decls = append(decls, Declaration{Kind: KindExport, Line: lineNo, Exported: true, Source: line})
		}
		i = skip
	}
	return decls
}

func matchAny(res []*regexp.Regexp, line string) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func indented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func patternTypeKind(line string) Kind {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.Contains(trimmed, "interface ") || strings.Contains(trimmed, "trait "):
		return KindInterface
	case strings.Contains(trimmed, "enum "):
		return KindEnum
	case strings.Contains(trimmed, "struct "):
		return KindStruct
	default:
		return KindTypeAlias
	}
}

// trimOpener drops a trailing block opener ("{" or ":") from a header line.
func trimOpener(line string) string {
	line = strings.TrimRight(line, " \t")
	line = strings.TrimSuffix(line, "{")
	line = strings.TrimSuffix(line, ":")
	return strings.TrimRight(line, " \t")
}

// joinSignature joins continuation lines until parentheses balance, so a
// parameter list split over several lines becomes one signature line.
func joinSignature(lines []string, start int) (string, int) {
	indent := lines[start][:len(lines[start])-len(strings.TrimLeft(lines[start], " \t"))]
	var parts []string
	depth := 0
	end := start
	for j := start; j < len(lines) && j < start+20; j++ {
		part := lines[j]
		depth += strings.Count(part, "(") - strings.Count(part, ")")
		parts = append(parts, part)
		end = j
		if depth <= 0 {
			break
		}
	}
	if depth > 0 {
		return trimOpener(strings.TrimRight(lines[start], " \t\r")), start
	}
	return indent + trimOpener(oneLine(strings.Join(parts, " "))), end
}

// joinStatement returns an import statement, following multi-line forms
// such as `from x import (` ... `)` or `import {` ... `} from 'y'`.
func joinStatement(lines []string, start int) (string, int) {
	first := lines[start]
	opens := strings.Count(first, "(") + strings.Count(first, "{")
	closes := strings.Count(first, ")") + strings.Count(first, "}")
	if opens <= closes {
		return strings.TrimRight(first, " \t\r"), start
	}
	depth := opens - closes
	for j := start + 1; j < len(lines) && j < start+50; j++ {
		depth += strings.Count(lines[j], "(") + strings.Count(lines[j], "{")
		depth -= strings.Count(lines[j], ")") + strings.Count(lines[j], "}")
		if depth <= 0 {
			return strings.TrimRight(strings.Join(lines[start:j+1], "\n"), " \t\r"), j
		}
	}
	return strings.TrimRight(first, " \t\r"), start
}

// captureBlock returns the lines of a brace-delimited declaration starting
// at start, or just the first line when it has no block.
func captureBlock(lines []string, start int) (string, int) {
	first := strings.TrimRight(lines[start], " \t\r")
	if !strings.Contains(first, "{") {
		return first, start
	}
	depth := 0
	for j := start; j < len(lines) && j < start+200; j++ {
		depth += strings.Count(lines[j], "{") - strings.Count(lines[j], "}")
		if depth <= 0 {
			block := lines[start : j+1]
			out := make([]string, len(block))
			for k, l := range block {
				out[k] = strings.TrimRight(l, " \t\r")
			}
			return strings.Join(out, "\n"), j
		}
	}
	return first, start
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func pythonPatterns() patternSet {
	return patternSet{
		imports:       compile(`^\s*import\s+\S`, `^\s*from\s+\S+\s+import\s`),
		exports:       compile(`^__all__\s*=`),
		functions:     compile(`^\s*(async\s+)?def\s+\w+\s*\(`),
		classes:       compile(`^\s*class\s+\w+`),
		indentMethods: true,
	}
}

func rustPatterns() patternSet {
	return patternSet{
		imports:   compile(`^\s*(pub\s+)?use\s+\S`, `^\s*extern\s+crate\s`),
		exports:   compile(`^pub(\([\w:]+\))?\s+(fn|struct|enum|trait|type|const|static|mod|use)\b`),
		functions: compile(`^\s*(pub(\([\w:]+\))?\s+)?(const\s+)?(async\s+)?(unsafe\s+)?(extern\s+"\w+"\s+)?fn\s+\w+`),
		classes:   compile(`^\s*(pub(\([\w:]+\))?\s+)?impl\b`),
		types:     compile(`^\s*(pub(\([\w:]+\))?\s+)?(struct|enum|trait|type)\s+\w+`),
	}
}

func javaPatterns() patternSet {
	return patternSet{
		imports:   compile(`^\s*import\s+[\w.*]+;`, `^\s*package\s+[\w.]+;`),
		exports:   compile(`^\s*public\s+(abstract\s+|final\s+|static\s+)*(class|interface|enum|record)\s+\w+`),
		functions: compile(`^\s+((public|protected|private|static|final|abstract|synchronized|default)\s+)+[\w<>\[\],.? ]+\s+\w+\s*\([^;]*$`),
		classes:   compile(`^\s*(public\s+|protected\s+|private\s+)?(abstract\s+|final\s+|static\s+)*(class|record)\s+\w+`),
		types:     compile(`^\s*(public\s+|protected\s+|private\s+)?(static\s+)?(interface|enum)\s+\w+`),
	}
}

// scriptPatterns approximates TypeScript and JavaScript when the
// tree-sitter backend is not compiled in.
func scriptPatterns() patternSet {
	return patternSet{
		imports:   compile(`^\s*import\s`),
		exports:   compile(`^\s*export\s`),
		functions: compile(`^\s*(export\s+)?(default\s+)?(declare\s+)?(async\s+)?function\b`, `^\s*(export\s+)?(const|let)\s+\w+\s*=\s*(async\s+)?(\([^)]*\)|\w+)\s*(:\s*[^=]+)?=>`),
		classes:   compile(`^\s*(export\s+)?(default\s+)?(declare\s+)?(abstract\s+)?class\s+\w+`),
		types:     compile(`^\s*(export\s+)?(declare\s+)?(interface|type|enum|const\s+enum)\s+\w+`),
	}
}

func genericPatterns() patternSet {
	return patternSet{
		imports:   compile(`^\s*(import|from|use|require|using)\s+\S`, `^\s*#include\s`),
		functions: compile(`^\s*(def|func|function|fn|sub|proc)\s+\w+`),
		classes:   compile(`^\s*(class|module)\s+\w+`),
	}
}
