// Package surgeon reduces source files to their structural surface:
// signatures, type declarations, imports or exports.
package surgeon

import (
	"strings"

	"ctxopt/internal/domain"
)

// backend enumerates the top-level declarations of one language. It must
// not fail: constructs it cannot read are left out.
type backend interface {
	declarations(source string) []Declaration
}

// Surgeon dispatches extraction to a per-language backend.
type Surgeon struct {
	backends map[Language]backend
	fallback backend
}

// New creates a Surgeon with every built-in backend registered.
func New() *Surgeon {
	s := &Surgeon{
		backends: map[Language]backend{
			LangGo: goBackend{},
		},
		fallback: newPatternBackend(genericPatterns()),
	}
	registerScriptBackends(s)
	registerGrammarBackends(s)
	return s
}

// Extract reduces source according to mode. It never fails; malformed
// input yields a smaller result.
func (s *Surgeon) Extract(lang Language, source string, mode domain.ExtractionMode) string {
	if mode == domain.ModeFull {
		return source
	}
	return render(s.declarations(lang, source), mode)
}

// ExtractFile is Extract with the language detected from path.
func (s *Surgeon) ExtractFile(path, source string, mode domain.ExtractionMode) string {
	return s.Extract(DetectLanguage(path), source, mode)
}

// ExtractResult extracts and reports declaration counts in one pass.
func (s *Surgeon) ExtractResult(lang Language, source string, mode domain.ExtractionMode) domain.ExtractionResult {
	decls := s.declarations(lang, source)
	res := domain.ExtractionResult{
		Content:   source,
		LineCount: lineCount(source),
	}
	if mode != domain.ModeFull {
		res.Content = render(decls, mode)
	}
	count(decls, &res)
	return res
}

// Analyze reports the structure of source without reducing it.
func (s *Surgeon) Analyze(lang Language, source string) domain.ExtractionResult {
	return s.ExtractResult(lang, source, domain.ModeFull)
}

// Declarations exposes the raw declaration list, mainly for reporting.
func (s *Surgeon) Declarations(lang Language, source string) []Declaration {
	return s.declarations(lang, source)
}

func (s *Surgeon) declarations(lang Language, source string) (decls []Declaration) {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	b, ok := s.backends[lang]
	if !ok {
		b = s.fallback
	}
	defer func() {
		if recover() != nil {
			decls = nil
		}
	}()
	return b.declarations(source)
}

// collect appends the declaration produced by fn when it reports ok.
// A panicking extractor counts as a failed construct.
func collect(decls []Declaration, fn func() (Declaration, bool)) []Declaration {
	d, ok := safely(fn)
	if !ok {
		return decls
	}
	return append(decls, d)
}

func safely(fn func() (Declaration, bool)) (d Declaration, ok bool) {
	defer func() {
		if recover() != nil {
			d, ok = Declaration{}, false
		}
	}()
	return fn()
}

func lineCount(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}
