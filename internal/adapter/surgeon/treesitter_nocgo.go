//go:build !cgo

package surgeon

func registerGrammarBackends(s *Surgeon) {
	s.backends[LangPython] = newPatternBackend(pythonPatterns())
	s.backends[LangRust] = newPatternBackend(rustPatterns())
	s.backends[LangJava] = newPatternBackend(javaPatterns())
}
