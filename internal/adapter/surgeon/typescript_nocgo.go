//go:build !cgo

package surgeon

func registerScriptBackends(s *Surgeon) {
	script := newPatternBackend(scriptPatterns())
	s.backends[LangTypeScript] = script
	s.backends[LangTSX] = script
	s.backends[LangJavaScript] = script
}
