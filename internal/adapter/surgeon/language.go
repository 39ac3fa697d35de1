package surgeon

import (
	"path/filepath"
	"strings"
)

// Language selects the parsing backend.
type Language int

const (
	LangUnknown Language = iota
	LangGo
	LangTypeScript
	LangTSX
	LangJavaScript
	LangPython
	LangRust
	LangJava
)

func (l Language) String() string {
	switch l {
	case LangGo:
		return "go"
	case LangTypeScript:
		return "typescript"
	case LangTSX:
		return "tsx"
	case LangJavaScript:
		return "javascript"
	case LangPython:
		return "python"
	case LangRust:
		return "rust"
	case LangJava:
		return "java"
	default:
		return "unknown"
	}
}

var extLanguages = map[string]Language{
	".go":   LangGo,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".py":   LangPython,
	".pyi":  LangPython,
	".rs":   LangRust,
	".java": LangJava,
}

// DetectLanguage maps a file path to a language by extension.
func DetectLanguage(path string) Language {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// ParseLanguage maps a language name (as returned by String) back.
func ParseLanguage(name string) Language {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "go", "golang":
		return LangGo
	case "typescript", "ts":
		return LangTypeScript
	case "tsx":
		return LangTSX
	case "javascript", "js", "jsx":
		return LangJavaScript
	case "python", "py":
		return LangPython
	case "rust", "rs":
		return LangRust
	case "java":
		return LangJava
	}
	return LangUnknown
}
