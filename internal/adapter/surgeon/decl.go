package surgeon

import (
	"strings"

	"ctxopt/internal/domain"
)

// Kind is the category of a top-level declaration.
type Kind int

const (
	KindFunction Kind = iota
	KindMethod
	KindClass
	KindStruct
	KindInterface
	KindTypeAlias
	KindEnum
	KindImport
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindTypeAlias:
		return "type"
	case KindEnum:
		return "enum"
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	default:
		return "unknown"
	}
}

// Declaration is one extracted construct, already rendered in the forms the
// extraction modes need. Backends fill only the fields relevant to Kind.
type Declaration struct {
	Kind     Kind
	Name     string
	Line     int
	Exported bool

	// Signature is the single-line form of a function or method, or the
	// header line of a class.
	Signature string
	// Members are the method signatures of a class.
	Members []string
	// Block wraps Members in braces after Signature.
	Block bool
	// TypeText is the multi-line types_only rendering.
	TypeText string
	// Source is the verbatim text of an import or export.
	Source string
	// Items is the number of modules an import brings in (Go import
	// blocks hold several).
	Items int
}

func (d Declaration) isType() bool {
	switch d.Kind {
	case KindInterface, KindTypeAlias, KindEnum, KindStruct:
		return true
	}
	return false
}

// render turns declarations into the text for mode. ModeFull never reaches
// here.
func render(decls []Declaration, mode domain.ExtractionMode) string {
	var blocks []string
	for _, d := range decls {
		switch mode {
		case domain.ModeSignatures:
			if b := renderSignature(d); b != "" {
				blocks = append(blocks, b)
			}
		case domain.ModeTypesOnly:
			if d.isType() && d.TypeText != "" {
				blocks = append(blocks, d.TypeText)
			}
		case domain.ModeImportsOnly:
			if d.Kind == KindImport && d.Source != "" {
				blocks = append(blocks, d.Source)
			}
		case domain.ModeExportsOnly:
			if d.Kind == KindExport && d.Source != "" {
				blocks = append(blocks, d.Source)
			}
		}
	}
	return strings.Join(blocks, "\n")
}

func renderSignature(d Declaration) string {
	switch d.Kind {
	case KindFunction, KindMethod:
		return d.Signature
	case KindClass:
		if !d.Block {
			return d.Signature
		}
		var b strings.Builder
		b.WriteString(d.Signature)
		for _, m := range d.Members {
			b.WriteString("\n  ")
			b.WriteString(m)
		}
		b.WriteString("\n}")
		return b.String()
	case KindInterface, KindTypeAlias, KindEnum, KindStruct:
		return d.TypeText
	}
	return ""
}

// count fills the declaration counters of an ExtractionResult.
func count(decls []Declaration, res *domain.ExtractionResult) {
	for _, d := range decls {
		switch d.Kind {
		case KindFunction, KindMethod:
			res.FunctionCount++
		case KindClass, KindStruct:
			res.ClassCount++
			res.FunctionCount += len(d.Members)
		case KindInterface, KindTypeAlias, KindEnum:
			res.TypeCount++
		case KindImport:
			if d.Items > 0 {
				res.ImportCount += d.Items
			} else {
				res.ImportCount++
			}
		}
	}
}

// oneLine collapses runs of whitespace into single spaces.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "( ", "(")
	s = strings.ReplaceAll(s, ", )", ")")
	s = strings.ReplaceAll(s, ",)", ")")
	return strings.ReplaceAll(s, " )", ")")
}

// firstLine returns the first line of s without trailing whitespace.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " \t\r")
}
