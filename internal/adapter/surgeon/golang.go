package surgeon

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

var packageClause = regexp.MustCompile(`(?m)^package\s+\w+`)

// goBackend reads Go source with go/parser. Fragments without a package
// clause are parsed under a synthetic one so search snippets still work.
type goBackend struct{}

func (goBackend) declarations(source string) []Declaration {
	src, shift := source, 0
	if !packageClause.MatchString(source) {
		src, shift = "package _\n"+source, 1
	}

	fset := token.NewFileSet()
	f, _ := parser.ParseFile(fset, "", src, parser.SkipObjectResolution|parser.AllErrors)
	if f == nil {
		return nil
	}

	g := goFile{fset: fset, src: src, lines: strings.Split(src, "\n"), shift: shift, seen: make(map[int]bool)}
	var decls []Declaration
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			decls = collect(decls, func() (Declaration, bool) { return g.function(d) })
			if goFuncExported(d) {
				decls = collect(decls, func() (Declaration, bool) { return g.export(d.Name.Name, d.Pos()) })
			}
		case *ast.GenDecl:
			decls = append(decls, g.genDecl(d)...)
		}
	}
	return decls
}

type goFile struct {
	fset  *token.FileSet
	src   string
	lines []string
	shift int
	seen  map[int]bool // export lines already emitted
}

func (g *goFile) line(p token.Pos) int {
	return g.fset.Position(p).Line
}

func (g *goFile) text(from, to token.Pos) string {
	start, end := g.fset.Position(from).Offset, g.fset.Position(to).Offset
	if start < 0 || end > len(g.src) || start >= end {
		return ""
	}
	return g.src[start:end]
}

func (g *goFile) function(fn *ast.FuncDecl) (Declaration, bool) {
	if fn.Name == nil || hasBad(fn.Type) || (fn.Recv != nil && hasBad(fn.Recv)) {
		return Declaration{}, false
	}

	sig := *fn
	sig.Body = nil
	sig.Doc = nil
	var buf bytes.Buffer
	if err := format.Node(&buf, g.fset, &sig); err != nil {
		return Declaration{}, false
	}

	d := Declaration{
		Kind:      KindFunction,
		Name:      fn.Name.Name,
		Line:      g.line(fn.Pos()) - g.shift,
		Exported:  goFuncExported(fn),
		Signature: oneLine(buf.String()),
	}
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		d.Kind = KindMethod
		d.Name = receiverName(fn.Recv.List[0].Type) + "." + fn.Name.Name
	}
	return d, true
}

func (g *goFile) genDecl(decl *ast.GenDecl) []Declaration {
	var decls []Declaration

	switch decl.Tok {
	case token.IMPORT:
		decls = collect(decls, func() (Declaration, bool) {
			text := g.text(decl.Pos(), decl.End())
			if text == "" {
				return Declaration{}, false
			}
			return Declaration{
				Kind:   KindImport,
				Line:   g.line(decl.Pos()) - g.shift,
				Source: text,
				Items:  len(decl.Specs),
			}, true
		})

	case token.TYPE:
		for _, spec := range decl.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			decls = collect(decls, func() (Declaration, bool) { return g.typeSpec(ts) })
			if ts.Name != nil && ast.IsExported(ts.Name.Name) {
				decls = collect(decls, func() (Declaration, bool) { return g.export(ts.Name.Name, ts.Pos()) })
			}
		}

	case token.CONST, token.VAR:
		if decl.Tok == token.CONST {
			decls = collect(decls, func() (Declaration, bool) { return g.enum(decl) })
		}
		for _, spec := range decl.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, name := range vs.Names {
				if ast.IsExported(name.Name) {
					decls = collect(decls, func() (Declaration, bool) { return g.export(name.Name, vs.Pos()) })
				}
			}
		}
	}

	return decls
}

func (g *goFile) typeSpec(ts *ast.TypeSpec) (Declaration, bool) {
	if ts.Name == nil || hasBad(ts) {
		return Declaration{}, false
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, g.fset, ts); err != nil {
		return Declaration{}, false
	}

	kind := KindTypeAlias
	switch ts.Type.(type) {
	case *ast.StructType:
		kind = KindStruct
	case *ast.InterfaceType:
		kind = KindInterface
	}
	return Declaration{
		Kind:     kind,
		Name:     ts.Name.Name,
		Line:     g.line(ts.Pos()) - g.shift,
		Exported: ast.IsExported(ts.Name.Name),
		TypeText: "type " + buf.String(),
	}, true
}

// enum treats a const block whose first spec names a type (the iota
// idiom) as an enumeration.
func (g *goFile) enum(decl *ast.GenDecl) (Declaration, bool) {
	if len(decl.Specs) < 2 || hasBad(decl) {
		return Declaration{}, false
	}
	first, ok := decl.Specs[0].(*ast.ValueSpec)
	if !ok || first.Type == nil {
		return Declaration{}, false
	}
	typeName, ok := first.Type.(*ast.Ident)
	if !ok {
		return Declaration{}, false
	}

	stripped := *decl
	stripped.Doc = nil
	var buf bytes.Buffer
	if err := format.Node(&buf, g.fset, &stripped); err != nil {
		return Declaration{}, false
	}
	return Declaration{
		Kind:     KindEnum,
		Name:     typeName.Name,
		Line:     g.line(decl.Pos()) - g.shift,
		Exported: ast.IsExported(typeName.Name),
		TypeText: buf.String(),
	}, true
}

func (g *goFile) export(name string, pos token.Pos) (Declaration, bool) {
	line := g.line(pos)
	if line < 1 || line > len(g.lines) || g.seen[line] {
		return Declaration{}, false
	}
	g.seen[line] = true
	return Declaration{
		Kind:     KindExport,
		Name:     name,
		Line:     line - g.shift,
		Exported: true,
		Source:   strings.TrimRight(g.lines[line-1], " \t\r"),
	}, true
}

func goFuncExported(fn *ast.FuncDecl) bool {
	if fn.Name == nil || !ast.IsExported(fn.Name.Name) {
		return false
	}
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return true
	}
	return ast.IsExported(receiverName(fn.Recv.List[0].Type))
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	default:
		return ""
	}
}

func hasBad(n ast.Node) bool {
	bad := false
	ast.Inspect(n, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.BadExpr, *ast.BadStmt, *ast.BadDecl:
			bad = true
		}
		return !bad
	})
	return bad
}
