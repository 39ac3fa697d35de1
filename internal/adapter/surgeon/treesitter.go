//go:build cgo

package surgeon

import (
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	ts_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ts_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

func registerGrammarBackends(s *Surgeon) {
	s.backends[LangPython] = grammarBackend{lang: langPtr(ts_python.Language()), walk: (*nodeWalker).python}
	s.backends[LangRust] = grammarBackend{lang: langPtr(ts_rust.Language()), walk: (*nodeWalker).rust}
	s.backends[LangJava] = grammarBackend{lang: langPtr(ts_java.Language()), walk: (*nodeWalker).java}
}

func langPtr(p unsafe.Pointer) *tree_sitter.Language {
	return tree_sitter.NewLanguage(p)
}

// parse runs the grammar over source and hands the root node to visit.
// Nothing is visited when the parser cannot be set up.
func parse(lang *tree_sitter.Language, source string, visit func(src []byte, root *tree_sitter.Node)) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return
	}
	src := []byte(source)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return
	}
	defer tree.Close()
	visit(src, tree.RootNode())
}

// grammarBackend feeds every top-level node of a syntax tree to walk.
type grammarBackend struct {
	lang *tree_sitter.Language
	walk func(w *nodeWalker, n *tree_sitter.Node)
}

func (b grammarBackend) declarations(source string) []Declaration {
	var decls []Declaration
	parse(b.lang, source, func(src []byte, root *tree_sitter.Node) {
		w := &nodeWalker{src: src}
		for i := uint(0); i < root.NamedChildCount(); i++ {
			if n := root.NamedChild(i); n != nil && !n.IsError() {
				b.walk(w, n)
			}
		}
		decls = w.decls
	})
	return decls
}

type nodeWalker struct {
	src   []byte
	decls []Declaration
}

func (w *nodeWalker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.src)
}

func (w *nodeWalker) line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// indent is the whitespace between the start of n's line and n.
func (w *nodeWalker) indent(n *tree_sitter.Node) string {
	start := int(n.StartByte())
	i := start
	for i > 0 && (w.src[i-1] == ' ' || w.src[i-1] == '\t') {
		i--
	}
	return string(w.src[i:start])
}

// header is the single-line text of n from start up to its body, with any
// trailing comment and block opener removed.
func (w *nodeWalker) header(n *tree_sitter.Node, start uint, body *tree_sitter.Node) string {
	end := n.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.StartByte() >= end {
			break
		}
		if c.StartByte() > start && isCommentKind(c.Kind()) {
			end = c.StartByte()
			break
		}
	}
	h := oneLine(string(w.src[start:end]))
	return trimOpener(strings.TrimSuffix(h, ";"))
}

// block is the verbatim text of n with trailing whitespace trimmed per line.
func (w *nodeWalker) block(n *tree_sitter.Node, start uint) string {
	lines := strings.Split(string(w.src[start:n.EndByte()]), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}

func (w *nodeWalker) importNode(n *tree_sitter.Node) {
	if n.HasError() {
		return
	}
	w.decls = append(w.decls, Declaration{
		Kind:   KindImport,
		Line:   w.line(n),
		Source: strings.TrimRight(w.text(n), " \t\r\n"),
	})
}

func isCommentKind(kind string) bool {
	switch kind {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

// Python

func (w *nodeWalker) python(n *tree_sitter.Node) {
	w.pythonNode(n, KindFunction)
}

// pythonNode records a definition; kind is what a def becomes at this
// nesting level. Function bodies are never entered.
func (w *nodeWalker) pythonNode(n *tree_sitter.Node, kind Kind) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "import_statement", "import_from_statement", "future_import_statement":
		w.importNode(n)
	case "decorated_definition":
		w.pythonNode(n.ChildByFieldName("definition"), kind)
	case "function_definition":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			name := n.ChildByFieldName("name")
			params := n.ChildByFieldName("parameters")
			body := n.ChildByFieldName("body")
			if name == nil || params == nil || params.HasError() {
				return Declaration{}, false
			}
			return Declaration{
				Kind:      kind,
				Name:      w.text(name),
				Line:      w.line(n),
				Signature: w.indent(n) + w.header(n, n.StartByte(), body),
			}, true
		})
	case "class_definition":
		body := n.ChildByFieldName("body")
		name := n.ChildByFieldName("name")
		if body == nil || name == nil {
			return
		}
		w.decls = append(w.decls, Declaration{
			Kind:      KindClass,
			Name:      w.text(name),
			Line:      w.line(n),
			Signature: w.indent(n) + w.header(n, n.StartByte(), body),
		})
		for i := uint(0); i < body.NamedChildCount(); i++ {
			w.pythonNode(body.NamedChild(i), KindMethod)
		}
	case "expression_statement":
		if kind != KindFunction {
			return
		}
		a := n.NamedChild(0)
		if a != nil && a.Kind() == "assignment" && w.text(a.ChildByFieldName("left")) == "__all__" {
			w.decls = append(w.decls, Declaration{
				Kind:     KindExport,
				Line:     w.line(n),
				Exported: true,
				Source:   firstLine(w.text(n)),
			})
		}
	}
}

// Rust

func (w *nodeWalker) rust(n *tree_sitter.Node) {
	switch n.Kind() {
	case "use_declaration", "extern_crate_declaration":
		w.importNode(n)
	case "function_item":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			return w.rustFunction(n, KindFunction)
		})
	case "struct_item", "union_item":
		w.rustType(n, KindStruct)
	case "enum_item":
		w.rustType(n, KindEnum)
	case "trait_item":
		w.rustType(n, KindInterface)
	case "type_item":
		w.rustType(n, KindTypeAlias)
	case "impl_item":
		w.rustImpl(n)
	}
	if rustPublic(n) {
		w.decls = append(w.decls, Declaration{
			Kind:     KindExport,
			Line:     w.line(n),
			Exported: true,
			Source:   firstLine(w.text(n)),
		})
	}
}

func (w *nodeWalker) rustFunction(n *tree_sitter.Node, kind Kind) (Declaration, bool) {
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	if name == nil || params == nil || params.HasError() {
		return Declaration{}, false
	}
	return Declaration{
		Kind:      kind,
		Name:      w.text(name),
		Line:      w.line(n),
		Exported:  rustPublic(n),
		Signature: w.indent(n) + w.header(n, n.StartByte(), n.ChildByFieldName("body")),
	}, true
}

func (w *nodeWalker) rustType(n *tree_sitter.Node, kind Kind) {
	if n.HasError() {
		return
	}
	w.decls = append(w.decls, Declaration{
		Kind:     kind,
		Name:     w.text(n.ChildByFieldName("name")),
		Line:     w.line(n),
		Exported: rustPublic(n),
		TypeText: w.block(n, n.StartByte()),
	})
}

// rustImpl records the impl header as a class and its functions as methods.
func (w *nodeWalker) rustImpl(n *tree_sitter.Node) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	w.decls = append(w.decls, Declaration{
		Kind:      KindClass,
		Name:      w.text(n.ChildByFieldName("type")),
		Line:      w.line(n),
		Signature: w.header(n, n.StartByte(), body),
	})
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		if m.Kind() != "function_item" {
			continue
		}
		w.decls = collect(w.decls, func() (Declaration, bool) {
			return w.rustFunction(m, KindMethod)
		})
	}
}

func rustPublic(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "function_item", "struct_item", "union_item", "enum_item", "trait_item",
		"type_item", "const_item", "static_item", "mod_item", "use_declaration":
	default:
		return false
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if n.NamedChild(i).Kind() == "visibility_modifier" {
			return true
		}
	}
	return false
}

// Java

func (w *nodeWalker) java(n *tree_sitter.Node) {
	switch n.Kind() {
	case "package_declaration", "import_declaration":
		w.importNode(n)
		return
	}
	w.javaType(n, true)
}

// javaType records a class, record, interface or enum. Top-level public
// types are also exports.
func (w *nodeWalker) javaType(n *tree_sitter.Node, top bool) {
	body := n.ChildByFieldName("body")
	name := n.ChildByFieldName("name")
	if body == nil || name == nil {
		return
	}
	start := w.javaStart(n)
	head := w.header(n, start, body)

	switch n.Kind() {
	case "class_declaration", "record_declaration":
		w.decls = append(w.decls, Declaration{
			Kind:      KindClass,
			Name:      w.text(name),
			Line:      w.line(n),
			Exported:  javaPublic(n),
			Signature: w.indent(n) + head,
		})
		w.javaMembers(body)
	case "interface_declaration", "annotation_type_declaration":
		w.decls = append(w.decls, Declaration{
			Kind:     KindInterface,
			Name:     w.text(name),
			Line:     w.line(n),
			Exported: javaPublic(n),
			TypeText: w.javaInterface(head, body),
		})
	case "enum_declaration":
		w.decls = append(w.decls, Declaration{
			Kind:     KindEnum,
			Name:     w.text(name),
			Line:     w.line(n),
			Exported: javaPublic(n),
			TypeText: w.block(n, start),
		})
	default:
		return
	}
	if top && javaPublic(n) {
		w.decls = append(w.decls, Declaration{
			Kind:     KindExport,
			Line:     w.line(n),
			Exported: true,
			Source:   head + " {",
		})
	}
}

func (w *nodeWalker) javaMembers(body *tree_sitter.Node) {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		switch m.Kind() {
		case "method_declaration", "constructor_declaration":
			w.decls = collect(w.decls, func() (Declaration, bool) {
				name := m.ChildByFieldName("name")
				params := m.ChildByFieldName("parameters")
				if name == nil || params == nil || params.HasError() {
					return Declaration{}, false
				}
				return Declaration{
					Kind:      KindMethod,
					Name:      w.text(name),
					Line:      w.line(m),
					Exported:  javaPublic(m),
					Signature: w.indent(m) + w.header(m, w.javaStart(m), m.ChildByFieldName("body")),
				}, true
			})
		case "class_declaration", "record_declaration", "interface_declaration", "enum_declaration":
			w.javaType(m, false)
		}
	}
}

func (w *nodeWalker) javaInterface(head string, body *tree_sitter.Node) string {
	var b strings.Builder
	b.WriteString(head)
	b.WriteString(" {")
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		if isCommentKind(m.Kind()) {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(w.header(m, w.javaStart(m), m.ChildByFieldName("body")))
		b.WriteByte(';')
	}
	b.WriteString("\n}")
	return b.String()
}

// javaStart skips annotations in the modifiers of n so that headers begin
// at the first keyword.
func (w *nodeWalker) javaStart(n *tree_sitter.Node) uint {
	first := n.Child(0)
	if first == nil || first.Kind() != "modifiers" {
		return n.StartByte()
	}
	for i := uint(0); i < first.ChildCount(); i++ {
		switch c := first.Child(i); c.Kind() {
		case "annotation", "marker_annotation", "line_comment", "block_comment":
			continue
		default:
			return c.StartByte()
		}
	}
	if next := n.Child(1); next != nil {
		return next.StartByte()
	}
	return n.StartByte()
}

func javaPublic(n *tree_sitter.Node) bool {
	first := n.Child(0)
	if first == nil || first.Kind() != "modifiers" {
		return false
	}
	for i := uint(0); i < first.ChildCount(); i++ {
		if first.Child(i).Kind() == "public" {
			return true
		}
	}
	return false
}
