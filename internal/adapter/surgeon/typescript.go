//go:build cgo

package surgeon

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func registerScriptBackends(s *Surgeon) {
	ts := scriptBackend{lang: langPtr(ts_typescript.LanguageTypescript()), typed: true}
	tsx := scriptBackend{lang: langPtr(ts_typescript.LanguageTSX()), typed: true}
	s.backends[LangTypeScript] = ts
	s.backends[LangTSX] = tsx
	// Plain JavaScript parses with the TSX grammar; untyped parameters stay
	// untyped.
	s.backends[LangJavaScript] = scriptBackend{lang: tsx.lang}
}

// scriptBackend walks a tree-sitter TypeScript/TSX syntax tree.
type scriptBackend struct {
	lang *tree_sitter.Language
	// typed annotates parameters with no declared or inferable type as any.
	typed bool
}

func (b scriptBackend) declarations(source string) []Declaration {
	var decls []Declaration
	parse(b.lang, source, func(src []byte, root *tree_sitter.Node) {
		w := &scriptWalker{src: src, typed: b.typed}
		for i := uint(0); i < root.NamedChildCount(); i++ {
			w.topLevel(root.NamedChild(i))
		}
		decls = w.decls
	})
	return decls
}

type scriptWalker struct {
	src   []byte
	typed bool
	decls []Declaration
}

func (w *scriptWalker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.src)
}

func (w *scriptWalker) line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func (w *scriptWalker) topLevel(n *tree_sitter.Node) {
	if n == nil || n.IsError() {
		return
	}
	switch n.Kind() {
	case "import_statement":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			if n.HasError() {
				return Declaration{}, false
			}
			return Declaration{Kind: KindImport, Line: w.line(n), Source: strings.TrimRight(w.text(n), " \t\r\n")}, true
		})
	case "export_statement":
		w.export(n)
	case "ambient_declaration":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			w.declaration(n.NamedChild(i), "declare ", false)
		}
	default:
		w.declaration(n, "", false)
	}
}

func (w *scriptWalker) export(n *tree_sitter.Node) {
	decl := n.ChildByFieldName("declaration")
	source := strings.TrimRight(w.text(n), " \t\r\n")
	if decl != nil {
		source = firstLine(source)
	}
	if !n.HasError() {
		w.decls = append(w.decls, Declaration{Kind: KindExport, Line: w.line(n), Exported: true, Source: source})
	}
	if decl == nil {
		return
	}
	prefix := "export "
	for i := uint(0); i < n.ChildCount(); i++ {
		if n.Child(i).Kind() == "default" {
			prefix = "export default "
			break
		}
	}
	if decl.Kind() == "ambient_declaration" {
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			w.declaration(decl.NamedChild(i), prefix+"declare ", true)
		}
		return
	}
	w.declaration(decl, prefix, true)
}

// declaration records a function, class, interface, type alias, enum or
// function-valued variable. Anything else is ignored.
func (w *scriptWalker) declaration(n *tree_sitter.Node, prefix string, exported bool) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			sig, ok := w.callable(n)
			if !ok {
				return Declaration{}, false
			}
			return Declaration{
				Kind:      KindFunction,
				Name:      w.text(n.ChildByFieldName("name")),
				Line:      w.line(n),
				Exported:  exported,
				Signature: prefix + sig,
			}, true
		})
	case "class_declaration", "abstract_class_declaration":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			return w.class(n, prefix, exported)
		})
	case "interface_declaration":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			return w.iface(n, prefix, exported)
		})
	case "type_alias_declaration":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			if n.HasError() {
				return Declaration{}, false
			}
			text := strings.TrimSuffix(oneLine(w.text(n)), ";")
			return Declaration{
				Kind:     KindTypeAlias,
				Name:     w.text(n.ChildByFieldName("name")),
				Line:     w.line(n),
				Exported: exported,
				TypeText: prefix + text,
			}, true
		})
	case "enum_declaration":
		w.decls = collect(w.decls, func() (Declaration, bool) {
			return w.enum(n, prefix, exported)
		})
	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			d := n.NamedChild(i)
			if d.Kind() != "variable_declarator" {
				continue
			}
			keyword := w.text(n.Child(0))
			w.decls = collect(w.decls, func() (Declaration, bool) {
				return w.arrow(d, prefix+keyword+" ", exported)
			})
		}
	}
}

// callable renders the signature line of a function, method or overload:
// modifiers, name, type parameters, parameters and return type.
func (w *scriptWalker) callable(n *tree_sitter.Node) (string, bool) {
	if n.HasError() {
		return "", false
	}
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	if name == nil || params == nil {
		return "", false
	}
	var b strings.Builder
	if mods := w.modifiers(n, name); mods != "" {
		b.WriteString(mods)
		b.WriteByte(' ')
	}
	b.WriteString(w.text(name))
	if n.Kind() == "method_signature" || n.Kind() == "abstract_method_signature" {
		for i := uint(0); i < n.ChildCount(); i++ {
			if n.Child(i).Kind() == "?" {
				b.WriteByte('?')
				break
			}
		}
	}
	b.WriteString(oneLine(w.text(n.ChildByFieldName("type_parameters"))))
	b.WriteString(w.params(params))
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(oneLine(w.text(ret)))
	}
	sig := strings.Replace(b.String(), "function *", "function* ", 1)
	return strings.Replace(sig, "*  ", "* ", 1), true
}

// modifiers joins the tokens preceding name (async, static, accessibility,
// get/set, the function keyword), skipping decorators and comments.
func (w *scriptWalker) modifiers(n, name *tree_sitter.Node) string {
	var mods []string
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.StartByte() >= name.StartByte() {
			break
		}
		switch c.Kind() {
		case "decorator", "comment":
			continue
		}
		mods = append(mods, oneLine(w.text(c)))
	}
	return strings.Join(mods, " ")
}

func (w *scriptWalker) params(n *tree_sitter.Node) string {
	var parts []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		switch p.Kind() {
		case "comment":
			continue
		case "required_parameter", "optional_parameter":
			parts = append(parts, w.param(p))
		default:
			parts = append(parts, oneLine(w.text(p)))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// param renders one parameter with its declared type, a type inferred from
// a literal default, or any.
func (w *scriptWalker) param(p *tree_sitter.Node) string {
	pattern := p.ChildByFieldName("pattern")
	var name string
	if pattern != nil {
		name = w.modifiers(p, pattern)
		if name != "" {
			name += " "
		}
		name += oneLine(w.text(pattern))
	} else {
		name = oneLine(w.text(p))
	}
	if p.Kind() == "optional_parameter" {
		name += "?"
	}
	if typ := p.ChildByFieldName("type"); typ != nil {
		return name + oneLine(w.text(typ))
	}
	if value := p.ChildByFieldName("value"); value != nil {
		if t := literalType(value.Kind()); t != "" {
			return name + ": " + t
		}
	}
	if w.typed {
		return name + ": any"
	}
	return name
}

func literalType(kind string) string {
	switch kind {
	case "string", "template_string":
		return "string"
	case "number":
		return "number"
	case "true", "false":
		return "boolean"
	case "array":
		return "any[]"
	case "object":
		return "object"
	case "null":
		return "null"
	case "regex":
		return "RegExp"
	}
	return ""
}

func (w *scriptWalker) class(n *tree_sitter.Node, prefix string, exported bool) (Declaration, bool) {
	body := n.ChildByFieldName("body")
	name := n.ChildByFieldName("name")
	if body == nil || name == nil || n.IsError() {
		return Declaration{}, false
	}
	var header []string
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.StartByte() >= body.StartByte() {
			break
		}
		switch c.Kind() {
		case "decorator", "comment":
			continue
		}
		header = append(header, oneLine(w.text(c)))
	}
	d := Declaration{
		Kind:      KindClass,
		Name:      w.text(name),
		Line:      w.line(n),
		Exported:  exported,
		Signature: prefix + strings.Join(header, " ") + " {",
		Block:     true,
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		switch m.Kind() {
		case "method_definition", "method_signature", "abstract_method_signature":
			if sig, ok := w.callable(m); ok {
				d.Members = append(d.Members, sig)
			}
		}
	}
	return d, true
}

func (w *scriptWalker) iface(n *tree_sitter.Node, prefix string, exported bool) (Declaration, bool) {
	body := n.ChildByFieldName("body")
	name := n.ChildByFieldName("name")
	if body == nil || name == nil || n.HasError() {
		return Declaration{}, false
	}
	head := oneLine(string(w.src[n.StartByte():body.StartByte()]))
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(head)
	b.WriteString(" {")
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		if m.Kind() == "comment" {
			continue
		}
		member := strings.TrimRight(oneLine(w.text(m)), ";,")
		b.WriteString("\n  ")
		b.WriteString(member)
		b.WriteByte(';')
	}
	b.WriteString("\n}")
	return Declaration{
		Kind:     KindInterface,
		Name:     w.text(name),
		Line:     w.line(n),
		Exported: exported,
		TypeText: b.String(),
	}, true
}

func (w *scriptWalker) enum(n *tree_sitter.Node, prefix string, exported bool) (Declaration, bool) {
	body := n.ChildByFieldName("body")
	name := n.ChildByFieldName("name")
	if body == nil || name == nil || n.HasError() {
		return Declaration{}, false
	}
	head := oneLine(string(w.src[n.StartByte():body.StartByte()]))
	var members []string
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		switch m.Kind() {
		case "comment":
			continue
		case "enum_assignment":
			members = append(members, w.text(m.ChildByFieldName("name"))+" = "+oneLine(w.text(m.ChildByFieldName("value"))))
		default:
			members = append(members, oneLine(w.text(m)))
		}
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(head)
	b.WriteString(" {")
	for i, m := range members {
		b.WriteString("\n  ")
		b.WriteString(m)
		if i < len(members)-1 {
			b.WriteByte(',')
		}
	}
	b.WriteString("\n}")
	return Declaration{
		Kind:     KindEnum,
		Name:     w.text(name),
		Line:     w.line(n),
		Exported: exported,
		TypeText: b.String(),
	}, true
}

// arrow renders `const name = (params): ret =>` for a variable bound to an
// arrow function or function expression. Other variables are skipped.
func (w *scriptWalker) arrow(d *tree_sitter.Node, prefix string, exported bool) (Declaration, bool) {
	name := d.ChildByFieldName("name")
	value := d.ChildByFieldName("value")
	if name == nil || value == nil || d.HasError() {
		return Declaration{}, false
	}
	switch value.Kind() {
	case "arrow_function", "function_expression", "function", "generator_function":
	default:
		return Declaration{}, false
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(w.text(name))
	b.WriteString(" = ")
	for i := uint(0); i < value.ChildCount(); i++ {
		if value.Child(i).Kind() == "async" {
			b.WriteString("async ")
			break
		}
	}
	if value.Kind() != "arrow_function" {
		b.WriteString("function")
		if fn := value.ChildByFieldName("name"); fn != nil {
			b.WriteByte(' ')
			b.WriteString(w.text(fn))
		}
	}
	b.WriteString(oneLine(w.text(value.ChildByFieldName("type_parameters"))))
	if params := value.ChildByFieldName("parameters"); params != nil {
		b.WriteString(w.params(params))
	} else if param := value.ChildByFieldName("parameter"); param != nil {
		p := w.text(param)
		if w.typed {
			p += ": any"
		}
		b.WriteString("(" + p + ")")
	}
	if ret := value.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(oneLine(w.text(ret)))
	}
	if value.Kind() == "arrow_function" {
		b.WriteString(" =>")
	}
	return Declaration{
		Kind:      KindFunction,
		Name:      w.text(name),
		Line:      w.line(d),
		Exported:  exported,
		Signature: b.String(),
	}, true
}
