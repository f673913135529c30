package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kpblcaoo/structmap/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:       "go",
		Extensions: []string{".go"},
		lang:       golang.GetLanguage(),
		Extract:    goExtract,
	}
}

func goExtract(root *sitter.Node, source []byte, m *model.Module) {
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		switch node.Type() {
		case "package_clause":
			m.Doc = LeadingComment(node, source)
		case "import_declaration":
			goExtractImports(node, source, m)
		case "function_declaration":
			goExtractFunction(node, source, m, "")
		case "method_declaration":
			goExtractFunction(node, source, m, goReceiverType(node, source))
		case "type_declaration":
			goExtractTypes(node, source, m)
		case "var_declaration":
			goExtractVars(node, source, m, false)
		case "const_declaration":
			goExtractVars(node, source, m, true)
		}
	}

	// Method back-references, in declaration order.
	for ci := range m.Classes {
		c := &m.Classes[ci]
		for fi := range m.Functions {
			if m.Functions[fi].Receiver == c.Name {
				c.Methods = append(c.Methods, m.Functions[fi].Name)
			}
		}
	}
}

func goExtractImports(node *sitter.Node, source []byte, m *model.Module) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			imp := model.Import{Line: Line(n)}
			if path := n.ChildByFieldName("path"); path != nil {
				imp.Path = strings.Trim(NodeText(path, source), "`\"")
			}
			if name := n.ChildByFieldName("name"); name != nil {
				imp.Alias = NodeText(name, source)
			}
			m.Imports = append(m.Imports, imp)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

func goExtractFunction(node *sitter.Node, source []byte, m *model.Module, receiver string) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	sym := model.Symbol{
		Name:      NodeText(name, source),
		Module:    m.ID,
		Receiver:  receiver,
		Params:    goParams(node.ChildByFieldName("parameters"), source),
		Returns:   goReturns(node.ChildByFieldName("result"), source),
		StartLine: Line(node),
		EndLine:   EndLine(node),
		Doc:       LeadingComment(node, source),
		Exported:  goExported(NodeText(name, source)),
		Method:    receiver != "",
		Calls:     CollectCalls(node.ChildByFieldName("body"), source, "call_expression", "function"),
	}
	sym.ID = model.SymbolID(m.ID, sym.QualifiedName())
	m.Functions = append(m.Functions, sym)
}

func goExtractTypes(node *sitter.Node, source []byte, m *model.Module) {
	doc := LeadingComment(node, source)
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		name := spec.ChildByFieldName("name")
		if name == nil {
			continue
		}
		c := model.Class{
			Name:      NodeText(name, source),
			Doc:       doc,
			Exported:  goExported(NodeText(name, source)),
			StartLine: Line(spec),
			EndLine:   EndLine(spec),
		}
		// Grouped type blocks attach per-spec comments instead.
		if specDoc := LeadingComment(spec, source); specDoc != "" {
			c.Doc = specDoc
		}
		c.ID = model.SymbolID(m.ID, c.Name)

		switch body := spec.ChildByFieldName("type"); {
		case body == nil:
		case body.Type() == "struct_type":
			c.Fields = goStructFields(body, source)
		case body.Type() == "interface_type":
			c.Methods = goInterfaceMethods(body, source)
		}
		m.Classes = append(m.Classes, c)
	}
}

func goStructFields(structType *sitter.Node, source []byte) []model.Param {
	var fields []model.Param
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "field_declaration" {
			typ := n.ChildByFieldName("type")
			typeStr := ""
			if typ != nil {
				typeStr = goTypeString(typ, source)
			}
			named := false
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() == "field_identifier" {
					fields = append(fields, model.Param{Name: NodeText(child, source), Type: typeStr})
					named = true
				}
			}
			if !named && typ != nil {
				// Embedded field.
				fields = append(fields, model.Param{Name: model.Unqualified(typeStr), Type: typeStr})
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(structType)
	return fields
}

func goInterfaceMethods(ifaceType *sitter.Node, source []byte) []string {
	var methods []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "method_spec" || n.Type() == "method_elem" {
			if name := n.ChildByFieldName("name"); name != nil {
				methods = append(methods, NodeText(name, source))
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(ifaceType)
	return methods
}

func goExtractVars(node *sitter.Node, source []byte, m *model.Module, isConst bool) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "var_spec" || n.Type() == "const_spec" {
			typeStr := ""
			if typ := n.ChildByFieldName("type"); typ != nil {
				typeStr = goTypeString(typ, source)
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() != "identifier" {
					continue
				}
				name := NodeText(child, source)
				m.Variables = append(m.Variables, model.Variable{
					Name:     name,
					Type:     typeStr,
					Exported: goExported(name),
					Const:    isConst,
					Line:     Line(child),
				})
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

// goReceiverType returns the bare receiver type name of a method declaration,
// unwrapping pointers and type parameters: "(s *Server[T])" → "Server".
func goReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.ChildCount()); i++ {
		param := recv.Child(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		name := goTypeString(typ, source)
		name = strings.TrimPrefix(name, "*")
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		return name
	}
	return ""
}

// goParams renders a parameter_list into name/type pairs. Grouped names
// ("a, b int") each get the shared type; variadics render as "...T".
func goParams(list *sitter.Node, source []byte) []model.Param {
	if list == nil {
		return nil
	}
	var params []model.Param
	for i := 0; i < int(list.ChildCount()); i++ {
		decl := list.Child(i)
		switch decl.Type() {
		case "parameter_declaration":
			typeStr := ""
			if typ := decl.ChildByFieldName("type"); typ != nil {
				typeStr = goTypeString(typ, source)
			}
			named := false
			for j := 0; j < int(decl.ChildCount()); j++ {
				child := decl.Child(j)
				if child.Type() == "identifier" {
					params = append(params, model.Param{Name: NodeText(child, source), Type: typeStr})
					named = true
				}
			}
			if !named {
				params = append(params, model.Param{Type: typeStr})
			}
		case "variadic_parameter_declaration":
			p := model.Param{}
			for j := 0; j < int(decl.ChildCount()); j++ {
				child := decl.Child(j)
				if child.Type() == "identifier" {
					p.Name = NodeText(child, source)
				}
			}
			if typ := decl.ChildByFieldName("type"); typ != nil {
				p.Type = "..." + goTypeString(typ, source)
			}
			params = append(params, p)
		}
	}
	return params
}

// goReturns renders a function result as a list of canonical type strings.
func goReturns(result *sitter.Node, source []byte) []string {
	if result == nil {
		return nil
	}
	if result.Type() != "parameter_list" {
		return []string{goTypeString(result, source)}
	}
	var returns []string
	for i := 0; i < int(result.ChildCount()); i++ {
		decl := result.Child(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		if typ := decl.ChildByFieldName("type"); typ != nil {
			returns = append(returns, goTypeString(typ, source))
		}
	}
	return returns
}

// goTypeString renders a type node as canonical text: "*Name", "[]Elem",
// "map[K]V", "pkg.Name", "[4]T". Composite types not worth restructuring
// (func, chan, struct, interface, generics) keep their collapsed source text.
func goTypeString(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "pointer_type":
		if inner := node.NamedChild(0); inner != nil {
			return "*" + goTypeString(inner, source)
		}
	case "slice_type":
		if elem := node.ChildByFieldName("element"); elem != nil {
			return "[]" + goTypeString(elem, source)
		}
	case "array_type":
		length := node.ChildByFieldName("length")
		elem := node.ChildByFieldName("element")
		if length != nil && elem != nil {
			return "[" + NodeText(length, source) + "]" + goTypeString(elem, source)
		}
	case "map_type":
		key := node.ChildByFieldName("key")
		val := node.ChildByFieldName("value")
		if key != nil && val != nil {
			return "map[" + goTypeString(key, source) + "]" + goTypeString(val, source)
		}
	case "type_identifier", "qualified_type":
		return NodeText(node, source)
	}
	return CollapseWhitespace(NodeText(node, source))
}

func goExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
