package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/kpblcaoo/structmap/internal/model"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
		Extract:    jsExtract,
	}
}

func jsExtract(root *sitter.Node, source []byte, m *model.Module) {
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		jsExtractTopLevel(node, node, source, m, false)
	}
}

// jsExtractTopLevel handles one program-level statement. docNode is where
// leading comments attach (the export_statement wrapper for exports).
func jsExtractTopLevel(node, docNode *sitter.Node, source []byte, m *model.Module, exported bool) {
	switch node.Type() {
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			jsExtractTopLevel(decl, node, source, m, true)
		}
	case "import_statement":
		jsExtractImport(node, source, m)
	case "function_declaration", "generator_function_declaration":
		jsExtractFunction(node, docNode, source, m, "", exported)
	case "class_declaration":
		jsExtractClass(node, docNode, source, m, exported)
	case "lexical_declaration", "variable_declaration":
		jsExtractDeclaration(node, docNode, source, m, exported)
	}
}

func jsExtractFunction(node, docNode *sitter.Node, source []byte, m *model.Module, class string, exported bool) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	jsAddFunction(node, docNode, NodeText(name, source), class, source, m, exported)
}

// jsAddFunction records a function-valued node (declaration, method, or
// arrow/function expression) under the given name.
func jsAddFunction(fn, docNode *sitter.Node, name, class string, source []byte, m *model.Module, exported bool) {
	sym := model.Symbol{
		Name:      name,
		Module:    m.ID,
		Receiver:  class,
		Params:    jsParams(fn.ChildByFieldName("parameters"), source),
		StartLine: Line(docNode),
		EndLine:   EndLine(fn),
		Doc:       LeadingComment(docNode, source),
		Exported:  exported || !strings.HasPrefix(name, "_"),
		Method:    class != "",
		Calls:     CollectCalls(fn.ChildByFieldName("body"), source, "call_expression", "function"),
	}
	sym.ID = model.SymbolID(m.ID, sym.QualifiedName())
	m.Functions = append(m.Functions, sym)
}

func jsExtractClass(node, docNode *sitter.Node, source []byte, m *model.Module, exported bool) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	nameText := NodeText(name, source)
	c := model.Class{
		ID:        model.SymbolID(m.ID, nameText),
		Name:      nameText,
		Doc:       LeadingComment(docNode, source),
		Exported:  exported || !strings.HasPrefix(nameText, "_"),
		StartLine: Line(docNode),
		EndLine:   EndLine(node),
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "method_definition":
				if n := member.ChildByFieldName("name"); n != nil {
					methodName := NodeText(n, source)
					jsAddFunction(member, member, methodName, nameText, source, m, c.Exported)
					c.Methods = append(c.Methods, methodName)
				}
			case "field_definition", "public_field_definition":
				if n := member.ChildByFieldName("property"); n != nil {
					c.Fields = append(c.Fields, model.Param{Name: NodeText(n, source)})
				}
			}
		}
	}
	m.Classes = append(m.Classes, c)
}

// jsExtractDeclaration handles const/let/var: arrow functions become
// symbols, require() calls become imports, everything else a variable.
func jsExtractDeclaration(node, docNode *sitter.Node, source []byte, m *model.Module, exported bool) {
	isConst := strings.HasPrefix(NodeText(node, source), "const")
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			continue
		}
		nameText := NodeText(name, source)
		value := decl.ChildByFieldName("value")

		if value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function":
				jsAddFunction(value, docNode, nameText, "", source, m, exported)
				continue
			case "call_expression":
				if path, ok := jsRequirePath(value, source); ok {
					m.Imports = append(m.Imports, model.Import{Path: path, Alias: nameText, Line: Line(node)})
					continue
				}
			}
		}

		m.Variables = append(m.Variables, model.Variable{
			Name:     nameText,
			Exported: exported || !strings.HasPrefix(nameText, "_"),
			Const:    isConst,
			Line:     Line(name),
		})
	}
}

func jsRequirePath(call *sitter.Node, source []byte) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || NodeText(fn, source) != "require" {
		return "", false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == "string" {
			return strings.Trim(NodeText(arg, source), `"'`), true
		}
	}
	return "", false
}

func jsExtractImport(node *sitter.Node, source []byte, m *model.Module) {
	src := node.ChildByFieldName("source")
	if src == nil {
		return
	}
	imp := model.Import{
		Path: strings.Trim(NodeText(src, source), `"'`),
		Line: Line(node),
	}
	// Default import name doubles as the alias.
	var findDefault func(n *sitter.Node)
	findDefault = func(n *sitter.Node) {
		if imp.Alias != "" {
			return
		}
		if n.Type() == "import_clause" {
			for i := 0; i < int(n.ChildCount()); i++ {
				if child := n.Child(i); child.Type() == "identifier" {
					imp.Alias = NodeText(child, source)
					return
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			findDefault(n.Child(i))
		}
	}
	findDefault(node)
	m.Imports = append(m.Imports, imp)
}

// jsParams renders formal parameters; defaults and rest markers are kept on
// the name, types stay empty.
func jsParams(list *sitter.Node, source []byte) []model.Param {
	if list == nil {
		return nil
	}
	var params []model.Param
	for i := 0; i < int(list.ChildCount()); i++ {
		p := list.Child(i)
		switch p.Type() {
		case "identifier":
			params = append(params, model.Param{Name: NodeText(p, source)})
		case "assignment_pattern":
			if n := p.ChildByFieldName("left"); n != nil {
				params = append(params, model.Param{Name: NodeText(n, source)})
			}
		case "rest_pattern", "object_pattern", "array_pattern":
			params = append(params, model.Param{Name: CollapseWhitespace(NodeText(p, source))})
		}
	}
	return params
}
