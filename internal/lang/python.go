package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kpblcaoo/structmap/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Extract:    pyExtract,
	}
}

func pyExtract(root *sitter.Node, source []byte, m *model.Module) {
	m.Doc = pyDocstring(root, source)

	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		switch node.Type() {
		case "import_statement", "import_from_statement":
			pyExtractImports(node, source, m)
		case "function_definition":
			pyExtractFunction(node, node, source, m, "")
		case "decorated_definition":
			if def := node.ChildByFieldName("definition"); def != nil {
				switch def.Type() {
				case "function_definition":
					pyExtractFunction(def, node, source, m, "")
				case "class_definition":
					pyExtractClass(def, node, source, m)
				}
			}
		case "class_definition":
			pyExtractClass(node, node, source, m)
		case "expression_statement":
			pyExtractAssignment(node, source, m)
		}
	}
}

// pyExtractFunction records one function or method. docNode is the node doc
// comments attach to (the decorated_definition wrapper when decorated).
func pyExtractFunction(node, docNode *sitter.Node, source []byte, m *model.Module, class string) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	nameText := NodeText(name, source)

	doc := pyDocstring(node.ChildByFieldName("body"), source)
	if doc == "" {
		doc = LeadingComment(docNode, source)
	}

	var returns []string
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		returns = []string{CollapseWhitespace(NodeText(ret, source))}
	}

	sym := model.Symbol{
		Name:      nameText,
		Module:    m.ID,
		Receiver:  class,
		Params:    pyParams(node.ChildByFieldName("parameters"), source),
		Returns:   returns,
		StartLine: Line(docNode),
		EndLine:   EndLine(node),
		Doc:       doc,
		Exported:  !strings.HasPrefix(nameText, "_"),
		Method:    class != "",
		Calls:     CollectCalls(node.ChildByFieldName("body"), source, "call", "function"),
	}
	sym.ID = model.SymbolID(m.ID, sym.QualifiedName())
	m.Functions = append(m.Functions, sym)
}

func pyParams(list *sitter.Node, source []byte) []model.Param {
	if list == nil {
		return nil
	}
	var params []model.Param
	for i := 0; i < int(list.ChildCount()); i++ {
		p := list.Child(i)
		switch p.Type() {
		case "identifier":
			params = append(params, model.Param{Name: NodeText(p, source)})
		case "typed_parameter":
			// name: type; the pattern is the first named child, the
			// annotation a field.
			param := model.Param{}
			if n := p.NamedChild(0); n != nil {
				param.Name = CollapseWhitespace(NodeText(n, source))
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				param.Type = CollapseWhitespace(NodeText(typ, source))
			}
			params = append(params, param)
		case "default_parameter", "typed_default_parameter":
			param := model.Param{}
			if n := p.ChildByFieldName("name"); n != nil {
				param.Name = NodeText(n, source)
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				param.Type = CollapseWhitespace(NodeText(typ, source))
			}
			params = append(params, param)
		case "list_splat_pattern", "dictionary_splat_pattern":
			params = append(params, model.Param{Name: CollapseWhitespace(NodeText(p, source))})
		}
	}
	return params
}

func pyExtractClass(node, docNode *sitter.Node, source []byte, m *model.Module) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	nameText := NodeText(name, source)

	doc := pyDocstring(node.ChildByFieldName("body"), source)
	if doc == "" {
		doc = LeadingComment(docNode, source)
	}

	c := model.Class{
		ID:        model.SymbolID(m.ID, nameText),
		Name:      nameText,
		Doc:       doc,
		Exported:  !strings.HasPrefix(nameText, "_"),
		StartLine: Line(docNode),
		EndLine:   EndLine(node),
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			stmt := body.Child(i)
			switch stmt.Type() {
			case "function_definition":
				pyExtractFunction(stmt, stmt, source, m, nameText)
				c.Methods = append(c.Methods, NodeText(stmt.ChildByFieldName("name"), source))
			case "decorated_definition":
				if def := stmt.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
					pyExtractFunction(def, stmt, source, m, nameText)
					c.Methods = append(c.Methods, NodeText(def.ChildByFieldName("name"), source))
				}
			case "expression_statement":
				if f, ok := pyField(stmt, source); ok {
					c.Fields = append(c.Fields, f)
				}
			}
		}
	}
	m.Classes = append(m.Classes, c)
}

// pyField extracts a class-level attribute from an expression_statement
// holding an assignment (annotated or plain).
func pyField(stmt *sitter.Node, source []byte) (model.Param, bool) {
	if stmt.ChildCount() == 0 {
		return model.Param{}, false
	}
	assign := stmt.Child(0)
	if assign.Type() != "assignment" {
		return model.Param{}, false
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return model.Param{}, false
	}
	f := model.Param{Name: NodeText(left, source)}
	if typ := assign.ChildByFieldName("type"); typ != nil {
		f.Type = CollapseWhitespace(NodeText(typ, source))
	}
	return f, true
}

func pyExtractAssignment(stmt *sitter.Node, source []byte, m *model.Module) {
	if stmt.ChildCount() == 0 {
		return
	}
	assign := stmt.Child(0)
	if assign.Type() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := NodeText(left, source)
	v := model.Variable{
		Name:     name,
		Exported: !strings.HasPrefix(name, "_"),
		// ALL_CAPS names are constants by convention.
		Const: name == strings.ToUpper(name) && name != strings.ToLower(name),
		Line:  Line(left),
	}
	if typ := assign.ChildByFieldName("type"); typ != nil {
		v.Type = CollapseWhitespace(NodeText(typ, source))
	}
	m.Variables = append(m.Variables, v)
}

func pyExtractImports(node *sitter.Node, source []byte, m *model.Module) {
	switch node.Type() {
	case "import_statement":
		// import a.b, c as d
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name":
				m.Imports = append(m.Imports, model.Import{Path: NodeText(child, source), Line: Line(node)})
			case "aliased_import":
				imp := model.Import{Line: Line(node)}
				if n := child.ChildByFieldName("name"); n != nil {
					imp.Path = NodeText(n, source)
				}
				if a := child.ChildByFieldName("alias"); a != nil {
					imp.Alias = NodeText(a, source)
				}
				m.Imports = append(m.Imports, imp)
			}
		}
	case "import_from_statement":
		// from pkg import x, y: one record per imported name, path pkg.x
		mod := node.ChildByFieldName("module_name")
		if mod == nil {
			return
		}
		base := NodeText(mod, source)
		found := false
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child == mod {
				continue
			}
			switch child.Type() {
			case "dotted_name", "identifier":
				m.Imports = append(m.Imports, model.Import{
					Path: base + "." + NodeText(child, source),
					Line: Line(node),
				})
				found = true
			case "aliased_import":
				imp := model.Import{Line: Line(node)}
				if n := child.ChildByFieldName("name"); n != nil {
					imp.Path = base + "." + NodeText(n, source)
				}
				if a := child.ChildByFieldName("alias"); a != nil {
					imp.Alias = NodeText(a, source)
				}
				m.Imports = append(m.Imports, imp)
				found = true
			}
		}
		if !found {
			// from pkg import *: record the module itself.
			m.Imports = append(m.Imports, model.Import{Path: base, Line: Line(node)})
		}
	}
}

// pyDocstring returns the docstring when body's first statement is a bare
// string literal, stripped of quotes and dedented.
func pyDocstring(body *sitter.Node, source []byte) string {
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return ""
	}
	text := NodeText(str, source)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
