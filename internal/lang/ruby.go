package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/kpblcaoo/structmap/internal/model"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		lang:       ruby.GetLanguage(),
		Extract:    rbExtract,
	}
}

func rbExtract(root *sitter.Node, source []byte, m *model.Module) {
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		switch node.Type() {
		case "comment":
			if i == 0 && m.Doc == "" {
				m.Doc = rbHeaderComment(root, source)
			}
		case "method":
			rbExtractMethod(node, source, m, "")
		case "singleton_method":
			rbExtractMethod(node, source, m, "")
		case "class", "module":
			rbExtractClass(node, source, m)
		case "call":
			rbExtractRequire(node, source, m)
		case "assignment":
			rbExtractConstant(node, source, m)
		}
	}
}

// rbHeaderComment collects the leading comment block at the top of the file.
func rbHeaderComment(root *sitter.Node, source []byte) string {
	var lines []string
	expect := 0
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		if node.Type() != "comment" || int(node.StartPoint().Row) > expect {
			break
		}
		lines = append(lines, strings.Split(NodeText(node, source), "\n")...)
		expect = int(node.EndPoint().Row) + 1
	}
	return joinCommentLines(lines)
}

func rbExtractMethod(node *sitter.Node, source []byte, m *model.Module, class string) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	nameText := NodeText(name, source)
	sym := model.Symbol{
		Name:      nameText,
		Module:    m.ID,
		Receiver:  class,
		Params:    rbParams(node.ChildByFieldName("parameters"), source),
		StartLine: Line(node),
		EndLine:   EndLine(node),
		Doc:       LeadingComment(node, source),
		Exported:  !strings.HasPrefix(nameText, "_"),
		Method:    class != "",
		Calls:     CollectCalls(node.ChildByFieldName("body"), source, "call", "method"),
	}
	sym.ID = model.SymbolID(m.ID, sym.QualifiedName())
	m.Functions = append(m.Functions, sym)
}

func rbExtractClass(node *sitter.Node, source []byte, m *model.Module) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	nameText := NodeText(name, source)
	c := model.Class{
		ID:        model.SymbolID(m.ID, nameText),
		Name:      nameText,
		Doc:       LeadingComment(node, source),
		Exported:  true,
		StartLine: Line(node),
		EndLine:   EndLine(node),
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			stmt := body.Child(i)
			switch stmt.Type() {
			case "method", "singleton_method":
				rbExtractMethod(stmt, source, m, nameText)
				if n := stmt.ChildByFieldName("name"); n != nil {
					c.Methods = append(c.Methods, NodeText(n, source))
				}
			case "call":
				// attr_accessor :a, :b and friends declare fields.
				c.Fields = append(c.Fields, rbAttrFields(stmt, source)...)
			}
		}
	}
	m.Classes = append(m.Classes, c)
}

var rbAttrMethods = map[string]struct{}{
	"attr_accessor": {},
	"attr_reader":   {},
	"attr_writer":   {},
}

func rbAttrFields(call *sitter.Node, source []byte) []model.Param {
	method := call.ChildByFieldName("method")
	if method == nil {
		return nil
	}
	if _, ok := rbAttrMethods[NodeText(method, source)]; !ok {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var fields []model.Param
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == "simple_symbol" {
			fields = append(fields, model.Param{Name: strings.TrimPrefix(NodeText(arg, source), ":")})
		}
	}
	return fields
}

func rbExtractRequire(node *sitter.Node, source []byte, m *model.Module) {
	method := node.ChildByFieldName("method")
	if method == nil {
		return
	}
	name := NodeText(method, source)
	if name != "require" && name != "require_relative" {
		return
	}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == "string" {
			m.Imports = append(m.Imports, model.Import{
				Path: strings.Trim(NodeText(arg, source), `"'`),
				Line: Line(node),
			})
		}
	}
}

// rbExtractConstant records top-level CONSTANT = ... assignments.
func rbExtractConstant(node *sitter.Node, source []byte, m *model.Module) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "constant" {
		return
	}
	m.Variables = append(m.Variables, model.Variable{
		Name:     NodeText(left, source),
		Exported: true,
		Const:    true,
		Line:     Line(left),
	})
}

// rbParams renders method parameters; Ruby is untyped, so Type stays empty
// and splat/block markers are kept on the name.
func rbParams(list *sitter.Node, source []byte) []model.Param {
	if list == nil {
		return nil
	}
	var params []model.Param
	for i := 0; i < int(list.ChildCount()); i++ {
		p := list.Child(i)
		switch p.Type() {
		case "identifier":
			params = append(params, model.Param{Name: NodeText(p, source)})
		case "optional_parameter", "keyword_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				params = append(params, model.Param{Name: NodeText(n, source)})
			}
		case "splat_parameter", "hash_splat_parameter", "block_parameter":
			params = append(params, model.Param{Name: CollapseWhitespace(NodeText(p, source))})
		}
	}
	return params
}
