package tsemitter

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/helloweilei/ropenapi/internal/spec"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(templateFuncs).
	ParseFS(templateFS, "templates/*.tmpl"))

var templateFuncs = template.FuncMap{
	"jsString": jsString,
	"docBlock": docBlock,
}

type serviceView struct {
	RequestModule string
	Operations    []operationView
}

type operationView struct {
	Doc       []string
	Name      string
	Role      string
	InputType string
	Response  string
	URL       string
	Method    string
}

type typesView struct {
	Types []typeView
}

type typeView struct {
	Doc    []string
	Name   string
	Alias  string
	Fields []fieldView
}

type fieldView struct {
	Name     string
	Type     string
	Optional bool
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderService(svc *spec.Service, requestModule, apiPrefix string) ([]byte, error) {
	view := serviceView{RequestModule: requestModule}
	for _, op := range svc.Operations {
		doc := commentLines(op.Summary)
		if op.Deprecated {
			doc = append(doc, "@deprecated")
		}
		view.Operations = append(view.Operations, operationView{
			Doc:       doc,
			Name:      op.FunctionName,
			Role:      string(op.InputRole),
			InputType: op.InputType,
			Response:  tsType(op.ResponseType, "Types."),
			URL:       joinURL(apiPrefix, op.Path),
			Method:    op.Method,
		})
	}
	return execute("service.ts.tmpl", view)
}

func renderTypes(s *spec.Specification, svc *spec.Service) ([]byte, error) {
	var view typesView
	for _, name := range referencedTypes(s, svc) {
		def := s.Types[name]
		tv := typeView{Doc: commentLines(def.Description), Name: def.Name}
		if def.Alias != nil {
			tv.Alias = tsType(*def.Alias, "")
		}
		for _, f := range def.Fields {
			tv.Fields = append(tv.Fields, fieldView{
				Name:     propertyName(f.Name),
				Type:     tsType(f.Type, ""),
				Optional: f.Optional,
			})
		}
		view.Types = append(view.Types, tv)
	}
	return execute("types.ts.tmpl", view)
}

// referencedTypes lists the definitions reachable from the service's
// operations in first-reference order (depth-first, pre-order).
func referencedTypes(s *spec.Specification, svc *spec.Service) []string {
	var order []string
	seen := make(map[string]bool)

	var visitName func(name string)
	var visitRef func(t spec.TypeRef)
	visitName = func(name string) {
		def, ok := s.Types[name]
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
		if def.Alias != nil {
			visitRef(*def.Alias)
		}
		for _, f := range def.Fields {
			visitRef(f.Type)
		}
	}
	visitRef = func(t spec.TypeRef) {
		switch t.Kind {
		case spec.KindReference:
			visitName(t.Name)
		case spec.KindArray:
			visitRef(*t.Elem)
		}
	}

	for _, op := range svc.Operations {
		visitName(op.InputType)
		visitRef(op.ResponseType)
	}
	return order
}

func tsType(t spec.TypeRef, namespace string) string {
	switch t.Kind {
	case spec.KindPrimitive:
		return t.Primitive
	case spec.KindReference:
		return namespace + t.Name
	case spec.KindArray:
		return tsType(*t.Elem, namespace) + "[]"
	default:
		return "any"
	}
}

func propertyName(name string) string {
	if spec.IsIdentifier(name) {
		return name
	}
	return jsString(name)
}

func joinURL(prefix, path string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + path
}

// jsString quotes s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func commentLines(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(strings.TrimRight(l, " \t"), "*/", "*\\/")
	}
	return lines
}

// docBlock renders a JSDoc block followed by a newline, or nothing.
func docBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("/**\n")
	for _, l := range lines {
		if l == "" {
			b.WriteString(" *\n")
			continue
		}
		b.WriteString(" * ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(" */\n")
	return b.String()
}
