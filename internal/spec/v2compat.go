package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// fixSwagger2Bodies rewrites non-compliant Swagger 2.0 operations in place
// so kin-openapi can convert them to OpenAPI 3:
//   - several body parameters are merged into one body whose schema has a
//     property per original parameter;
//   - body parameters mixed with formData become formData themselves and the
//     operation consumes multipart/form-data.
//
// It reports whether anything changed.
func fixSwagger2Bodies(root *yaml.Node) bool {
	modified := false
	for _, pe := range entries(get(root, "paths")) {
		for _, oe := range entries(pe.Value) {
			if _, verb := httpVerbs[strings.ToLower(oe.Key)]; !verb {
				continue
			}
			params := get(oe.Value, "parameters")
			list := items(params)
			if len(list) == 0 {
				continue
			}

			bodies, hasFormData := 0, false
			for _, p := range list {
				switch strings.ToLower(getString(p, "in")) {
				case "body":
					bodies++
				case "formdata":
					hasFormData = true
				}
			}

			switch {
			case bodies > 0 && hasFormData:
				for i, p := range list {
					if strings.EqualFold(getString(p, "in"), "body") {
						params.Content[i] = formDataFromBody(p)
					}
				}
				ensureConsumes(oe.Value, "multipart/form-data")
				modified = true
			case bodies > 1:
				params.Content = mergeBodies(list)
				modified = true
			}
		}
	}
	return modified
}

func mergeBodies(params []*yaml.Node) []*yaml.Node {
	props := mappingNode()
	required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	rest := make([]*yaml.Node, 0, len(params))
	for _, p := range params {
		if !strings.EqualFold(getString(p, "in"), "body") {
			rest = append(rest, p)
			continue
		}
		name := getString(p, "name")
		if name == "" {
			name = "field"
		}
		schema := get(p, "schema")
		if schema == nil {
			schema = mappingNode("type", stringNode("string"))
		}
		props.Content = append(props.Content, stringNode(name), schema)
		if getBool(p, "required") {
			required.Content = append(required.Content, stringNode(name))
		}
	}
	body := mappingNode("type", stringNode("object"), "properties", props)
	if len(required.Content) > 0 {
		body.Content = append(body.Content, stringNode("required"), required)
	}
	merged := mappingNode("in", stringNode("body"), "name", stringNode("body"), "schema", body)
	return append([]*yaml.Node{merged}, rest...)
}

// formDataFromBody degrades a body parameter to a formData one. Object
// and referenced schemas cannot travel as form fields and become strings.
func formDataFromBody(p *yaml.Node) *yaml.Node {
	name := getString(p, "name")
	if name == "" {
		name = "field"
	}
	out := mappingNode("in", stringNode("formData"), "name", stringNode(name))
	if desc := getString(p, "description"); desc != "" {
		out.Content = append(out.Content, stringNode("description"), stringNode(desc))
	}
	if getBool(p, "required") {
		out.Content = append(out.Content, stringNode("required"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}

	src := get(p, "schema")
	if src == nil {
		src = p
	}
	typ := getString(src, "type")
	if typ == "" || typ == "object" {
		typ = "string"
	}
	out.Content = append(out.Content, stringNode("type"), stringNode(typ))
	if it := get(src, "items"); typ == "array" && it != nil {
		out.Content = append(out.Content, stringNode("items"), it)
	}
	if f := getString(src, "format"); f != "" {
		out.Content = append(out.Content, stringNode("format"), stringNode(f))
	}
	return out
}

func ensureConsumes(op *yaml.Node, media string) {
	consumes := get(op, "consumes")
	for _, c := range items(consumes) {
		if c.Value == media {
			return
		}
	}
	if consumes == nil || consumes.Kind != yaml.SequenceNode {
		consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setKey(op, "consumes", consumes)
	}
	consumes.Content = append(consumes.Content, stringNode(media))
}

func setKey(n *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			n.Content[i+1] = value
			return
		}
	}
	n.Content = append(n.Content, stringNode(key), value)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// mappingNode builds a mapping from alternating string keys and values.
func mappingNode(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, stringNode(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return n
}
