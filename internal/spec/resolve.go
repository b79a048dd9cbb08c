package spec

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolveSchema maps a schema node onto a TypeRef. Named schemas become
// TypeDefinitions under their own name; inline objects are synthesized
// under hint. Anything that cannot be typed resolves to any.
func (p *parser) resolveSchema(n *yaml.Node, hint, ptr string) TypeRef {
	n = deref(n)
	if n == nil {
		return AnyType()
	}
	if ref := getString(n, "$ref"); ref != "" {
		return p.resolveRef(ref, ptr)
	}
	return p.resolveInline(n, hint, ptr)
}

func (p *parser) resolveRef(ref, ptr string) TypeRef {
	name, ok := p.schemaRefName(ref)
	if !ok {
		p.warn(ptr, "unresolved schema reference %q", ref)
		return AnyType()
	}
	return p.resolveNamed(name, ptr)
}

// schemaRefName returns the schema a reference points at. Only direct
// references into the dialect's schema container are recognized.
func (p *parser) schemaRefName(ref string) (string, bool) {
	prefix := p.schemaBase + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	token := ref[len(prefix):]
	if token == "" || strings.Contains(token, "/") {
		return "", false
	}
	name := unescapeToken(token)
	if _, ok := p.spec.Schemas[name]; !ok {
		return "", false
	}
	return name, true
}

// resolveNamed follows $ref-only schemas (A: {$ref: B}) to the first schema
// with a shape of its own and defines that one.
func (p *parser) resolveNamed(name, ptr string) TypeRef {
	start := name
	if t, ok := p.aliases[start]; ok {
		return t
	}
	seen := make(map[string]bool)
	for {
		if seen[name] {
			p.warn(ptr, "schema %q is a reference cycle with no concrete shape", start)
			p.aliases[start] = AnyType()
			return AnyType()
		}
		seen[name] = true

		ref := getString(p.spec.Schemas[name], "$ref")
		if ref == "" {
			break
		}
		next, ok := p.schemaRefName(ref)
		if !ok {
			p.warn(joinPointer(p.schemaBase, name), "unresolved schema reference %q", ref)
			p.aliases[start] = AnyType()
			return AnyType()
		}
		name = next
	}
	t := p.defineNamed(name)
	if name != start {
		p.aliases[start] = t
	}
	return t
}

// defineNamed registers the TypeDefinition for a schema before resolving
// its contents, so self and mutual references terminate.
func (p *parser) defineNamed(name string) TypeRef {
	typeName := p.typeNames[name]
	if _, done := p.spec.Types[typeName]; done {
		return ReferenceType(typeName)
	}
	node := p.spec.Schemas[name]
	ptr := joinPointer(p.schemaBase, name)
	def := &TypeDefinition{
		Name:        typeName,
		Description: getString(node, "description"),
		Origin:      OriginSchema,
	}
	p.spec.Types[typeName] = def

	switch {
	case !isMapping(node):
		anyType := AnyType()
		def.Alias = &anyType
	case unsupportedKeyword(node) != "":
		p.warn(ptr, "%s is not supported; typed as any", unsupportedKeyword(node))
		anyType := AnyType()
		def.Alias = &anyType
	case hasObjectShape(node):
		fields, cyclic := p.flatten(node, typeName, ptr, map[string]bool{name: true})
		if cyclic {
			p.warn(ptr, "schema %q is an allOf cycle with no concrete shape", name)
			anyType := AnyType()
			def.Alias = &anyType
			break
		}
		def.Fields = fields
	default:
		t := p.scalarOrArray(node, typeName, ptr)
		def.Alias = &t
	}
	return ReferenceType(typeName)
}

func (p *parser) resolveInline(n *yaml.Node, hint, ptr string) TypeRef {
	if kw := unsupportedKeyword(n); kw != "" {
		p.warn(ptr, "%s is not supported; typed as any", kw)
		return AnyType()
	}
	if !hasObjectShape(n) {
		return p.scalarOrArray(n, hint, ptr)
	}

	props := entries(get(n, "properties"))
	parts := items(get(n, "allOf"))
	switch {
	case len(props) == 0 && len(parts) == 0:
		// Free-form object.
		return AnyType()
	case len(props) == 0 && len(parts) == 1:
		return p.resolveSchema(parts[0], hint, ptr+"/allOf/0")
	}

	def := &TypeDefinition{
		Name:        p.reserveName(hint),
		Description: getString(n, "description"),
		Origin:      OriginSynthesized,
	}
	p.spec.Types[def.Name] = def
	def.Fields = p.objectFields(n, def.Name, ptr, map[string]bool{})
	return ReferenceType(def.Name)
}

// scalarOrArray handles every non-object shape. Swagger 2.0 non-body
// parameters are passed here directly.
func (p *parser) scalarOrArray(n *yaml.Node, hint, ptr string) TypeRef {
	switch t := schemaType(n); t {
	case "integer", "number":
		return PrimitiveType("number")
	case "string":
		return PrimitiveType("string")
	case "boolean":
		return PrimitiveType("boolean")
	case "array":
		elem := get(n, "items")
		if elem == nil {
			return ArrayOf(AnyType())
		}
		return ArrayOf(p.resolveSchema(elem, hint+"Item", ptr+"/items"))
	case "object":
		return p.resolveInline(n, hint, ptr)
	case "", "file", "null":
		return AnyType()
	default:
		p.warn(ptr, "unknown schema type %q; typed as any", t)
		return AnyType()
	}
}

// objectFields flattens allOf members and own properties into one field
// list. Later fields with the same name replace earlier ones in place.
// seen holds the named schemas on the current allOf chain.
func (p *parser) objectFields(n *yaml.Node, owner, ptr string, seen map[string]bool) []Field {
	fields, _ := p.flatten(n, owner, ptr, seen)
	return fields
}

// flatten is objectFields that also reports whether n has no shape of its
// own: no properties, and every allOf member ends in a cycle.
func (p *parser) flatten(n *yaml.Node, owner, ptr string, seen map[string]bool) ([]Field, bool) {
	var fields []Field
	index := make(map[string]int)
	add := func(f Field) {
		if i, ok := index[f.Name]; ok {
			fields[i] = f
			return
		}
		index[f.Name] = len(fields)
		fields = append(fields, f)
	}

	parts := items(get(n, "allOf"))
	cyclic := len(parts) > 0 && get(n, "properties") == nil
	for i, part := range parts {
		target, tptr, visited, ok, loop := p.schemaTarget(part, joinPointer(ptr, "allOf", strconv.Itoa(i)), seen)
		memberCyclic := loop
		if ok {
			members, inner := p.flatten(target, owner, tptr, seen)
			for _, f := range members {
				add(f)
			}
			memberCyclic = inner
		}
		cyclic = cyclic && memberCyclic
		for _, name := range visited {
			delete(seen, name)
		}
	}

	for _, e := range entries(get(n, "properties")) {
		add(Field{
			Name:     e.Key,
			Type:     p.resolveSchema(e.Value, owner+pascalCase(e.Key), joinPointer(ptr, "properties", e.Key)),
			Optional: true,
		})
	}

	for _, r := range items(get(n, "required")) {
		if i, ok := index[r.Value]; ok {
			fields[i].Optional = false
		}
	}
	return fields, cyclic
}

// schemaTarget follows an allOf member's $ref chain. visited lists the
// schema names it marked in seen; loop reports a chain that came back to
// a schema already on the allOf path.
func (p *parser) schemaTarget(n *yaml.Node, ptr string, seen map[string]bool) (target *yaml.Node, tptr string, visited []string, ok, loop bool) {
	for {
		ref := getString(n, "$ref")
		if ref == "" {
			return n, ptr, visited, isMapping(n), false
		}
		name, found := p.schemaRefName(ref)
		if !found {
			p.warn(ptr, "unresolved schema reference %q", ref)
			return nil, ptr, visited, false, false
		}
		if seen[name] {
			p.warn(ptr, "allOf cycle through schema %q", name)
			return nil, ptr, visited, false, true
		}
		seen[name] = true
		visited = append(visited, name)
		n, ptr = p.spec.Schemas[name], joinPointer(p.schemaBase, name)
	}
}

func hasObjectShape(n *yaml.Node) bool {
	return schemaType(n) == "object" || get(n, "properties") != nil || get(n, "allOf") != nil
}

func unsupportedKeyword(n *yaml.Node) string {
	for _, kw := range []string{"oneOf", "anyOf", "not"} {
		if get(n, kw) != nil {
			return kw
		}
	}
	return ""
}

// schemaType reads "type". OpenAPI 3.1 type arrays use their first
// non-null entry; a missing type with items implies an array.
func schemaType(n *yaml.Node) string {
	t := get(n, "type")
	switch {
	case t == nil:
		if get(n, "items") != nil {
			return "array"
		}
		return ""
	case t.Kind == yaml.SequenceNode:
		for _, v := range items(t) {
			if v.Value != "null" {
				return strings.TrimSpace(v.Value)
			}
		}
		return "null"
	default:
		return strings.TrimSpace(t.Value)
	}
}
