package spec

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type paramInfo struct {
	Name     string
	In       string // path|query|header|cookie|body|formData
	Required bool
	Node     *yaml.Node
	Pointer  string
}

func (p *parser) buildOperation(path, method string, item *yaml.Node, itemPtr string, node *yaml.Node, ptr string) *ApiOperation {
	op := &ApiOperation{
		Method:      strings.ToUpper(method),
		Path:        path,
		Tag:         firstTag(node),
		OperationID: getString(node, "operationId"),
		Summary:     getString(node, "summary"),
		Deprecated:  getBool(node, "deprecated"),
	}
	op.FunctionName = p.functionName(op, ptr)
	base := upperFirst(op.FunctionName)

	params := p.mergeParameters(get(item, "parameters"), itemPtr, get(node, "parameters"), ptr)
	switch op.Method {
	case "POST", "PUT", "PATCH":
		op.InputRole = RoleData
		op.InputType, op.RequestBody = p.dataDefinition(base+"Data", node, params, ptr)
	default:
		op.InputRole = RoleParams
		op.InputType = p.paramsDefinition(base+"Params", params)
	}
	op.ResponseType = p.responseType(node, base+"Response", ptr)
	return op
}

func firstTag(op *yaml.Node) string {
	for _, t := range items(get(op, "tags")) {
		if t.Kind != yaml.ScalarNode {
			continue
		}
		if tag := strings.TrimSpace(t.Value); tag != "" {
			return tag
		}
		break
	}
	return DefaultTag
}

// functionName applies the operationId-or-synthesize rule and keeps names
// unique within the operation's tag.
func (p *parser) functionName(op *ApiOperation, ptr string) string {
	name := op.OperationID
	switch {
	case name == "":
		name = FunctionNameFor(op.Method, op.Path)
	case !IsIdentifier(name):
		sanitized := camelIdentifier(name)
		if sanitized == "" {
			sanitized = FunctionNameFor(op.Method, op.Path)
		}
		p.warn(ptr, "operationId %q is not a valid identifier; using %q", name, sanitized)
		name = sanitized
	}
	if isReserved(name) {
		p.warn(ptr, "function name %q is a reserved word; using %q", name, name+"_")
		name += "_"
	}

	used, ok := p.fnNames[op.Tag]
	if !ok {
		used = make(map[string]struct{})
		p.fnNames[op.Tag] = used
	}
	if _, dup := used[name]; dup {
		unique := name
		for i := 2; ; i++ {
			unique = name + strconv.Itoa(i)
			if _, clash := used[unique]; !clash {
				break
			}
		}
		p.warn(ptr, "duplicate function name %q in tag %q; using %q", name, op.Tag, unique)
		name = unique
	}
	used[name] = struct{}{}
	return name
}

// mergeParameters combines path-level and operation-level parameters.
// Operation-level entries override path-level ones with the same (in, name)
// and keep the overridden entry's position.
func (p *parser) mergeParameters(pathLevel *yaml.Node, pathPtr string, opLevel *yaml.Node, opPtr string) []paramInfo {
	var out []paramInfo
	index := make(map[string]int)
	add := func(list *yaml.Node, base string) {
		for i, raw := range items(list) {
			n, nptr, ok := p.follow(raw, joinPointer(base, "parameters", strconv.Itoa(i)))
			if !ok {
				continue
			}
			info := paramInfo{
				Name:     getString(n, "name"),
				In:       getString(n, "in"),
				Required: getBool(n, "required"),
				Node:     n,
				Pointer:  nptr,
			}
			if info.Name == "" {
				continue
			}
			if info.In == "path" {
				info.Required = true
			}
			key := info.In + ":" + info.Name
			if idx, seen := index[key]; seen {
				out[idx] = info
				continue
			}
			index[key] = len(out)
			out = append(out, info)
		}
	}
	add(pathLevel, pathPtr)
	add(opLevel, opPtr)
	return out
}

func (p *parser) paramsDefinition(hint string, params []paramInfo) string {
	def := &TypeDefinition{Name: p.reserveName(hint), Origin: OriginSynthesized}
	p.spec.Types[def.Name] = def
	def.Fields = p.parameterFields(def.Name, params, "path", "query")
	return def.Name
}

func (p *parser) parameterFields(owner string, params []paramInfo, locations ...string) []Field {
	var fields []Field
	for _, pi := range params {
		if !containsString(locations, pi.In) {
			continue
		}
		fields = append(fields, Field{
			Name:     pi.Name,
			Type:     p.parameterType(pi, owner+pascalCase(pi.Name)),
			Optional: !pi.Required,
		})
	}
	return fields
}

// parameterType reads a parameter's schema. Swagger 2.0 non-body
// parameters carry type/items/format inline, so the parameter node itself
// is the schema.
func (p *parser) parameterType(pi paramInfo, hint string) TypeRef {
	if schema := get(pi.Node, "schema"); schema != nil {
		return p.resolveSchema(schema, hint, pi.Pointer+"/schema")
	}
	if content := get(pi.Node, "content"); content != nil {
		key, media := pickMedia(content)
		return p.resolveSchema(get(media, "schema"), hint, joinPointer(pi.Pointer, "content", key, "schema"))
	}
	if p.spec.Dialect == Swagger2 {
		return p.scalarOrArray(pi.Node, hint, pi.Pointer)
	}
	return AnyType()
}

// dataDefinition builds the Data type of a POST/PUT/PATCH operation and
// returns its name plus the declared body type, if any.
func (p *parser) dataDefinition(hint string, node *yaml.Node, params []paramInfo, ptr string) (string, *TypeRef) {
	def := &TypeDefinition{Name: p.reserveName(hint), Origin: OriginSynthesized}
	p.spec.Types[def.Name] = def
	self := ReferenceType(def.Name)

	var bodies []paramInfo
	for _, pi := range params {
		if pi.In == "body" {
			bodies = append(bodies, pi)
		}
	}

	switch {
	case len(bodies) > 1:
		// Invalid in Swagger 2.0 but common; merge into one object.
		for _, b := range bodies {
			def.Fields = append(def.Fields, Field{
				Name:     b.Name,
				Type:     p.resolveSchema(get(b.Node, "schema"), def.Name+pascalCase(b.Name), b.Pointer+"/schema"),
				Optional: !b.Required,
			})
		}
		return def.Name, &self
	case len(bodies) == 1:
		return def.Name, p.fillBody(def, get(bodies[0].Node, "schema"), bodies[0].Pointer+"/schema")
	}

	if rb := get(node, "requestBody"); rb != nil {
		body, bptr, ok := p.follow(rb, ptr+"/requestBody")
		if ok {
			key, media := pickMedia(get(body, "content"))
			return def.Name, p.fillBody(def, get(media, "schema"), joinPointer(bptr, "content", key, "schema"))
		}
		anyType := AnyType()
		def.Alias = &anyType
		return def.Name, &anyType
	}

	if fields := p.parameterFields(def.Name, params, "formData"); len(fields) > 0 {
		def.Fields = fields
		return def.Name, &self
	}
	def.Fields = p.parameterFields(def.Name, params, "path", "query")
	return def.Name, nil
}

// fillBody shapes def from a body schema: inline objects contribute their
// fields, anything else becomes an alias.
func (p *parser) fillBody(def *TypeDefinition, schema *yaml.Node, ptr string) *TypeRef {
	if schema != nil && getString(schema, "$ref") == "" && hasObjectShape(schema) {
		def.Description = getString(schema, "description")
		def.Fields = p.objectFields(schema, def.Name, ptr, map[string]bool{})
		self := ReferenceType(def.Name)
		return &self
	}
	t := p.resolveSchema(schema, def.Name+"Body", ptr)
	def.Alias = &t
	return &t
}

func (p *parser) responseType(node *yaml.Node, hint, ptr string) TypeRef {
	code, resp := pickResponse(get(node, "responses"))
	if resp == nil {
		return AnyType()
	}
	resp, rptr, ok := p.follow(resp, joinPointer(ptr, "responses", code))
	if !ok {
		return AnyType()
	}
	if p.spec.Dialect == Swagger2 {
		schema := get(resp, "schema")
		if schema == nil {
			return AnyType()
		}
		return p.resolveSchema(schema, hint, rptr+"/schema")
	}
	key, media := pickMedia(get(resp, "content"))
	schema := get(media, "schema")
	if schema == nil {
		return AnyType()
	}
	return p.resolveSchema(schema, hint, joinPointer(rptr, "content", key, "schema"))
}

// pickResponse prefers 200, then 201, then any other 2xx, then default,
// then whatever is declared first.
func pickResponse(responses *yaml.Node) (string, *yaml.Node) {
	list := entries(responses)
	if len(list) == 0 {
		return "", nil
	}
	for _, want := range []string{"200", "201"} {
		if n := get(responses, want); n != nil {
			return want, n
		}
	}
	for _, e := range list {
		if strings.HasPrefix(e.Key, "2") {
			return e.Key, e.Value
		}
	}
	if n := get(responses, "default"); n != nil {
		return "default", n
	}
	return list[0].Key, list[0].Value
}

// pickMedia prefers application/json, then any JSON-ish media type, then
// the first one declared.
func pickMedia(content *yaml.Node) (string, *yaml.Node) {
	list := entries(content)
	if len(list) == 0 {
		return "", nil
	}
	if n := get(content, "application/json"); n != nil {
		return "application/json", n
	}
	for _, e := range list {
		if strings.Contains(strings.ToLower(e.Key), "json") {
			return e.Key, e.Value
		}
	}
	return list[0].Key, list[0].Value
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
