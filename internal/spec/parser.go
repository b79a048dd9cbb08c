package spec

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes raw (JSON, or YAML as a courtesy), detects the dialect and
// builds the Specification: operations grouped by tag, schema references
// resolved into named TypeDefinitions. Resolution gaps never fail the
// parse; they degrade to the any type and are listed in Warnings.
func Parse(raw []byte) (*Specification, error) {
	root, err := decodeDocument(raw)
	if err != nil {
		return nil, &SpecError{Code: MalformedInput, Message: fmt.Sprintf("spec: malformed input: %v", err), Cause: err}
	}
	dialect, version, err := detectDialect(root)
	if err != nil {
		return nil, &SpecError{Code: UnsupportedVersion, Message: err.Error(), Cause: err}
	}

	p := newParser(root, dialect, version)
	p.collectSchemas()
	p.collectOperations()
	return p.spec, nil
}

// detectDialect inspects the top-level markers. Exactly one of
// "swagger: 2.x" and "openapi: 3.x" must be present.
func detectDialect(root *yaml.Node) (Dialect, string, error) {
	swagger := getString(root, "swagger")
	openapi := getString(root, "openapi")
	isV2 := strings.HasPrefix(swagger, "2.")
	isV3 := strings.HasPrefix(openapi, "3.")
	switch {
	case isV2 && isV3:
		return "", "", fmt.Errorf("spec: ambiguous version (both 'swagger: %s' and 'openapi: %s' present)", swagger, openapi)
	case isV2:
		return Swagger2, swagger, nil
	case isV3:
		return OpenAPI3, openapi, nil
	default:
		return "", "", fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
	}
}

type parser struct {
	root       *yaml.Node
	spec       *Specification
	schemaBase string // "#/definitions" or "#/components/schemas"

	typeNames map[string]string   // schema name -> TypeDefinition name
	taken     map[string]struct{} // every TypeDefinition name handed out
	aliases   map[string]TypeRef  // resolved $ref-only schemas

	services map[string]*Service
	listed   map[string]bool
	fnNames  map[string]map[string]struct{} // tag -> function names
}

func newParser(root *yaml.Node, dialect Dialect, version string) *parser {
	p := &parser{
		root: root,
		spec: &Specification{
			Dialect: dialect,
			Version: version,
			Title:   getString(get(root, "info"), "title"),
			Schemas: make(map[string]*yaml.Node),
			Types:   make(map[string]*TypeDefinition),
		},
		typeNames: make(map[string]string),
		taken:     make(map[string]struct{}),
		aliases:   make(map[string]TypeRef),
		services:  make(map[string]*Service),
		listed:    make(map[string]bool),
		fnNames:   make(map[string]map[string]struct{}),
	}
	def := &Service{Tag: DefaultTag}
	p.services[DefaultTag] = def
	p.spec.defaultService = def
	if dialect == Swagger2 {
		p.schemaBase = "#/definitions"
	} else {
		p.schemaBase = "#/components/schemas"
	}
	return p
}

func (p *parser) warn(pointer, format string, args ...any) {
	p.spec.Warnings = append(p.spec.Warnings, Warning{Pointer: pointer, Message: fmt.Sprintf(format, args...)})
}

// collectSchemas records the raw schema nodes and assigns every schema its
// type name up front, so synthesized names can never shadow one.
func (p *parser) collectSchemas() {
	var container *yaml.Node
	if p.spec.Dialect == Swagger2 {
		container = get(p.root, "definitions")
	} else {
		container = get(get(p.root, "components"), "schemas")
	}

	var order []string
	for _, e := range entries(container) {
		if _, dup := p.spec.Schemas[e.Key]; dup {
			p.warn(joinPointer(p.schemaBase, e.Key), "duplicate schema %q; the last definition wins", e.Key)
		} else {
			order = append(order, e.Key)
		}
		p.spec.Schemas[e.Key] = e.Value
	}

	// Names that are already identifiers keep their spelling; sanitized
	// names yield to them.
	for _, name := range order {
		if IsIdentifier(name) && !isReserved(name) {
			p.typeNames[name] = name
			p.taken[name] = struct{}{}
		}
	}
	for _, name := range order {
		if _, done := p.typeNames[name]; done {
			continue
		}
		typeName := typeIdentifier(name)
		if _, clash := p.taken[typeName]; clash {
			unique := p.uniqueName(typeName)
			p.warn(joinPointer(p.schemaBase, name), "schema %q renamed to %q to avoid a name collision", name, unique)
			typeName = unique
		}
		p.typeNames[name] = typeName
		p.taken[typeName] = struct{}{}
	}
}

func (p *parser) uniqueName(base string) string {
	for i := 2; ; i++ {
		candidate := base + strconv.Itoa(i)
		if _, clash := p.taken[candidate]; !clash {
			return candidate
		}
	}
}

// reserveName claims a name for a synthesized TypeDefinition.
func (p *parser) reserveName(hint string) string {
	name := hint
	if !IsIdentifier(name) || isReserved(name) {
		name = typeIdentifier(name)
	}
	if _, clash := p.taken[name]; clash {
		name = p.uniqueName(name)
	}
	p.taken[name] = struct{}{}
	return name
}

var httpVerbs = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {}, "options": {}, "head": {}, "patch": {}, "trace": {},
}

func (p *parser) collectOperations() {
	for _, pe := range entries(get(p.root, "paths")) {
		p.spec.Paths = append(p.spec.Paths, PathEntry{Path: pe.Key, Item: pe.Value})

		itemPtr := joinPointer("#/paths", pe.Key)
		item, itemPtr, ok := p.follow(pe.Value, itemPtr)
		if !ok || !isMapping(item) {
			continue
		}
		for _, oe := range entries(item) {
			method := strings.ToLower(oe.Key)
			if _, verb := httpVerbs[method]; !verb || !isMapping(oe.Value) {
				continue
			}
			op := p.buildOperation(pe.Key, method, item, itemPtr, oe.Value, joinPointer(itemPtr, oe.Key))
			p.addOperation(op)
		}
	}
}

func (p *parser) addOperation(op *ApiOperation) {
	svc, ok := p.services[op.Tag]
	if !ok {
		svc = &Service{Tag: op.Tag}
		p.services[op.Tag] = svc
	}
	if !p.listed[op.Tag] {
		p.listed[op.Tag] = true
		p.spec.Services = append(p.spec.Services, svc)
	}
	svc.Operations = append(svc.Operations, op)
}

// follow resolves a chain of non-schema $refs (path items, parameters,
// request bodies, responses). ok is false when the chain is broken.
func (p *parser) follow(n *yaml.Node, pointer string) (*yaml.Node, string, bool) {
	seen := make(map[string]bool)
	for {
		ref := getString(n, "$ref")
		if ref == "" {
			return n, pointer, true
		}
		if seen[ref] {
			p.warn(pointer, "reference cycle at %q", ref)
			return nil, pointer, false
		}
		seen[ref] = true
		target, ok := lookupPointer(p.root, ref)
		if !ok {
			p.warn(pointer, "unresolved reference %q", ref)
			return nil, pointer, false
		}
		n, pointer = target, ref
	}
}
