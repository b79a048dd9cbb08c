package spec

import "gopkg.in/yaml.v3"

// Spec Model: the normalized result of Parse, consumed read-only by emitters.

// Dialect identifies which specification format a document follows.
type Dialect string

const (
	OpenAPI3 Dialect = "OpenAPI3"
	Swagger2 Dialect = "Swagger2"
)

// DefaultTag is the service bucket for operations that declare no tag.
const DefaultTag = "default"

// InputRole is the field name an operation's input travels under when the
// generated function calls the request helper.
type InputRole string

const (
	RoleParams InputRole = "params"
	RoleData   InputRole = "data"
)

// Specification is the root parse result.
type Specification struct {
	Dialect Dialect
	Version string // raw marker value, e.g. "2.0" or "3.0.3"
	Title   string

	Paths   []PathEntry
	Schemas map[string]*yaml.Node

	Services []*Service
	Types    map[string]*TypeDefinition
	Warnings []Warning

	defaultService *Service
}

// PathEntry is one raw entry of the document's paths object.
type PathEntry struct {
	Path string
	Item *yaml.Node
}

// Service returns the service for tag. The default bucket is always known,
// even when no operation landed in it.
func (s *Specification) Service(tag string) (*Service, bool) {
	for _, svc := range s.Services {
		if svc.Tag == tag {
			return svc, true
		}
	}
	if tag == DefaultTag {
		if s.defaultService == nil {
			return &Service{Tag: DefaultTag}, true
		}
		return s.defaultService, true
	}
	return nil, false
}

// Tags lists service tags in document order of first appearance.
func (s *Specification) Tags() []string {
	out := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		out = append(out, svc.Tag)
	}
	return out
}

// Service groups the operations sharing one tag.
type Service struct {
	Tag        string
	Operations []*ApiOperation
}

// ApiOperation is one (method, path) pair of the document.
type ApiOperation struct {
	Method       string // upper case: GET, POST, ...
	Path         string
	Tag          string
	OperationID  string
	FunctionName string
	Summary      string
	Deprecated   bool

	InputRole InputRole
	// InputType names the Params or Data TypeDefinition.
	InputType    string
	RequestBody  *TypeRef // declared request body, if any
	ResponseType TypeRef
}

// TypeKind discriminates TypeRef.
type TypeKind int

const (
	KindAny TypeKind = iota
	KindPrimitive
	KindReference
	KindArray
)

// TypeRef is the closed variant describing a field or alias type.
type TypeRef struct {
	Kind      TypeKind
	Primitive string   // string|number|boolean when Kind == KindPrimitive
	Name      string   // TypeDefinition name when Kind == KindReference
	Elem      *TypeRef // element type when Kind == KindArray
}

// AnyType is the fallback for anything that cannot be typed.
func AnyType() TypeRef { return TypeRef{Kind: KindAny} }

// PrimitiveType is one of string, number or boolean.
func PrimitiveType(p string) TypeRef { return TypeRef{Kind: KindPrimitive, Primitive: p} }

// ReferenceType points at a TypeDefinition by name.
func ReferenceType(name string) TypeRef { return TypeRef{Kind: KindReference, Name: name} }

// ArrayOf wraps elem in an array type.
func ArrayOf(elem TypeRef) TypeRef { return TypeRef{Kind: KindArray, Elem: &elem} }

// IsAny reports whether t is the fallback type.
func (t TypeRef) IsAny() bool { return t.Kind == KindAny }

// Origin records where a TypeDefinition came from.
type Origin string

const (
	OriginSchema      Origin = "schema"
	OriginSynthesized Origin = "synthesized"
)

// TypeDefinition is a named structural type.
type TypeDefinition struct {
	Name        string
	Fields      []Field
	Alias       *TypeRef // set when the definition is not an object literal
	Description string
	Origin      Origin
}

// Field is one member of a TypeDefinition.
type Field struct {
	Name     string
	Type     TypeRef
	Optional bool
}

// Warning records a best-effort degradation found while parsing.
type Warning struct {
	Pointer string // JSON pointer, e.g. "#/paths/~1pets/get"
	Message string
}

func (w Warning) String() string {
	if w.Pointer == "" {
		return w.Message
	}
	return w.Pointer + ": " + w.Message
}
