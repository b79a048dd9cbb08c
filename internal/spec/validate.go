package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Validate lints raw against the OpenAPI rules kin-openapi knows. Swagger
// 2.0 documents are converted to OpenAPI 3 first. Findings come back as
// warnings; the error is reserved for documents Parse would reject and for
// a cancelled ctx.
//
// Validate never changes what Parse produces.
func Validate(ctx context.Context, raw []byte) ([]Warning, error) {
	root, err := decodeDocument(raw)
	if err != nil {
		return nil, &SpecError{Code: MalformedInput, Message: fmt.Sprintf("spec: malformed input: %v", err), Cause: err}
	}
	dialect, _, err := detectDialect(root)
	if err != nil {
		return nil, &SpecError{Code: UnsupportedVersion, Message: err.Error(), Cause: err}
	}

	var findings []Warning
	if dialect == Swagger2 && fixSwagger2Bodies(root) {
		findings = append(findings, Warning{Message: "validate: body parameters were normalized before conversion"})
	}
	data, err := nodeJSON(root)
	if err != nil {
		return nil, &SpecError{Code: ValidationError, Message: fmt.Sprintf("validate: %v", err), Cause: err}
	}

	doc, err := loadForValidation(ctx, dialect, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return append(findings, findingFor(err)), nil
	}
	if err := doc.Validate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		findings = append(findings, findingFor(err))
	}
	return findings, nil
}

func loadForValidation(ctx context.Context, dialect Dialect, data []byte) (*openapi3.T, error) {
	if dialect == Swagger2 {
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return nil, fmt.Errorf("decode swagger 2.0: %w", err)
		}
		doc, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, fmt.Errorf("convert v2→v3: %w", err)
		}
		return doc, nil
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = false
	return loader.LoadFromData(data)
}

func findingFor(err error) Warning {
	return Warning{Pointer: extractJSONPointer(err), Message: "validate: " + err.Error()}
}

// nodeJSON re-encodes a node tree as JSON for kin-openapi. Key order is
// irrelevant there.
func nodeJSON(root *yaml.Node) ([]byte, error) {
	v, err := nodeValue(root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func nodeValue(n *yaml.Node) (any, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		if (n.Tag == "!!int" || n.Tag == "!!float") && json.Valid([]byte(n.Value)) {
			return json.Number(n.Value), nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected node kind %v at line %d", n.Kind, n.Line)
	}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}
