package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeDocument turns raw bytes into an order-preserving node tree and
// returns the root mapping. Valid JSON is walked token by token so that
// tab-indented documents never reach the YAML scanner; anything else is
// handed to yaml.v3.
func decodeDocument(raw []byte) (*yaml.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	var root *yaml.Node
	if json.Valid(trimmed) {
		n, err := decodeJSONNode(json.NewDecoder(bytes.NewReader(trimmed)))
		if err != nil {
			return nil, err
		}
		root = n
	} else {
		var doc yaml.Node
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			return nil, fmt.Errorf("document is empty")
		}
		root = deref(doc.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root must be an object")
	}
	return root, nil
}

func decodeJSONNode(dec *json.Decoder) (*yaml.Node, error) {
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return jsonValueNode(dec, tok)
}

func jsonValueNode(dec *json.Decoder, tok json.Token) (*yaml.Node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string")
				}
				vt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := jsonValueNode(dec, vt)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				vt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := jsonValueNode(dec, vt)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(v.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		val := "false"
		if v {
			val = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: val}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// deref follows YAML aliases.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

type mapEntry struct {
	Key   string
	Value *yaml.Node
}

// entries lists mapping entries in document order, duplicates included.
func entries(n *yaml.Node) []mapEntry {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]mapEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, mapEntry{Key: n.Content[i].Value, Value: deref(n.Content[i+1])})
	}
	return out
}

// get returns the value for key. Duplicate keys resolve to the last one,
// matching how JSON decoders treat them.
func get(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	var found *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			found = deref(n.Content[i+1])
		}
	}
	return found
}

func getString(n *yaml.Node, key string) string {
	v := get(n, key)
	if v == nil || v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

func getBool(n *yaml.Node, key string) bool {
	v := get(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v.Value), "true")
}

func items(n *yaml.Node) []*yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, deref(c))
	}
	return out
}

func isMapping(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.MappingNode
}

// escapePointer escapes one JSON pointer reference token.
func escapePointer(token string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(token)
}

func joinPointer(base string, tokens ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(escapePointer(t))
	}
	return b.String()
}

// unescapeToken decodes one reference token, percent-encoding included.
func unescapeToken(tok string) string {
	if dec, err := url.PathUnescape(tok); err == nil {
		tok = dec
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(tok)
}

// lookupPointer resolves a local reference ("#/a/b") against root.
func lookupPointer(root *yaml.Node, ref string) (*yaml.Node, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	cur := deref(root)
	for _, raw := range strings.Split(ref[2:], "/") {
		tok := unescapeToken(raw)
		switch {
		case cur == nil:
			return nil, false
		case cur.Kind == yaml.MappingNode:
			cur = get(cur, tok)
		case cur.Kind == yaml.SequenceNode:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(cur.Content) {
				return nil, false
			}
			cur = deref(cur.Content[idx])
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}
