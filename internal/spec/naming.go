package spec

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// reservedWords cannot be used as generated function or type names.
var reservedWords = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {},
	"export": {}, "extends": {}, "false": {}, "finally": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "in": {}, "instanceof": {}, "new": {}, "null": {},
	"return": {}, "super": {}, "switch": {}, "this": {}, "throw": {}, "true": {},
	"try": {}, "typeof": {}, "var": {}, "void": {}, "while": {}, "with": {},
	"let": {}, "static": {}, "yield": {}, "await": {}, "implements": {},
	"interface": {}, "package": {}, "private": {}, "protected": {}, "public": {},
	"any": {}, "number": {}, "string": {}, "boolean": {}, "never": {}, "unknown": {},
	"object": {}, "symbol": {}, "bigint": {}, "request": {}, "Types": {},
}

func isReserved(s string) bool {
	_, ok := reservedWords[s]
	return ok
}

// IsIdentifier reports whether s is usable as a TypeScript identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r))
}

// pascalCase upper-cases the first letter of every word; anything that is
// not a letter or digit separates words and is dropped.
//
//	"user-profile" -> "UserProfile"
//	"v1.items"     -> "V1Items"
func pascalCase(s string) string {
	titleCaser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, isSeparator) {
		b.WriteString(titleCaser.String(part))
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// FunctionNameFor derives the function name for an operation without an
// operationId: the lower-cased method followed by the PascalCased path,
// path parameters rendered as "By<Name>".
//
//	GET /user/{id}  -> getUserById
//	POST /order     -> postOrder
func FunctionNameFor(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && strings.Count(seg, "{") == 1 {
			b.WriteString("By")
			b.WriteString(pascalCase(seg[1 : len(seg)-1]))
			continue
		}
		// Segments mixing literals and parameters, e.g. "file.{ext}".
		seg = strings.NewReplacer("{", " by ", "}", " ").Replace(seg)
		b.WriteString(pascalCase(seg))
	}
	return b.String()
}

// camelIdentifier rewrites s into a camelCase identifier, or "" when
// nothing usable remains.
func camelIdentifier(s string) string {
	out := lowerFirst(pascalCase(s))
	if out == "" {
		return ""
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	return out
}

// typeIdentifier turns a schema name into a type name. Valid identifiers
// are kept verbatim.
func typeIdentifier(s string) string {
	if IsIdentifier(s) && !isReserved(s) {
		return s
	}
	out := pascalCase(s)
	if out == "" {
		return "Schema"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	if isReserved(out) {
		out += "_"
	}
	return out
}
