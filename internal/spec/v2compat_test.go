package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixSwagger2Bodies_MultipleBodyMerged(t *testing.T) {
	t.Parallel()
	root, err := decodeDocument([]byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: query
        name: q
        type: string
      - in: body
        name: a
        required: true
        schema: { type: string }
      - in: body
        name: b
        schema: { type: integer }
      responses: { '200': { description: ok } }
`))
	require.NoError(t, err)
	require.True(t, fixSwagger2Bodies(root))

	params := items(get(get(get(get(root, "paths"), "/x"), "post"), "parameters"))
	require.Len(t, params, 2)
	body := params[0]
	assert.Equal(t, "body", getString(body, "in"))
	assert.Equal(t, "body", getString(body, "name"))
	schema := get(body, "schema")
	assert.Equal(t, "object", getString(schema, "type"))
	var names []string
	for _, e := range entries(get(schema, "properties")) {
		names = append(names, e.Key)
	}
	assert.Equal(t, []string{"a", "b"}, names)
	require.Len(t, items(get(schema, "required")), 1)
	assert.Equal(t, "a", items(get(schema, "required"))[0].Value)
	assert.Equal(t, "q", getString(params[1], "name"))
}

func TestFixSwagger2Bodies_BodyAndFormDataToFormData(t *testing.T) {
	t.Parallel()
	root, err := decodeDocument([]byte(`{
	  "swagger": "2.0",
	  "paths": {"/upload": {"post": {
	    "consumes": ["application/json"],
	    "parameters": [
	      {"in": "body", "name": "desc", "schema": {"$ref": "#/definitions/Desc"}},
	      {"in": "formData", "name": "file", "type": "file", "required": true}
	    ]
	  }}}
	}`))
	require.NoError(t, err)
	require.True(t, fixSwagger2Bodies(root))

	op := get(get(get(root, "paths"), "/upload"), "post")
	for _, p := range items(get(op, "parameters")) {
		assert.Equal(t, "formData", getString(p, "in"))
	}
	desc := items(get(op, "parameters"))[0]
	assert.Equal(t, "string", getString(desc, "type"))

	var consumes []string
	for _, c := range items(get(op, "consumes")) {
		consumes = append(consumes, c.Value)
	}
	assert.Equal(t, []string{"application/json", "multipart/form-data"}, consumes)
}

func TestFixSwagger2Bodies_NoChange(t *testing.T) {
	t.Parallel()
	root, err := decodeDocument([]byte(petsSwagger))
	require.NoError(t, err)
	assert.False(t, fixSwagger2Bodies(root))
}
