package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRefConstructors(t *testing.T) {
	t.Parallel()

	assert.True(t, AnyType().IsAny())
	assert.Equal(t, TypeRef{Kind: KindPrimitive, Primitive: "string"}, PrimitiveType("string"))
	assert.Equal(t, TypeRef{Kind: KindReference, Name: "User"}, ReferenceType("User"))

	elem := ReferenceType("User")
	arr := ArrayOf(elem)
	assert.Equal(t, KindArray, arr.Kind)
	require.NotNil(t, arr.Elem)
	assert.Equal(t, elem, *arr.Elem)

	// the element is copied, not aliased
	elem.Name = "Other"
	assert.Equal(t, "User", arr.Elem.Name)
	assert.False(t, arr.IsAny())
}
