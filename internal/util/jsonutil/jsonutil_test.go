package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
	assert.Equal(t, "", StripFences("```json\n```"))
}

func TestObjectSlice(t *testing.T) {
	got, ok := ObjectSlice(`preamble {"a":1} trailer`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, got)

	got, ok = ObjectSlice(`{"outer":{"inner":2}} and more`)
	assert.True(t, ok)
	assert.Equal(t, `{"outer":{"inner":2}}`, got)

	_, ok = ObjectSlice("no braces at all")
	assert.False(t, ok)

	_, ok = ObjectSlice("} reversed {")
	assert.False(t, ok)
}

func TestUnmarshalFlexDirect(t *testing.T) {
	var v map[string]any
	require.NoError(t, UnmarshalFlex([]byte(`{"temp":"190°C"}`), &v))
	assert.Equal(t, "190°C", v["temp"])
}

func TestUnmarshalFlexDoubleEscaped(t *testing.T) {
	// A model that re-serializes its own output turns ° into a literal
	// backslash-u sequence inside the string value.
	var v map[string]any
	require.NoError(t, UnmarshalFlex([]byte(`{"temp":"190\\u00b0C"}`), &v))
	assert.Equal(t, "190°C", v["temp"])
}

func TestUnmarshalFlexInvalid(t *testing.T) {
	var v map[string]any
	assert.Error(t, UnmarshalFlex([]byte(`{"temp": nope}`), &v))
}
