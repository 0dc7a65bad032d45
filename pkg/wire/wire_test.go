package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocs() []Document {
	return []Document{
		{"id": "1", "name": "Alice", "age": 30},
		{"id": "2", "name": "Bob", "age": 25},
		{"id": "3", "name": "Charlie", "age": 35},
		{"id": "4", "name": "David", "age": 40},
	}
}

func TestRoundTripTagTree(t *testing.T) {
	for _, doc := range sampleDocs() {
		data, err := Encode(doc, TagTree)
		require.NoError(t, err)

		got, err := Decode(data, TagTree)
		require.NoError(t, err)
		assert.Equal(t, doc["id"], got["id"])
		assert.Equal(t, doc["name"], got["name"])
		assert.EqualValues(t, doc["age"], got["age"])
	}
}

func TestRoundTripPacked(t *testing.T) {
	for _, doc := range sampleDocs() {
		data, err := Encode(doc, Packed)
		require.NoError(t, err)

		got, err := Decode(data, Packed)
		require.NoError(t, err)
		assert.Equal(t, doc["id"], got["id"])
		assert.Equal(t, doc["name"], got["name"])
		assert.EqualValues(t, doc["age"], got["age"])
	}
}

func TestExtractFieldTagTree(t *testing.T) {
	data, err := Encode(Document{"id": "1", "name": "Alice", "age": 30}, TagTree)
	require.NoError(t, err)

	name, ok, err := ExtractField(data, "name", TagTree)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	age, ok, err := ExtractField(data, "age", TagTree)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "30", age)

	_, ok, err = ExtractField(data, "missing", TagTree)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractFieldPacked(t *testing.T) {
	data, err := Encode(Document{"id": "2", "name": "Bob", "age": 25}, Packed)
	require.NoError(t, err)

	name, ok, err := ExtractField(data, "name", Packed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)

	age, ok, err := ExtractField(data, "age", Packed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "25", age)
}

func TestExtractFieldNonScalar(t *testing.T) {
	doc := Document{"id": "5", "tags": []any{"a", "b"}}

	for _, format := range []Format{TagTree, Packed} {
		data, err := Encode(doc, format)
		require.NoError(t, err)

		_, _, err = ExtractField(data, "tags", format)
		require.Error(t, err)
		var notScalar *FieldNotScalar
		assert.ErrorAs(t, err, &notScalar)
	}
}

func TestRoundTripNested(t *testing.T) {
	doc := Document{
		"id": "6",
		"address": Document{
			"city": "Springfield",
			"zip":  "00000",
		},
		"tags": []any{"x", "y", "z"},
	}

	for _, format := range []Format{TagTree, Packed} {
		data, err := Encode(doc, format)
		require.NoError(t, err)

		got, err := Decode(data, format)
		require.NoError(t, err)

		addr, ok := got["address"].(Document)
		require.True(t, ok)
		assert.Equal(t, "Springfield", addr["city"])

		tags, ok := got["tags"].([]any)
		require.True(t, ok)
		assert.Equal(t, []any{"x", "y", "z"}, tags)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("not wire data"), TagTree)
	require.Error(t, err)
	var failure *DecodeFailure
	assert.ErrorAs(t, err, &failure)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("packed")
	require.NoError(t, err)
	assert.Equal(t, Packed, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, TagTree, f)

	_, err = ParseFormat("bogus")
	require.Error(t, err)
}

func TestValueStringCanonicalForm(t *testing.T) {
	assert.Equal(t, "null", Value{Kind: KindNull}.String())
	assert.Equal(t, "true", Value{Kind: KindBool, Bool: true}.String())
	assert.Equal(t, "30", Value{Kind: KindInt, Int: 30}.String())
	assert.Equal(t, "3.5", Value{Kind: KindFloat, Float: 3.5}.String())
	assert.Equal(t, "Alice", Value{Kind: KindString, Str: "Alice"}.String())
}
