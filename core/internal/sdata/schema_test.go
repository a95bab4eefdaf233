package sdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesYAML = `
sales:
  fields:
    year: int
    region: string
    products: array
    sales: int
orders:
  fields:
    customer: string
    amount: float
`

func TestParseSchemaYAML(t *testing.T) {
	s, err := ParseSchema([]byte(salesYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"sales", "orders"}, s.Names())

	c := s.Collection("sales")
	require.NotNil(t, c)
	assert.Equal(t, []Field{
		{Name: "year", Type: TypeInt},
		{Name: "region", Type: TypeString},
		{Name: "products", Type: TypeArray},
		{Name: "sales", Type: TypeInt},
	}, c.Fields)

	assert.True(t, c.IsNumeric("year"))
	assert.True(t, c.IsArray("products"))
	assert.False(t, c.IsArray("region"))
	assert.False(t, c.Has("color"))
	assert.True(t, s.Collection("orders").IsNumeric("amount"))
	assert.Nil(t, s.Collection("widgets"))
}

func TestParseSchemaJSONKeepsOrder(t *testing.T) {
	js := `{"z": {"fields": {"b": "int", "a": "string", "c": "array"}}, "a": {"fields": {}}}`

	s, err := ParseSchema([]byte(js))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a"}, s.Names())
	assert.Equal(t, []Field{
		{Name: "b", Type: TypeInt},
		{Name: "a", Type: TypeString},
		{Name: "c", Type: TypeArray},
	}, s.Collection("z").Fields)
	assert.Empty(t, s.Collection("a").Fields)
}

func TestParseSchemaEdgeCases(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		s, err := ParseSchema(nil)
		require.NoError(t, err)
		assert.Empty(t, s.Names())
	})

	t.Run("collection without fields", func(t *testing.T) {
		s, err := ParseSchema([]byte("logs:\n"))
		require.NoError(t, err)
		require.NotNil(t, s.Collection("logs"))
		assert.Empty(t, s.Collection("logs").Fields)
	})

	t.Run("unknown type tag kept", func(t *testing.T) {
		s, err := ParseSchema([]byte("logs: {fields: {at: date}}"))
		require.NoError(t, err)

		typ, ok := s.Collection("logs").Type("at")
		assert.True(t, ok)
		assert.Equal(t, "date", typ)
		assert.False(t, s.Collection("logs").IsNumeric("at"))
	})

	t.Run("repeated field keeps position", func(t *testing.T) {
		c := NewCollection("c",
			Field{Name: "a", Type: TypeInt},
			Field{Name: "b", Type: TypeInt},
			Field{Name: "a", Type: TypeString})
		assert.Equal(t, []Field{{Name: "a", Type: TypeString}, {Name: "b", Type: TypeInt}}, c.Fields)
	})
}

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a mapping", "- sales\n- orders\n"},
		{"collection not a mapping", "sales: [year]\n"},
		{"fields not a mapping", "sales: {fields: [year]}\n"},
		{"type not a scalar", "sales: {fields: {year: {type: int}}}\n"},
		{"invalid yaml", "sales: {fields: \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	s, err := ParseSchema([]byte(salesYAML))
	require.NoError(t, err)

	js, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"sales":{"fields":{"year":"int","region":"string","products":"array","sales":"int"}},`+
		`"orders":{"fields":{"customer":"string","amount":"float"}}}`, string(js))

	y, err := s.Encode()
	require.NoError(t, err)

	s2, err := ParseSchema(y)
	require.NoError(t, err)
	assert.Equal(t, s.Names(), s2.Names())
	assert.Equal(t, s.Collection("sales").Fields, s2.Collection("sales").Fields)
	assert.Equal(t, s.Hash(), s2.Hash())
}

func TestSchemaHash(t *testing.T) {
	a := NewSchema(NewCollection("c", Field{Name: "x", Type: TypeInt}))
	b := NewSchema(NewCollection("c", Field{Name: "x", Type: TypeInt}))
	c := NewSchema(NewCollection("c", Field{Name: "x", Type: TypeString}))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestSchemaMarshalJSON(t *testing.T) {
	js, err := NewSchema().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(js))

	s := NewSchema(
		NewCollection(`a"b`, Field{Name: "größe", Type: TypeInt}),
		NewCollection("empty"),
	)
	js, err = s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a\"b":{"fields":{"größe":"int"}},"empty":{"fields":{}}}`, string(js))
}
