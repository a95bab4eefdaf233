package qcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArrayFilter(t *testing.T) {
	c := salesColl()

	af := ExtractArrayFilter("products", "where region is year", c)
	require.NotNil(t, af)

	assert.Equal(t, "products", af.Input)
	assert.Equal(t, ElementAlias, af.As)
	assert.Equal(t, &Exp{Op: OpEquals, Field: "region", Val: ElemRefVal("item", "year")}, af.Cond)
}

func TestExtractArrayFilterNone(t *testing.T) {
	c := salesColl()

	tests := []struct {
		name     string
		field    string
		fragment string
	}{
		{"not an array", "region", "where year > 2020"},
		{"unknown field", "widgets", "where year > 2020"},
		{"no where", "products", "year > 2020"},
		{"empty condition", "products", "where"},
		{"unknown condition field", "products", "where color is red"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ExtractArrayFilter(tt.field, tt.fragment, c))
		})
	}
}
