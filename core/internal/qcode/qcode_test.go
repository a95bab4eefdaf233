package qcode

import (
	"testing"

	"github.com/dosco/nlpipe/core/internal/sdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = "sales where year > 2020 and region is north unwind products " +
	"grouped by region only show region, sales if sales > 1000 then 'high' else 'low'"

func testSchema() *sdata.Schema {
	return sdata.NewSchema(
		salesColl(),
		sdata.NewCollection("orders",
			sdata.Field{Name: "customer", Type: sdata.TypeString},
			sdata.Field{Name: "amount", Type: sdata.TypeFloat},
			sdata.Field{Name: "items", Type: sdata.TypeArray},
			sdata.Field{Name: "qty", Type: sdata.TypeInt},
		),
	)
}

func compile(t *testing.T, text string) *QCode {
	t.Helper()
	qc, err := NewCompiler(testSchema()).Compile(text)
	require.NoError(t, err)
	return qc
}

func TestCompileScenario(t *testing.T) {
	qc := compile(t, scenario)

	assert.Equal(t, "sales", qc.Collection)
	assert.Equal(t, &Exp{Op: OpAnd, Children: []*Exp{
		{Op: OpGreaterThan, Field: "year", Val: NumVal(2020)},
		{Op: OpEquals, Field: "region", Val: StrVal("north")},
	}}, qc.Match)
	assert.Equal(t, []string{"products"}, qc.Unwinds)
	assert.Equal(t, &Group{Keys: []string{"region"}, Func: AggSum, Field: "sales"}, qc.Group)
	assert.Equal(t, "total_sales", qc.Group.MetricName())
	assert.Equal(t, []string{"region", "sales"}, qc.Project)

	assert.Equal(t, "sales_category", qc.SwitchName)
	require.NotNil(t, qc.Switch)
	assert.Equal(t, "high", qc.Switch.Branches[0].Then)
	assert.Equal(t, "low", qc.Switch.Default)

	assert.Nil(t, qc.Filter)
}

func TestCompileCollectionNotFound(t *testing.T) {
	for _, text := range []string{"", "show me the widgets", "salesman where year > 2020"} {
		qc, err := NewCompiler(testSchema()).Compile(text)
		assert.ErrorIs(t, err, ErrCollectionNotFound, text)
		assert.Nil(t, qc)
	}
	assert.Equal(t, "Collection not found.", ErrCollectionNotFound.Error())
}

func TestCompileCollection(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"sales", "sales"},
		{"Orders where qty > 1", "orders"},
		{"show orders, then sales", "orders"},
		{"(sales)", "sales"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.text).Collection)
		})
	}
}

func TestCompileMatch(t *testing.T) {
	t.Run("no where", func(t *testing.T) {
		assert.Nil(t, compile(t, "orders").Match)
	})

	t.Run("ends at stop word", func(t *testing.T) {
		qc := compile(t, "orders where customer is bob group by customer")
		assert.Equal(t, &Exp{Op: OpEquals, Field: "customer", Val: StrVal("bob")}, qc.Match)
	})

	t.Run("ends at end of text", func(t *testing.T) {
		qc := compile(t, "orders where qty >= 3")
		assert.Equal(t, &Exp{Op: OpGreaterOrEquals, Field: "qty", Val: NumVal(3)}, qc.Match)
	})

	t.Run("unparseable clause", func(t *testing.T) {
		assert.Nil(t, compile(t, "orders where it is sunny").Match)
	})

	t.Run("fractional literal", func(t *testing.T) {
		qc := compile(t, "sales where price > 3.5")
		assert.Equal(t, &Exp{Op: OpGreaterThan, Field: "price", Val: FloatVal(3.5)}, qc.Match)
	})

	t.Run("fraction inside and", func(t *testing.T) {
		qc := compile(t, "orders where amount >= 9.99 and customer is bob")
		require.NotNil(t, qc.Match)
		require.Len(t, qc.Match.Children, 2)
		assert.Equal(t, FloatVal(9.99), qc.Match.Children[0].Val)
	})
}

func TestCompileNonASCIINames(t *testing.T) {
	s := sdata.NewSchema(sdata.NewCollection("städte",
		sdata.Field{Name: "größe", Type: sdata.TypeInt},
		sdata.Field{Name: "straßen", Type: sdata.TypeArray},
		sdata.Field{Name: "land", Type: sdata.TypeString},
	))

	qc, err := NewCompiler(s).Compile("städte where land is österreich unwind straßen group by land")
	require.NoError(t, err)

	assert.Equal(t, &Exp{Op: OpEquals, Field: "land", Val: StrVal("österreich")}, qc.Match)
	assert.Equal(t, []string{"straßen"}, qc.Unwinds)

	qc, err = NewCompiler(s).Compile("städte where größe > 10")
	require.NoError(t, err)
	assert.Equal(t, &Exp{Op: OpGreaterThan, Field: "größe", Val: NumVal(10)}, qc.Match)
}

func TestCompileUnwinds(t *testing.T) {
	qc := compile(t, "sales unwind region unwind products unwind widgets")
	assert.Equal(t, []string{"products"}, qc.Unwinds)

	qc = compile(t, "sales unwind region")
	assert.Nil(t, qc.Unwinds)
}

func TestCompileGroup(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *Group
	}{
		{
			name: "count",
			text: "count orders group by customer",
			want: &Group{Keys: []string{"customer"}, Func: AggCount},
		},
		{
			name: "count without keys",
			text: "count orders",
			want: &Group{Func: AggCount},
		},
		{
			name: "average",
			text: "orders average amount group by customer",
			want: &Group{Keys: []string{"customer"}, Func: AggAvg, Field: "amount"},
		},
		{
			name: "sum wins over average",
			text: "orders total and average amount",
			want: &Group{Func: AggSum, Field: "amount"},
		},
		{
			name: "field without keyword is summed",
			text: "orders amount by customer",
			want: &Group{Func: AggSum, Field: "amount"},
		},
		{
			name: "keys filtered and split",
			text: "orders sum qty grouped by customer, brand and items",
			want: &Group{Keys: []string{"customer", "items"}, Func: AggSum, Field: "qty"},
		},
		{
			name: "duplicate keys kept",
			text: "orders sum qty grouped by customer, customer",
			want: &Group{Keys: []string{"customer", "customer"}, Func: AggSum, Field: "qty"},
		},
		{
			name: "schema order picks field",
			text: "orders total qty and amount",
			want: &Group{Func: AggSum, Field: "amount"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.text).Group)
		})
	}

	assert.Nil(t, compile(t, "orders where customer is bob").Group)
}

func TestCompileGroupIgnoresWhereFields(t *testing.T) {
	// year is only a filter, sales is the metric
	qc := compile(t, "sales where year > 2020 group by region total sales")
	require.NotNil(t, qc.Group)
	assert.Equal(t, "sales", qc.Group.Field)

	// a metric named only inside the where clause is still found
	qc = compile(t, "orders where qty > 5")
	require.NotNil(t, qc.Group)
	assert.Equal(t, "qty", qc.Group.Field)
}

func TestCompileProject(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"orders only show customer and items", []string{"customer", "items"}},
		{"orders only show customer, color, items", []string{"customer", "items"}},
		{"orders only show customer unwind items", []string{"customer"}},
		{"orders only show customer group by customer", []string{"customer"}},
		{"orders show customer", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.text).Project)
		})
	}
}

func TestCompileSwitchNeedsAggField(t *testing.T) {
	qc := compile(t, "orders total amount if qty > 5 then 'big' else 'small'")
	assert.Nil(t, qc.Switch)
	assert.Empty(t, qc.SwitchName)

	qc = compile(t, "orders total amount if amount > 5 then 'big' else 'small'")
	require.NotNil(t, qc.Switch)
	assert.Equal(t, "amount_category", qc.SwitchName)
}

func TestCompileFilter(t *testing.T) {
	qc := compile(t, "orders filter items where qty > 5")
	require.NotNil(t, qc.Filter)

	assert.Equal(t, "filtered_items", qc.FilterName)
	assert.Equal(t, "items", qc.Filter.Input)
	assert.Equal(t, ElementAlias, qc.Filter.As)
	assert.Equal(t, &Exp{Op: OpGreaterThan, Field: "qty", Val: NumVal(5)}, qc.Filter.Cond)

	qc = compile(t, "orders filter customer where qty > 5")
	assert.Nil(t, qc.Filter)
	assert.Empty(t, qc.FilterName)
}
