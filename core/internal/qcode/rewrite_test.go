package qcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteRefs(t *testing.T) {
	c := salesColl()

	t.Run("operand list", func(t *testing.T) {
		ex := &Exp{Op: OpGreaterThan, Args: []Value{RefVal("sales"), NumVal(10)}}
		got := RewriteRefs(ex, c, "item")

		assert.Equal(t, []Value{ElemRefVal("item", "sales"), NumVal(10)}, got.Args)
		assert.Equal(t, RefVal("sales"), ex.Args[0], "input must not change")
	})

	t.Run("equals value naming a field", func(t *testing.T) {
		ex := &Exp{Op: OpEquals, Field: "region", Val: StrVal("year")}
		got := RewriteRefs(ex, c, "item")

		assert.Equal(t, ElemRefVal("item", "year"), got.Val)
		assert.Equal(t, "region", got.Field)
	})

	t.Run("equals literal", func(t *testing.T) {
		ex := &Exp{Op: OpEquals, Field: "region", Val: StrVal("north")}
		assert.Equal(t, ex, RewriteRefs(ex, c, "item"))
	})

	t.Run("comparison leaf", func(t *testing.T) {
		ex := &Exp{Op: OpGreaterThan, Field: "sales", Val: NumVal(5)}
		assert.Equal(t, ex, RewriteRefs(ex, c, "item"))
	})

	t.Run("logical keeps shape", func(t *testing.T) {
		ex := &Exp{Op: OpOr, Children: []*Exp{
			{Op: OpEquals, Field: "region", Val: StrVal("year")},
			{Op: OpAnd, Children: []*Exp{
				{Op: OpLesserThan, Args: []Value{RefVal("year"), NumVal(2000)}},
			}},
		}}
		got := RewriteRefs(ex, c, "x")
		require.Len(t, got.Children, 2)

		assert.Equal(t, OpOr, got.Op)
		assert.Equal(t, ElemRefVal("x", "year"), got.Children[0].Val)
		assert.Equal(t, OpAnd, got.Children[1].Op)
		assert.Equal(t, ElemRefVal("x", "year"), got.Children[1].Children[0].Args[0])

		assert.Equal(t, StrVal("year"), ex.Children[0].Val, "input must not change")
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, RewriteRefs(nil, c, "item"))
	})
}
