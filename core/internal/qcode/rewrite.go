package qcode

import (
	"github.com/dosco/nlpipe/core/internal/sdata"
)

// RewriteRefs returns a copy of ex in which field references are scoped to
// the array element named alias, for use inside a $filter condition.
// Operand lists have "$field" references turned into "$$alias.field"
// and implicit-equals leaves have their value rewritten when it names a
// known field. The shape of the tree is unchanged.
func RewriteRefs(ex *Exp, c *sdata.Collection, alias string) *Exp {
	if ex == nil {
		return nil
	}
	n := ex.Clone()
	rewriteRefs(n, c, alias)
	return n
}

func rewriteRefs(ex *Exp, c *sdata.Collection, alias string) {
	if ex.IsLogical() {
		for _, child := range ex.Children {
			rewriteRefs(child, c, alias)
		}
		return
	}

	for i, a := range ex.Args {
		if a.Type == ValRef {
			ex.Args[i] = ElemRefVal(alias, a.Str)
		}
	}

	if ex.Args == nil && ex.Op == OpEquals &&
		ex.Val.Type == ValStr && c.Has(ex.Val.Str) {
		ex.Val = ElemRefVal(alias, ex.Val.Str)
	}
}
