package qcode

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dosco/nlpipe/core/internal/sdata"
)

type ExpOp int8

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpEquals
	OpGreaterThan
	OpGreaterOrEquals
	OpLesserThan
	OpLesserOrEquals
)

// String returns the MongoDB operator key for the op.
func (op ExpOp) String() string {
	switch op {
	case OpAnd:
		return "$and"
	case OpOr:
		return "$or"
	case OpEquals:
		return "$eq"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterOrEquals:
		return "$gte"
	case OpLesserThan:
		return "$lt"
	case OpLesserOrEquals:
		return "$lte"
	}
	return ""
}

type ValType int8

const (
	ValStr ValType = iota
	ValNum
	ValFloat
	ValRef
	ValElemRef
)

// Value is a literal or a field reference. For ValRef and ValElemRef
// Str holds the field name.
type Value struct {
	Type  ValType
	Str   string
	Num   int64
	Float float64
	Alias string
}

func StrVal(s string) Value { return Value{Type: ValStr, Str: s} }
func NumVal(n int64) Value { return Value{Type: ValNum, Num: n} }
func FloatVal(f float64) Value { return Value{Type: ValFloat, Float: f} }
func RefVal(field string) Value { return Value{Type: ValRef, Str: field} }
func ElemRefVal(alias, field string) Value {
	return Value{Type: ValElemRef, Str: field, Alias: alias}
}

// Exp is a node of a condition tree.
//
// Logical nodes (OpAnd, OpOr) only use Children. Leaves come in two forms:
// the query form keyed by Field, where OpEquals is the implicit-equals leaf
// {field: value} and the other ops render as {field: {op: value}}; and the
// expression form used when Args is set, rendered as {op: [args...]}.
type Exp struct {
	Op       ExpOp
	Field    string
	Val      Value
	Args     []Value
	Children []*Exp
}

func (ex *Exp) IsLogical() bool {
	return ex != nil && (ex.Op == OpAnd || ex.Op == OpOr)
}

// Clone returns a deep copy of the tree.
func (ex *Exp) Clone() *Exp {
	if ex == nil {
		return nil
	}
	n := *ex
	if ex.Args != nil {
		n.Args = append([]Value(nil), ex.Args...)
	}
	if ex.Children != nil {
		n.Children = make([]*Exp, len(ex.Children))
		for i, c := range ex.Children {
			n.Children[i] = c.Clone()
		}
	}
	return &n
}

// wordClass matches the letters of any script, unlike \w.
const wordClass = `[\p{L}\p{N}_]`

// compRe matches "FIELD OP VALUE". VALUE may carry a sign and a
// fractional part.
var compRe = regexp.MustCompile(`^(` + wordClass + `+)\s*(>=|<=|>|<|=|is)\s*(-?` +
	wordClass + `+(?:\.` + wordClass + `+)?)`)

// ParseCondition turns a clause such as "year > 2020 and region is north"
// into a condition tree over the fields of c. Conjunctions are split first
// on " and ", then on " or ", with no further precedence. Clauses that do
// not parse, or that name unknown fields, yield nil and are dropped from
// their parent.
func ParseCondition(text string, c *sdata.Collection) *Exp {
	text = strings.ToLower(text)

	switch {
	case strings.Contains(text, " and "):
		return parseLogical(OpAnd, strings.Split(text, " and "), c)
	case strings.Contains(text, " or "):
		return parseLogical(OpOr, strings.Split(text, " or "), c)
	}
	return parseComparison(text, c)
}

func parseLogical(op ExpOp, parts []string, c *sdata.Collection) *Exp {
	ex := &Exp{Op: op}
	for _, p := range parts {
		if cex := ParseCondition(strings.TrimSpace(p), c); cex != nil {
			ex.Children = append(ex.Children, cex)
		}
	}
	if len(ex.Children) == 0 {
		return nil
	}
	return ex
}

func parseComparison(text string, c *sdata.Collection) *Exp {
	m := compRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	field, op, val := m[1], m[2], m[3]

	ft, ok := c.Type(field)
	if !ok {
		return nil
	}

	v := StrVal(val)
	if sdata.IsNumericType(ft) {
		v = coerceNumber(val)
	}

	ex := &Exp{Field: field, Val: v}
	switch op {
	case ">":
		ex.Op = OpGreaterThan
	case ">=":
		ex.Op = OpGreaterOrEquals
	case "<":
		ex.Op = OpLesserThan
	case "<=":
		ex.Op = OpLesserOrEquals
	case "=", "is":
		ex.Op = OpEquals
	default:
		return nil
	}
	return ex
}

// coerceNumber converts a literal to a number, narrowing whole values to
// integers. Literals that are not numbers stay strings.
func coerceNumber(s string) Value {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return StrVal(s)
	}
	if f == math.Trunc(f) && !math.IsInf(f, 0) &&
		f >= math.MinInt64 && f < math.MaxInt64 {
		return NumVal(int64(f))
	}
	return FloatVal(f)
}
