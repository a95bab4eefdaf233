package qcode

import (
	"regexp"
	"strconv"
	"strings"
)

type Branch struct {
	Case *Exp
	Then string
}

// Switch is a conditional expression over one numeric field. Only a
// single branch plus the default is ever produced.
type Switch struct {
	Branches []Branch
	Default  string
}

var switchRe = regexp.MustCompile(`if (` + wordClass + `+) (>|<|=|>=|<=) (\d+) then '(` +
	wordClass + `+)' else '(` + wordClass + `+)'`)

// ExtractSwitch recognizes "if FIELD OP N then 'A' else 'B'" in fragment.
// It returns nil when the fragment does not match or when the condition
// is over a field other than field.
func ExtractSwitch(fragment, field string) *Switch {
	m := switchRe.FindStringSubmatch(strings.ToLower(fragment))
	if m == nil {
		return nil
	}
	condField, op, val, thenVal, elseVal := m[1], m[2], m[3], m[4], m[5]
	if condField != field {
		return nil
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil
	}

	ex := &Exp{Args: []Value{RefVal(field), NumVal(n)}}
	switch op {
	case ">":
		ex.Op = OpGreaterThan
	case "<":
		ex.Op = OpLesserThan
	case "=":
		ex.Op = OpEquals
	case ">=":
		ex.Op = OpGreaterOrEquals
	case "<=":
		ex.Op = OpLesserOrEquals
	}

	return &Switch{
		Branches: []Branch{{Case: ex, Then: thenVal}},
		Default:  elseVal,
	}
}
