package qcode

import (
	"strings"

	"github.com/dosco/nlpipe/core/internal/sdata"
)

// ElementAlias is the name bound to each array element inside a $filter.
const ElementAlias = "item"

type ArrayFilter struct {
	Input string
	As    string
	Cond  *Exp
}

// ExtractArrayFilter builds a $filter over arrayField from a fragment of
// the form "where CONDITION". It returns nil when arrayField is not an
// array in c or when the condition is empty.
func ExtractArrayFilter(arrayField, fragment string, c *sdata.Collection) *ArrayFilter {
	if !c.IsArray(arrayField) {
		return nil
	}

	_, cond, ok := strings.Cut(fragment, "where")
	if !ok {
		return nil
	}

	ex := ParseCondition(strings.TrimSpace(cond), c)
	if ex == nil {
		return nil
	}

	return &ArrayFilter{
		Input: arrayField,
		As:    ElementAlias,
		Cond:  RewriteRefs(ex, c, ElementAlias),
	}
}
