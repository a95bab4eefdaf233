package qcode

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dosco/nlpipe/core/internal/sdata"
)

// ErrCollectionNotFound is returned when no word of the input names a
// collection. Its text is part of the translation result.
var ErrCollectionNotFound = errors.New("Collection not found.") //nolint:stylecheck

type AggFunc int8

const (
	AggNone AggFunc = iota
	AggSum
	AggAvg
	AggCount
)

type Group struct {
	// Keys is nil when every document collapses into a single group.
	Keys  []string
	Func  AggFunc
	Field string
}

// MetricName is the name of the computed field in the $group stage.
func (g *Group) MetricName() string {
	switch g.Func {
	case AggSum:
		return "total_" + g.Field
	case AggAvg:
		return "avg_" + g.Field
	case AggCount:
		return "count"
	}
	return ""
}

// QCode is the compiled form of a sentence. Each part is optional and is
// rendered as its own pipeline stage.
type QCode struct {
	Collection string
	Match      *Exp
	Unwinds    []string
	Group      *Group
	Project    []string

	// SwitchName is the computed field holding Switch.
	SwitchName string
	Switch     *Switch

	// FilterName is the computed field holding Filter.
	FilterName string
	Filter     *ArrayFilter
}

type Compiler struct {
	s *sdata.Schema
}

func NewCompiler(s *sdata.Schema) *Compiler {
	return &Compiler{s: s}
}

var (
	// tokenRe splits input into words and single punctuation marks when
	// looking for the collection name. It is built once and only read.
	tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

	unwindRe  = regexp.MustCompile(`unwind (` + wordClass + `+)`)
	groupRe   = regexp.MustCompile(`group(?:ed)? by ([\p{L}\p{N}_ ,]+)`)
	projectRe = regexp.MustCompile(`only show (.+?)(?: if| unwind| group|$)`)
	switchAny = regexp.MustCompile(`if (.+?) then '(.+?)' else '(.+?)'`)
	filterRe  = regexp.MustCompile(`filter (` + wordClass + `+) where (.+)`)

	groupSplitRe   = regexp.MustCompile(`,|\band\b`)
	projectSplitRe = regexp.MustCompile(`,| and `)

	groupStopRe = regexp.MustCompile(`\b(?:only show|unwind|if|filter|where)\b`)
)

var matchStopWords = []string{"group", "unwind", "only show", "if"}

// Compile translates text into a QCode. The only error returned is
// ErrCollectionNotFound; every other part of the sentence that cannot be
// understood is left out of the result.
func (co *Compiler) Compile(text string) (*QCode, error) {
	coll := co.findCollection(text)
	if coll == nil {
		return nil, ErrCollectionNotFound
	}

	qc := &QCode{Collection: coll.Name}

	match, start, end := compileMatch(text, coll)
	qc.Match = match
	qc.Unwinds = compileUnwinds(text, coll)

	// prefer a metric named outside the where clause, fields used there
	// are usually filters
	var aggField string
	if start >= 0 {
		aggField = findAggField(text[:start]+text[end:], coll)
	}
	if aggField == "" {
		aggField = findAggField(text, coll)
	}
	qc.Group = compileGroup(text, coll, aggField)
	qc.Project = compileProject(text, coll)

	if aggField != "" {
		if m := switchAny.FindString(text); m != "" {
			if sw := ExtractSwitch(m, aggField); sw != nil {
				qc.SwitchName = aggField + "_category"
				qc.Switch = sw
			}
		}
	}

	if m := filterRe.FindStringSubmatch(text); m != nil {
		arrayField := m[1]
		if af := ExtractArrayFilter(arrayField, "where "+m[2], coll); af != nil {
			qc.FilterName = "filtered_" + arrayField
			qc.Filter = af
		}
	}

	return qc, nil
}

func (co *Compiler) findCollection(text string) *sdata.Collection {
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if c := co.s.Collection(tok); c != nil {
			return c
		}
	}
	return nil
}

// compileMatch parses the clause following the first "where" up to the
// earliest stop word. It also returns the span of the clause in text, or
// -1 when there is no "where".
func compileMatch(text string, c *sdata.Collection) (*Exp, int, int) {
	i := strings.Index(text, "where")
	if i == -1 {
		return nil, -1, -1
	}
	start := i + len("where")
	clause := text[start:]

	end := len(clause)
	for _, w := range matchStopWords {
		if j := strings.Index(clause, w); j != -1 && j < end {
			end = j
		}
	}
	clause = strings.TrimSpace(clause[:end])

	return ParseCondition(clause, c), start, start + end
}

func compileUnwinds(text string, c *sdata.Collection) []string {
	var fields []string
	for _, m := range unwindRe.FindAllStringSubmatch(text, -1) {
		if c.IsArray(m[1]) {
			fields = append(fields, m[1])
		}
	}
	return fields
}

func compileGroupKeys(text string, c *sdata.Collection) []string {
	m := groupRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	frag := m[1]
	if loc := groupStopRe.FindStringIndex(frag); loc != nil {
		frag = frag[:loc[0]]
	}

	var keys []string
	for _, f := range groupSplitRe.Split(frag, -1) {
		if f = strings.TrimSpace(f); c.Has(f) {
			keys = append(keys, f)
		}
	}
	return keys
}

// findAggField returns the first numeric field, in schema order, whose
// name occurs in text.
func findAggField(text string, c *sdata.Collection) string {
	for _, f := range c.Fields {
		if sdata.IsNumericType(f.Type) && strings.Contains(text, f.Name) {
			return f.Name
		}
	}
	return ""
}

func compileGroup(text string, c *sdata.Collection, aggField string) *Group {
	hasCount := strings.Contains(text, "count")
	if aggField == "" && !hasCount {
		return nil
	}

	g := &Group{Keys: compileGroupKeys(text, c)}

	switch {
	case aggField != "" && (strings.Contains(text, "sum") || strings.Contains(text, "total")):
		g.Func, g.Field = AggSum, aggField
	case aggField != "" && (strings.Contains(text, "average") || strings.Contains(text, "avg")):
		g.Func, g.Field = AggAvg, aggField
	case hasCount:
		g.Func = AggCount
	default:
		g.Func, g.Field = AggSum, aggField
	}
	return g
}

func compileProject(text string, c *sdata.Collection) []string {
	if !strings.Contains(text, "only show") {
		return nil
	}
	m := projectRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var fields []string
	for _, f := range projectSplitRe.Split(m[1], -1) {
		if f = strings.TrimSpace(f); c.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
