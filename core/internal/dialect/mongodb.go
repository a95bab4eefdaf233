package dialect

import (
	"github.com/dosco/nlpipe/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MongoDBDialect renders a QCode as an aggregation pipeline. Documents
// are built as bson.D so stage and key order is kept when encoded.
type MongoDBDialect struct{}

func (d *MongoDBDialect) Name() string {
	return "mongodb"
}

// RenderPipeline returns the stages of qc in the fixed order match,
// unwind, group, project (selection), project (switch) and
// project (filter). Parts of qc that are empty produce no stage.
func (d *MongoDBDialect) RenderPipeline(qc *qcode.QCode) bson.A {
	pipeline := bson.A{}

	if qc.Match != nil {
		pipeline = append(pipeline, stage("$match", d.RenderExp(qc.Match)))
	}

	for _, f := range qc.Unwinds {
		pipeline = append(pipeline, stage("$unwind", fieldRef(f)))
	}

	if qc.Group != nil {
		pipeline = append(pipeline, stage("$group", d.renderGroup(qc.Group)))
	}

	if len(qc.Project) != 0 {
		proj := make(bson.D, 0, len(qc.Project))
		for _, f := range qc.Project {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		pipeline = append(pipeline, stage("$project", proj))
	}

	if qc.Switch != nil {
		pipeline = append(pipeline, stage("$project", bson.D{
			{Key: qc.SwitchName, Value: d.renderSwitch(qc.Switch)},
		}))
	}

	if qc.Filter != nil {
		pipeline = append(pipeline, stage("$project", bson.D{
			{Key: qc.FilterName, Value: d.renderFilter(qc.Filter)},
		}))
	}

	return pipeline
}

func (d *MongoDBDialect) renderGroup(g *qcode.Group) bson.D {
	var id any
	if len(g.Keys) != 0 {
		keys := bson.D{}
		seen := make(map[string]struct{}, len(g.Keys))
		for _, k := range g.Keys {
			// a document cannot hold the same key twice
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, bson.E{Key: k, Value: fieldRef(k)})
		}
		id = keys
	}

	var acc bson.D
	switch g.Func {
	case qcode.AggSum:
		acc = bson.D{{Key: "$sum", Value: fieldRef(g.Field)}}
	case qcode.AggAvg:
		acc = bson.D{{Key: "$avg", Value: fieldRef(g.Field)}}
	case qcode.AggCount:
		acc = bson.D{{Key: "$sum", Value: 1}}
	}

	return bson.D{
		{Key: "_id", Value: id},
		{Key: g.MetricName(), Value: acc},
	}
}

func (d *MongoDBDialect) renderSwitch(sw *qcode.Switch) bson.D {
	branches := make(bson.A, 0, len(sw.Branches))
	for _, b := range sw.Branches {
		branches = append(branches, bson.D{
			{Key: "case", Value: d.RenderExp(b.Case)},
			{Key: "then", Value: b.Then},
		})
	}
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: branches},
		{Key: "default", Value: sw.Default},
	}}}
}

func (d *MongoDBDialect) renderFilter(af *qcode.ArrayFilter) bson.D {
	return bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: fieldRef(af.Input)},
		{Key: "as", Value: af.As},
		{Key: "cond", Value: d.RenderExp(af.Cond)},
	}}}
}

// RenderExp renders a condition tree. Query-form leaves become
// {field: value} or {field: {op: value}}, expression-form leaves become
// {op: [args...]} and logical nodes {op: [children...]}.
func (d *MongoDBDialect) RenderExp(ex *qcode.Exp) bson.D {
	if ex == nil {
		return bson.D{}
	}

	if ex.IsLogical() {
		children := make(bson.A, 0, len(ex.Children))
		for _, c := range ex.Children {
			children = append(children, d.RenderExp(c))
		}
		return bson.D{{Key: ex.Op.String(), Value: children}}
	}

	if ex.Args != nil {
		args := make(bson.A, 0, len(ex.Args))
		for _, a := range ex.Args {
			args = append(args, renderVal(a))
		}
		return bson.D{{Key: ex.Op.String(), Value: args}}
	}

	if ex.Op == qcode.OpEquals {
		return bson.D{{Key: ex.Field, Value: renderVal(ex.Val)}}
	}
	return bson.D{{Key: ex.Field, Value: bson.D{
		{Key: ex.Op.String(), Value: renderVal(ex.Val)},
	}}}
}

func renderVal(v qcode.Value) any {
	switch v.Type {
	case qcode.ValNum:
		return v.Num
	case qcode.ValFloat:
		return v.Float
	case qcode.ValRef:
		return fieldRef(v.Str)
	case qcode.ValElemRef:
		return "$$" + v.Alias + "." + v.Str
	}
	return v.Str
}

func fieldRef(f string) string {
	return "$" + f
}

func stage(name string, body any) bson.D {
	return bson.D{{Key: name, Value: body}}
}
