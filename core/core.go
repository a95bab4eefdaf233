// Package core translates constrained English sentences into MongoDB
// aggregation pipelines.
//
//	s, _ := core.ParseSchema([]byte(`sales: {fields: {year: int, region: string}}`))
//	res := core.Translate("sales where year > 2020", s)
//	b, _ := json.Marshal(res)
package core

import (
	"bytes"
	"encoding/json"

	"github.com/dosco/nlpipe/core/internal/dialect"
	"github.com/dosco/nlpipe/core/internal/qcode"
	"github.com/dosco/nlpipe/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type (
	Schema     = sdata.Schema
	Collection = sdata.Collection
	Field      = sdata.Field
)

// Field type tags understood by the translator.
const (
	TypeInt    = sdata.TypeInt
	TypeFloat  = sdata.TypeFloat
	TypeString = sdata.TypeString
	TypeArray  = sdata.TypeArray
)

// ErrCollectionNotFound is reported in Result.Error when no word of the
// sentence names a collection of the schema.
var ErrCollectionNotFound = qcode.ErrCollectionNotFound

// ParseSchema reads a schema from YAML or JSON. Collection and field order
// is kept as written.
func ParseSchema(data []byte) (*Schema, error) {
	return sdata.ParseSchema(data)
}

// NewSchema builds a schema in code.
func NewSchema(colls ...*Collection) *Schema {
	return sdata.NewSchema(colls...)
}

// NewCollection builds a collection with fields in the given order.
func NewCollection(name string, fields ...Field) *Collection {
	return sdata.NewCollection(name, fields...)
}

// Result is the outcome of translating one sentence. Either Error is set
// or Collection and Pipeline are.
type Result struct {
	Collection string
	Pipeline   bson.A
	Error      string
}

// Found reports whether the sentence named a collection.
func (r *Result) Found() bool {
	return r.Error == ""
}

// Stages returns the stage operators of the pipeline in order, for
// example ["$match", "$unwind", "$group"].
func (r *Result) Stages() []string {
	stages := make([]string, 0, len(r.Pipeline))
	for _, st := range r.Pipeline {
		if d, ok := st.(bson.D); ok && len(d) != 0 {
			stages = append(stages, d[0].Key)
		}
	}
	return stages
}

// Doc returns the result as an ordered document.
func (r *Result) Doc() bson.D {
	if r.Error != "" {
		return bson.D{{Key: "error", Value: r.Error}}
	}
	return bson.D{
		{Key: "collection", Value: r.Collection},
		{Key: "pipeline", Value: r.Pipeline},
	}
}

// MarshalJSON encodes the result as relaxed MongoDB Extended JSON with
// keys in pipeline order.
func (r *Result) MarshalJSON() ([]byte, error) {
	return bson.MarshalExtJSON(r.Doc(), false, false)
}

// Pretty returns the JSON form of the result indented by two spaces.
func (r *Result) Pretty() ([]byte, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Translate compiles text against s. It keeps no state between calls and
// is safe to call concurrently on the same schema.
func Translate(text string, s *Schema) *Result {
	return translate(qcode.NewCompiler(s), &dialect.MongoDBDialect{}, text)
}

func translate(co *qcode.Compiler, d dialect.Dialect, text string) *Result {
	qc, err := co.Compile(text)
	if err != nil {
		return &Result{Error: err.Error()}
	}
	return &Result{
		Collection: qc.Collection,
		Pipeline:   d.RenderPipeline(qc),
	}
}
