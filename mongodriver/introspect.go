package mongodriver

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/dosco/nlpipe/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"
)

// IntrospectOptions configures schema discovery.
type IntrospectOptions struct {
	SampleSize        int  `json:"sample_size"`
	IncludeValidators bool `json:"include_validators"`
}

// DefaultIntrospectOptions samples 100 documents and reads validators.
var DefaultIntrospectOptions = IntrospectOptions{
	SampleSize:        100,
	IncludeValidators: true,
}

const introspectConcurrency = 8

// InferSchema builds a translation schema from the collections of the
// database. Fields declared by a $jsonSchema validator come first, in
// declaration order, followed by fields seen in sampled documents in the
// order they were first met. _id is left out.
func (c *Conn) InferSchema(ctx context.Context, opts IntrospectOptions) (*core.Schema, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultIntrospectOptions.SampleSize
	}

	names, err := c.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodriver: list collections: %w", err)
	}
	sort.Strings(names)

	names = slices.DeleteFunc(names, func(n string) bool {
		return strings.HasPrefix(n, "system.")
	})

	colls := make([]*core.Collection, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(introspectConcurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			var schema []core.Field
			if opts.IncludeValidators {
				schema = c.getCollectionValidator(ctx, name)
			}
			discovered := c.sampleCollectionFields(ctx, c.db.Collection(name), opts.SampleSize)

			if err := ctx.Err(); err != nil {
				return err
			}
			colls[i] = core.NewCollection(name, mergeFields(schema, discovered)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return core.NewSchema(colls...), nil
}

func (c *Conn) getCollectionValidator(ctx context.Context, collName string) []core.Field {
	cursor, err := c.db.ListCollections(ctx, bson.M{"name": collName})
	if err != nil {
		return nil
	}
	defer cursor.Close(ctx) //nolint:errcheck

	if !cursor.Next(ctx) {
		return nil
	}

	// properties is decoded as bson.D to keep declaration order
	var collInfo struct {
		Options struct {
			Validator struct {
				JSONSchema struct {
					Properties bson.D `bson:"properties"`
				} `bson:"$jsonSchema"`
			} `bson:"validator"`
		} `bson:"options"`
	}

	if err := cursor.Decode(&collInfo); err != nil {
		return nil
	}

	var fields []core.Field
	for _, prop := range collInfo.Options.Validator.JSONSchema.Properties {
		if prop.Key == "_id" {
			continue
		}
		var bsonType any
		if d, ok := prop.Value.(bson.D); ok {
			for _, e := range d {
				if e.Key == "bsonType" {
					bsonType = e.Value
				}
			}
		}
		fields = append(fields, core.Field{
			Name: prop.Key,
			Type: typeTag(normalizeBSONType(bsonType)),
		})
	}
	return fields
}

// sampleCollectionFields samples documents to discover field types.
func (c *Conn) sampleCollectionFields(ctx context.Context, coll *mongo.Collection, sampleSize int) []core.Field {
	pipeline := bson.A{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: sampleSize}}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil
	}
	defer cursor.Close(ctx) //nolint:errcheck

	var fields []core.Field
	seen := make(map[string]int)

	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			continue
		}

		for _, e := range doc {
			if e.Key == "_id" {
				continue
			}
			tag := typeTag(inferBSONType(e.Value))

			i, exists := seen[e.Key]
			if !exists {
				seen[e.Key] = len(fields)
				fields = append(fields, core.Field{Name: e.Key, Type: tag})
				continue
			}
			// a null seen first is replaced by the first real type
			if fields[i].Type == "null" {
				fields[i].Type = tag
			}
		}
	}

	return fields
}

// inferBSONType determines the BSON type name of a decoded value.
func inferBSONType(v any) string {
	if v == nil {
		return "null"
	}

	switch val := v.(type) {
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32:
		return "int"
	case int, int64:
		return "long"
	case float32, float64:
		return "double"
	case bson.Decimal128:
		return "decimal"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.A, []any:
		return "array"
	case bson.M, bson.D, map[string]any:
		return "object"
	case bson.Binary:
		return "binData"
	default:
		rt := reflect.TypeOf(val)
		if rt.Kind() == reflect.Slice {
			return "array"
		}
		if rt.Kind() == reflect.Map || rt.Kind() == reflect.Struct {
			return "object"
		}
		return "string"
	}
}

// normalizeBSONType handles bsonType being string or array.
func normalizeBSONType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	case bson.A:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return "string"
}

// typeTag maps BSON type names to the tags the translator understands.
// Types it has no use for keep their BSON name.
func typeTag(bsonType string) string {
	switch bsonType {
	case "int", "long":
		return core.TypeInt
	case "double", "decimal":
		return core.TypeFloat
	case "string":
		return core.TypeString
	case "array":
		return core.TypeArray
	default:
		return bsonType
	}
}

// mergeFields combines validator and discovered fields. Validator types
// win.
func mergeFields(schema, discovered []core.Field) []core.Field {
	result := make([]core.Field, 0, len(schema)+len(discovered))
	have := make(map[string]struct{}, len(schema))

	for _, f := range schema {
		have[f.Name] = struct{}{}
		result = append(result, f)
	}
	for _, f := range discovered {
		if _, ok := have[f.Name]; !ok {
			result = append(result, f)
		}
	}
	return result
}
