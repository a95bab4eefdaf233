package mongodriver

import (
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// AggregateOptions controls how a pipeline is run.
type AggregateOptions struct {
	// Stop reading after this many documents. Zero reads everything.
	MaxDocs int

	// Lift the keys of a compound group _id into the document, so
	// {_id: {region: "north"}, total: 5} becomes {region: "north", total: 5}.
	FlattenGroupID bool
}

// Aggregate runs pipeline on collection and returns the documents with
// their key order intact.
func (c *Conn) Aggregate(ctx context.Context,
	collection string,
	pipeline bson.A,
	opts AggregateOptions,
) ([]bson.D, error) {
	if collection == "" {
		return nil, fmt.Errorf("mongodriver: aggregate requires collection")
	}

	cursor, err := c.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: aggregate: %w", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	results := []bson.D{}
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodriver: aggregate results: %w", err)
		}
		if opts.FlattenGroupID {
			doc = flattenGroupID(doc)
		}
		results = append(results, doc)

		if opts.MaxDocs > 0 && len(results) == opts.MaxDocs {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodriver: aggregate results: %w", err)
	}
	return results, nil
}

// flattenGroupID replaces a document valued _id with its fields. Fields
// already present in the document win.
func flattenGroupID(doc bson.D) bson.D {
	var id bson.D
	idx := -1
	for i, e := range doc {
		if e.Key != "_id" {
			continue
		}
		if d, ok := e.Value.(bson.D); ok {
			id, idx = d, i
		}
		break
	}
	if idx == -1 {
		return doc
	}

	seen := make(map[string]struct{}, len(doc))
	for _, e := range doc {
		seen[e.Key] = struct{}{}
	}

	out := make(bson.D, 0, len(doc)+len(id))
	out = append(out, doc[:idx]...)
	for _, e := range id {
		if _, ok := seen[e.Key]; !ok {
			out = append(out, e)
		}
	}
	out = append(out, doc[idx+1:]...)
	return out
}

// MarshalDocs encodes documents as a relaxed Extended JSON array.
func MarshalDocs(docs []bson.D) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, d := range docs {
		if i != 0 {
			b.WriteByte(',')
		}
		js, err := bson.MarshalExtJSON(d, false, false)
		if err != nil {
			return nil, fmt.Errorf("mongodriver: marshal results: %w", err)
		}
		b.Write(js)
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}
