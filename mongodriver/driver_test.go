package mongodriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dosco/nlpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestInferBSONType(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "null"},
		{"object id", bson.NewObjectID(), "objectId"},
		{"string", "x", "string"},
		{"int32", int32(1), "int"},
		{"int64", int64(1), "long"},
		{"double", 1.5, "double"},
		{"bool", true, "bool"},
		{"date", bson.DateTime(0), "date"},
		{"array", bson.A{1, 2}, "array"},
		{"slice", []string{"a"}, "array"},
		{"document", bson.D{{Key: "a", Value: 1}}, "object"},
		{"map", map[string]int{"a": 1}, "object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferBSONType(tt.v))
		})
	}
}

func TestTypeTag(t *testing.T) {
	tests := map[string]string{
		"int":      core.TypeInt,
		"long":     core.TypeInt,
		"double":   core.TypeFloat,
		"decimal":  core.TypeFloat,
		"string":   core.TypeString,
		"array":    core.TypeArray,
		"bool":     "bool",
		"objectId": "objectId",
	}
	for in, want := range tests {
		assert.Equal(t, want, typeTag(in), in)
	}
}

func TestNormalizeBSONType(t *testing.T) {
	assert.Equal(t, "int", normalizeBSONType("int"))
	assert.Equal(t, "double", normalizeBSONType(bson.A{"double", "null"}))
	assert.Equal(t, "long", normalizeBSONType([]any{"long"}))
	assert.Equal(t, "string", normalizeBSONType(nil))
	assert.Equal(t, "string", normalizeBSONType(bson.A{}))
}

func TestMergeFields(t *testing.T) {
	schema := []core.Field{{Name: "b", Type: core.TypeInt}, {Name: "a", Type: core.TypeString}}
	discovered := []core.Field{{Name: "a", Type: core.TypeInt}, {Name: "c", Type: core.TypeArray}}

	assert.Equal(t, []core.Field{
		{Name: "b", Type: core.TypeInt},
		{Name: "a", Type: core.TypeString},
		{Name: "c", Type: core.TypeArray},
	}, mergeFields(schema, discovered))
}

func TestFlattenGroupID(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: bson.D{{Key: "region", Value: "north"}, {Key: "total", Value: 1}}},
		{Key: "total", Value: int64(10)},
	}
	assert.Equal(t, bson.D{
		{Key: "region", Value: "north"},
		{Key: "total", Value: int64(10)},
	}, flattenGroupID(doc))

	// scalar and null ids are left alone
	doc = bson.D{{Key: "_id", Value: nil}, {Key: "count", Value: int32(3)}}
	assert.Equal(t, doc, flattenGroupID(doc))
}

func TestMarshalDocs(t *testing.T) {
	b, err := MarshalDocs([]bson.D{
		{{Key: "region", Value: "north"}, {Key: "total_sales", Value: int64(1200)}},
		{{Key: "region", Value: "south"}, {Key: "total_sales", Value: int64(800)}},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"region":"north","total_sales":1200},{"region":"south","total_sales":800}]`, string(b))

	b, err = MarshalDocs(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(b))
}

func TestOpenRequiresDatabase(t *testing.T) {
	_, err := Open(context.Background(), "mongodb://localhost:27017", "")
	assert.Error(t, err)
}

// testMongoURI returns NLPIPE_MONGO_URL when set, otherwise it starts a
// throwaway server in a container
func testMongoURI(t *testing.T) string {
	if uri := os.Getenv("NLPIPE_MONGO_URL"); uri != "" {
		return uri
	}
	if testing.Short() {
		t.Skip("skipping mongodb tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background()) //nolint:errcheck
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func TestWithMongoDB(t *testing.T) {
	uri := testMongoURI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := Open(ctx, uri, "nlpipe_test")
	require.NoError(t, err)
	defer conn.Close(ctx) //nolint:errcheck

	coll := conn.db.Collection("sales")
	coll.Drop(ctx) //nolint:errcheck

	_, err = coll.InsertMany(ctx, []any{
		bson.D{{Key: "year", Value: 2021}, {Key: "region", Value: "north"}, {Key: "products", Value: bson.A{"a", "b"}}, {Key: "sales", Value: 1500}},
		bson.D{{Key: "year", Value: 2022}, {Key: "region", Value: "north"}, {Key: "products", Value: bson.A{"c"}}, {Key: "sales", Value: 500}},
		bson.D{{Key: "year", Value: 2019}, {Key: "region", Value: "south"}, {Key: "products", Value: bson.A{"a"}}, {Key: "sales", Value: 900}},
	})
	require.NoError(t, err)

	t.Run("infer schema", func(t *testing.T) {
		s, err := conn.InferSchema(ctx, DefaultIntrospectOptions)
		require.NoError(t, err)

		c := s.Collection("sales")
		require.NotNil(t, c)
		assert.True(t, c.IsNumeric("year"))
		assert.True(t, c.IsArray("products"))
		typ, _ := c.Type("region")
		assert.Equal(t, core.TypeString, typ)
	})

	t.Run("aggregate translated pipeline", func(t *testing.T) {
		s, err := conn.InferSchema(ctx, DefaultIntrospectOptions)
		require.NoError(t, err)

		res := core.Translate("sales where year > 2020 total sales grouped by region", s)
		require.True(t, res.Found())

		docs, err := conn.Aggregate(ctx, res.Collection, res.Pipeline, AggregateOptions{FlattenGroupID: true})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, bson.D{
			{Key: "region", Value: "north"},
			{Key: "total_sales", Value: int32(2000)},
		}, docs[0])
	})

	t.Run("max docs", func(t *testing.T) {
		docs, err := conn.Aggregate(ctx, "sales", bson.A{}, AggregateOptions{MaxDocs: 2})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}
