package dialect

import (
	"github.com/dosco/nlpipe/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Dialect renders a compiled sentence into the query language of a
// database.
type Dialect interface {
	Name() string
	RenderPipeline(qc *qcode.QCode) bson.A
	RenderExp(ex *qcode.Exp) bson.D
}
