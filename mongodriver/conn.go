// Package mongodriver runs translated pipelines against MongoDB and
// infers translation schemas from live collections.
package mongodriver

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Conn is a handle to one MongoDB database.
type Conn struct {
	db     *mongo.Database
	client *mongo.Client
}

// Open connects to the server at uri and checks it is reachable.
func Open(ctx context.Context, uri, database string) (*Conn, error) {
	if database == "" {
		return nil, fmt.Errorf("mongodriver: database name required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, fmt.Errorf("mongodriver: ping: %w", err)
	}

	return NewConn(client, database), nil
}

// NewConn wraps an existing client.
func NewConn(client *mongo.Client, database string) *Conn {
	return &Conn{
		db:     client.Database(database),
		client: client,
	}
}

// Database returns the database name.
func (c *Conn) Database() string {
	return c.db.Name()
}

// Ping checks the server is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodriver: ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *Conn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
