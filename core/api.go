package core

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dosco/nlpipe/core/internal/dialect"
	"github.com/dosco/nlpipe/core/internal/qcode"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// engine holds everything derived from one schema. It is replaced as a
// whole on reload and never modified after being stored.
type engine struct {
	conf     *Config
	schema   *Schema
	hash     uint64
	compiler *qcode.Compiler
	dialect  dialect.Dialect
}

// Engine is a reloadable translator with a result cache. It is safe for
// concurrent use.
type Engine struct {
	atomic.Value
	conf  *Config
	log   *zap.Logger
	fs    afero.Fs
	cache Cache
	done  chan bool
}

type Option func(*Engine) error

// OptionSetLogger sets the logger used for reloads and watcher events
func OptionSetLogger(log *zap.Logger) Option {
	return func(e *Engine) error {
		e.log = log
		return nil
	}
}

// OptionSetFS sets the filesystem the schema file is read from
func OptionSetFS(fs afero.Fs) Option {
	return func(e *Engine) error {
		e.fs = fs
		return nil
	}
}

// NewEngine creates an engine for schema. When schema is nil it is loaded
// from conf.SchemaFile.
func NewEngine(conf *Config, schema *Schema, options ...Option) (e *Engine, err error) {
	if conf == nil {
		conf = &Config{}
	}
	if err = conf.Validate(); err != nil {
		return
	}

	e = &Engine{
		conf: conf,
		log:  zap.NewNop(),
		fs:   afero.NewOsFs(),
		done: make(chan bool),
	}

	for _, op := range options {
		if err = op(e); err != nil {
			return
		}
	}

	if !conf.DisableCache {
		size := conf.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		if err = e.cache.init(size); err != nil {
			return
		}
	}

	if schema == nil {
		if conf.SchemaFile == "" {
			return nil, fmt.Errorf("no schema given and schema_file not set")
		}
		if schema, err = LoadSchemaFile(e.fs, conf.SchemaFile); err != nil {
			return
		}
	}

	if err = e.store(schema); err != nil {
		return
	}

	if err = e.initSchemaWatcher(); err != nil {
		return
	}
	return
}

func (e *Engine) store(schema *Schema) error {
	if schema == nil {
		return fmt.Errorf("nil schema")
	}
	e.Store(&engine{
		conf:     e.conf,
		schema:   schema,
		hash:     schema.Hash(),
		compiler: qcode.NewCompiler(schema),
		dialect:  &dialect.MongoDBDialect{},
	})
	return nil
}

// Translate compiles text against the current schema. A sentence naming
// no collection is not an error, it yields a Result with Error set.
// Results may come from the cache and must not be modified.
func (e *Engine) Translate(c context.Context, text string) (*Result, error) {
	cr, err := e.translate(c, text)
	if err != nil {
		return nil, err
	}
	return cr.res, nil
}

// TranslateJSON is Translate followed by JSON encoding.
func (e *Engine) TranslateJSON(c context.Context, text string) ([]byte, error) {
	cr, err := e.translate(c, text)
	if err != nil {
		return nil, err
	}
	return cr.json, nil
}

// TranslateWithJSON returns both the result and its JSON encoding
func (e *Engine) TranslateWithJSON(c context.Context, text string) (*Result, []byte, error) {
	cr, err := e.translate(c, text)
	if err != nil {
		return nil, nil, err
	}
	return cr.res, cr.json, nil
}

// translate returns the result and its encoding, cached per schema
func (e *Engine) translate(c context.Context, text string) (cachedResult, error) {
	if err := c.Err(); err != nil {
		return cachedResult{}, err
	}
	en := e.Load().(*engine)

	key := strconv.FormatUint(en.hash, 16) + ":" + text
	if cr, ok := e.cache.Get(key); ok {
		return cr, nil
	}

	res := translate(en.compiler, en.dialect, text)
	b, err := res.MarshalJSON()
	if err != nil {
		return cachedResult{}, err
	}
	cr := cachedResult{res: res, json: b}
	e.cache.Set(key, cr)
	return cr, nil
}

// Schema returns the schema currently in use
func (e *Engine) Schema() *Schema {
	return e.Load().(*engine).schema
}

// CacheLen returns the number of cached translations
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// Reload swaps in a new schema and empties the cache. Translations
// already running finish against the old schema.
func (e *Engine) Reload(schema *Schema) error {
	t := time.Now()
	prev := e.Schema()
	if err := e.store(schema); err != nil {
		return err
	}
	e.cache.Purge()

	for _, op := range SchemaDiff(prev, schema) {
		if op.Danger {
			e.log.Warn("schema change", zap.Stringer("op", op))
		} else {
			e.log.Debug("schema change", zap.Stringer("op", op))
		}
	}
	e.log.Info("schema reloaded",
		zap.Strings("collections", schema.Names()),
		zap.Duration("took", time.Since(t)))
	return nil
}

// ReloadFile reloads the schema from conf.SchemaFile.
func (e *Engine) ReloadFile() error {
	s, err := LoadSchemaFile(e.fs, e.conf.SchemaFile)
	if err != nil {
		return err
	}
	return e.Reload(s)
}

// IsProd returns true if the engine runs in production mode
func (e *Engine) IsProd() bool {
	return e.conf.Production
}

// Close stops the schema watcher if one is running
func (e *Engine) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}
