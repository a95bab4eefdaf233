// Package serv is the HTTP service for translating sentences into MongoDB
// aggregation pipelines and running them.
//
// Configuration is read from a YAML or JSON file picked by GO_ENV (dev.yml,
// prod.yml, ...) in the config folder. Any key can be overridden with an
// NL_ prefixed environment variable, for example NL_MONGO_URL.
package serv

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dosco/nlpipe/core"
	"github.com/dosco/nlpipe/mongodriver"
	"github.com/dosco/nlpipe/serv/internal/util"
	cache "github.com/go-pkgz/expirable-cache"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	servStarting = iota
	servListening
)

// Runner executes a translated pipeline. *mongodriver.Conn is the
// production implementation.
type Runner interface {
	Aggregate(ctx context.Context, collection string, pipeline bson.A,
		opts mongodriver.AggregateOptions) ([]bson.D, error)
	Close(ctx context.Context) error
}

// HttpService is the translation service. A config reload replaces the
// service it holds, requests in flight keep the one they started with.
type HttpService struct {
	atomic.Value
	opt      []Option
	confPath string
}

type service struct {
	log      *zap.SugaredLogger // sugared logger
	zlog     *zap.Logger        // faster logger
	logLevel zap.AtomicLevel
	conf     *Config
	engine   *core.Engine
	runner   Runner
	ownsConn bool
	fs       afero.Fs
	srv      *http.Server
	metrics  *metrics
	limiters cache.Cache
	state    int
}

type Option func(*service) error

// OptionSetFS sets the filesystem config and schema files are read from
func OptionSetFS(fs afero.Fs) Option {
	return func(s *service) error {
		s.fs = fs
		return nil
	}
}

// OptionSetZapLogger sets the logger used by the service
func OptionSetZapLogger(zlog *zap.Logger) Option {
	return func(s *service) error {
		s.zlog = zlog
		s.log = zlog.Sugar()
		return nil
	}
}

// OptionSetRunner sets the runner used by the run endpoint instead of
// connecting to mongo.url
func OptionSetRunner(r Runner) Option {
	return func(s *service) error {
		s.runner = r
		return nil
	}
}

// OptionSetSchema sets the schema instead of reading schema_file
func OptionSetSchema(schema *core.Schema) Option {
	return func(s *service) (err error) {
		s.engine, err = core.NewEngine(&s.conf.Core, schema,
			core.OptionSetLogger(s.zlog),
			core.OptionSetFS(s.fs))
		return
	}
}

// NewHttpService creates the service from conf. The HTTP server is not
// started until Start is called.
func NewHttpService(conf *Config, options ...Option) (*HttpService, error) {
	s := &service{conf: conf}
	s1 := &HttpService{opt: options}

	if err := s.init(options); err != nil {
		return nil, err
	}
	s1.Store(s)

	if conf.viper != nil {
		s1.confPath = conf.viper.ConfigFileUsed()
	}

	if conf.WatchAndReload && !conf.Serv.Production {
		initConfigWatcher(s1)
	}
	return s1, nil
}

func (s *service) init(options []Option) error {
	initLogLevel(s)

	if s.zlog == nil {
		s.zlog = util.NewLoggerWithOutput(s.conf.ShouldUseJSONLogs(), os.Stdout, s.logLevel)
		s.log = s.zlog.Sugar()
	}

	if err := s.initConfig(); err != nil {
		return err
	}

	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}

	if s.metrics == nil {
		s.metrics = newMetrics()
	}

	if err := s.initLimiter(); err != nil {
		return err
	}

	// options run after defaults are set and may replace them
	for _, op := range options {
		if err := op(s); err != nil {
			return err
		}
	}

	if err := s.initEngine(); err != nil {
		return err
	}

	return s.initMongo()
}

func (s *service) initEngine() (err error) {
	if s.engine != nil {
		return nil
	}
	s.engine, err = core.NewEngine(&s.conf.Core, nil,
		core.OptionSetLogger(s.zlog),
		core.OptionSetFS(s.fs))
	if err != nil {
		return errors.Wrap(err, "engine")
	}
	return nil
}

// Start the HTTP server. It blocks until the server shuts down.
func (s1 *HttpService) Start() error {
	startHTTP(s1)
	return nil
}

// Handler returns the routes of the service with all middleware applied.
// Use it to mount the service on your own server.
func (s1 *HttpService) Handler() (http.Handler, error) {
	return routesHandler(s1)
}

// Engine returns the translation engine currently in use
func (s1 *HttpService) Engine() *core.Engine {
	return s1.Load().(*service).engine
}

// Reload re-reads the config file the service was created from and
// replaces the running service. The HTTP server keeps running.
func (s1 *HttpService) Reload() error {
	if s1.confPath == "" {
		return errors.New("service was not created from a config file")
	}
	prev := s1.Load().(*service)

	conf, err := ReadInConfigFS(s1.confPath, prev.fs)
	if err != nil {
		return errors.Wrap(err, "reload config")
	}
	conf.ConfigPath = filepath.Dir(s1.confPath)

	s := &service{
		conf:     conf,
		zlog:     prev.zlog,
		log:      prev.log,
		logLevel: prev.logLevel,
		metrics:  prev.metrics,
		srv:      prev.srv,
	}
	if err := s.init(s1.opt); err != nil {
		return errors.Wrap(err, "reload")
	}
	s.state = prev.state
	s1.Store(s)

	prev.close(context.Background())
	s.log.Info("config reloaded")
	return nil
}

// Close stops the schema watcher and disconnects from the database
func (s1 *HttpService) Close() {
	s1.Load().(*service).close(context.Background())
}

func (s *service) close(ctx context.Context) {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.runner != nil && s.ownsConn {
		if err := s.runner.Close(ctx); err != nil {
			s.log.Warnf("closing database: %s", err)
		}
	}
}
