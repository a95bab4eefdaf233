package serv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/dosco/nlpipe/mongodriver"
	"github.com/dosco/nlpipe/serv/internal/util"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultMongoTimeout = 10 * time.Second

var validate = validator.New()

// initLogLevel initializes the log level. A level carried over from a
// previous config is updated in place so existing loggers follow it.
func initLogLevel(s *service) {
	lvl := util.ParseLevel(s.conf.LogLevel)
	if s.logLevel == (zap.AtomicLevel{}) {
		s.logLevel = zap.NewAtomicLevelAt(lvl)
		return
	}
	s.logLevel.SetLevel(lvl)
}

// initConfig initializes the configuration
func (s *service) initConfig() error {
	c := s.conf

	hp := strings.SplitN(c.HostPort, ":", 2)

	if len(hp) == 2 {
		if c.Host != "" {
			hp[0] = c.Host
		}

		if c.Port != "" {
			hp[1] = c.Port
		}

		c.hostPort = fmt.Sprintf("%s:%s", hp[0], hp[1])
	}

	if c.hostPort == "" {
		c.hostPort = defaultHP
	}

	if c.SchemaFile != "" && c.ConfigPath != "" {
		c.SchemaFile = c.AbsolutePath(c.SchemaFile)
	}

	if c.Serv.Production && c.WebUI {
		s.log.Warn("web_ui is disabled in production")
		c.WebUI = false
	}

	if err := validate.Struct(&c.Serv); err != nil {
		return errors.Wrap(err, "config")
	}

	if c.Mongo.Timeout <= 0 {
		c.Mongo.Timeout = defaultMongoTimeout
	}

	c.Core.Production = c.Serv.Production
	return nil
}

// initMongo connects to the database used by the run endpoint
func (s *service) initMongo() error {
	if s.runner != nil || !s.conf.mongoEnable() {
		return nil
	}

	var conn *mongodriver.Conn
	err := retry.Do(func() (err error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.conf.Mongo.Timeout)
		defer cancel()
		conn, err = mongodriver.Open(ctx, s.conf.Mongo.URL, s.conf.Mongo.Database)
		return
	},
		retry.Attempts(uint(s.conf.Mongo.ConnectRetries)+1),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warnf("mongo connect attempt %d failed: %s", n+1, err)
		}))
	if err != nil {
		// In dev mode, allow starting without a database
		if !s.conf.Serv.Production {
			s.log.Warnf("mongo unavailable, the run endpoint is disabled: %s", err)
			return nil
		}
		return errors.Wrap(err, "mongo")
	}

	s.runner = conn
	s.ownsConn = true
	s.log.Infof("connected to mongo database: %s", conn.Database())
	return nil
}
