package serv

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-http-utils/headers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version string

const (
	serverName = "nlpipe"
	defaultHP  = "0.0.0.0:8080"
)

// SetVersion sets the version reported in the startup log
func SetVersion(v string) {
	version = v
}

// Initialize the watcher for the service config file
func initConfigWatcher(s1 *HttpService) {
	s := s1.Load().(*service)
	if s.conf.Serv.Production || s.conf.viper == nil {
		return
	}

	go func() {
		err := startConfigWatcher(s1)
		if err != nil {
			s.log.Fatalf("error in config file watcher: %s", err)
		}
	}()
}

// startConfigWatcher reloads the service when the config file changes
func startConfigWatcher(s1 *HttpService) error {
	s := s1.Load().(*service)
	vi := s.conf.viper

	vi.OnConfigChange(func(e fsnotify.Event) {
		s := s1.Load().(*service)
		s.log.Infof("config changed: %s", e.Name)

		if err := s1.Reload(); err != nil {
			s.log.Errorf("config reload failed, keeping the running config: %s", err)
		}
	})
	vi.WatchConfig()
	return nil
}

// Start the HTTP server
func startHTTP(s1 *HttpService) {
	s := s1.Load().(*service)

	routes, err := routesHandler(s1)
	if err != nil {
		s.log.Fatalf("error setting up routes: %s", err)
	}

	s.srv = &http.Server{
		Addr:              s.conf.hostPort,
		Handler:           routes,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.conf.Mongo.Timeout + 10*time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		if err := s.srv.Shutdown(context.Background()); err != nil {
			s.log.Warn("shutdown signal received")
		}
		close(idleConnsClosed)
	}()

	s.srv.RegisterOnShutdown(func() {
		s1.Close()
		s.log.Info("shutdown complete")
	})

	ver := version
	if ver == "" {
		ver = "not-set"
	}

	fields := []zapcore.Field{
		zap.String("version", ver),
		zap.String("host-port", s.conf.hostPort),
		zap.String("app-name", s.conf.AppName),
		zap.String("env", os.Getenv("GO_ENV")),
		zap.Bool("production", s.conf.Core.Production),
		zap.Strings("collections", s.engine.Schema().Names()),
		zap.Bool("mongo", s.runner != nil),
	}

	s.zlog.Info("nlpipe started", fields...)
	printDevModeInfo(s)

	l, err := net.Listen("tcp", s.conf.hostPort)
	if err != nil {
		s.log.Fatalf("failed to init port: %s", err)
	}

	// signal we are open for business.
	s.state = servListening

	if err := s.srv.Serve(l); err != http.ErrServerClosed {
		s.log.Fatalf("failed to start: %s", err)
	}
	<-idleConnsClosed
}

// Set the server header
func setServerHeader(name string, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headers.Server, name)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// printDevModeInfo prints useful development information on startup
func printDevModeInfo(s *service) {
	if s.conf.Serv.Production {
		return
	}

	// Convert 0.0.0.0 to localhost for display
	hostPort := s.conf.hostPort
	displayHost := hostPort
	if strings.HasPrefix(hostPort, "0.0.0.0:") {
		displayHost = "localhost" + hostPort[7:]
	}

	fmt.Println()
	fmt.Println("Development Server URLs")
	fmt.Println("───────────────────────")

	if s.conf.WebUI {
		fmt.Printf("  Web UI:      http://%s/\n", displayHost)
	}
	fmt.Printf("  Translate:   http://%s%s\n", displayHost, routeTranslate)
	if s.runner != nil {
		fmt.Printf("  Run:         http://%s%s\n", displayHost, routeRun)
	}
	fmt.Printf("  Schema:      http://%s%s\n", displayHost, routeSchema)
	fmt.Printf("  Metrics:     http://%s%s\n", displayHost, routeMetrics)
	fmt.Println()
}
