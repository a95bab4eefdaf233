package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/dosco/nlpipe/core"
	"github.com/dosco/nlpipe/serv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log        *zap.SugaredLogger
	conf       *serv.Config
	cpath      string
	schemaPath string
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = newLogger(false).Sugar()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "nlpipe",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.PersistentFlags().StringVar(&schemaPath,
		"schema", "", "schema file, overrides schema_file from the config")

	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// setup is a helper function to read the config file
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	cn := serv.GetConfigName()

	if conf, err = serv.ReadInConfig(path.Join(cp, cn)); err != nil {
		return errors.Wrapf(err, "reading config '%s' from %s", cn, cp)
	}
	return nil
}

// loadSchema reads the schema from --schema or, failing that, from the
// schema file named in the config
func loadSchema() (*core.Schema, error) {
	fp := schemaPath
	if fp == "" {
		if err := setup(cpath); err != nil {
			return nil, err
		}
		fp = conf.AbsolutePath(conf.SchemaFile)
	}
	return core.LoadSchemaFile(afero.NewOsFs(), fp)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(*cobra.Command, []string) {
			fmt.Println(BuildDetails())
		},
	}
}

// BuildDetails returns the version, commit and build date
func BuildDetails() string {
	if version == "" {
		return `
nlpipe (unknown version)
For documentation, visit https://github.com/dosco/nlpipe

To build with version information set it with -ldflags
> go build -ldflags "-X main.version=v1.0.0" -o nlpipe ./cmd
`
	}

	return fmt.Sprintf(`
nlpipe %v
For documentation, visit https://github.com/dosco/nlpipe

Commit SHA-1          : %v
Commit timestamp      : %v
Go version            : %v
`, version, commit, date, runtime.Version())
}

// newLogger creates a new logger
func newLogger(json bool) *zap.Logger {
	return newLoggerWithOutput(json, os.Stderr)
}

// newLoggerWithOutput creates a new logger with a custom output
func newLoggerWithOutput(json bool, output zapcore.WriteSyncer) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var core zapcore.Core

	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), output, zap.DebugLevel)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), output, zap.DebugLevel)
	}
	return zap.New(core)
}
