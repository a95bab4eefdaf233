package main

import (
	"path/filepath"

	"github.com/dosco/nlpipe/serv"
	"github.com/spf13/cobra"
)

// servCmd is the cobra CLI command for the serve subcommand
func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Run the translation service",
		RunE:    cmdServ,
	}
}

// cmdServ is the handler for the serve subcommand
func cmdServ(*cobra.Command, []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	if schemaPath != "" {
		fp, err := filepath.Abs(schemaPath)
		if err != nil {
			return err
		}
		conf.SchemaFile = fp
	}
	serv.SetVersion(version)

	s, err := serv.NewHttpService(conf)
	if err != nil {
		return err
	}
	return s.Start()
}
