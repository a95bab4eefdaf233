package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dosco/nlpipe/core"
	"github.com/dosco/nlpipe/mongodriver"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// schemaCmd creates the schema command
func schemaCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "schema",
		Short: "Schema management commands",
	}

	inferCmd := &cobra.Command{
		Use:   "infer",
		Short: "Build a schema by sampling the MongoDB collections",
		Long: `Sample documents from every collection of the configured database and
print a schema describing their fields. Fields declared in a $jsonSchema
validator come first. Use --output to write the schema to a file.`,
		RunE: cmdSchemaInfer,
	}
	inferCmd.Flags().Int("sample", mongodriver.DefaultIntrospectOptions.SampleSize,
		"Number of documents sampled per collection")
	inferCmd.Flags().Bool("no-validators", false, "Ignore $jsonSchema validators")
	inferCmd.Flags().StringP("output", "o", "", "Write the schema to this file")
	c.AddCommand(inferCmd)

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show differences between the schema file and the database",
		Long: `Compare the schema file against a schema inferred from the database.
Changes that would make existing sentences translate differently, such as
dropped fields or changed types, are marked as destructive.`,
		RunE: cmdSchemaDiff,
	}
	diffCmd.Flags().Int("sample", mongodriver.DefaultIntrospectOptions.SampleSize,
		"Number of documents sampled per collection")
	diffCmd.Flags().String("format", "text", "Output format: text or json")
	c.AddCommand(diffCmd)

	return c
}

// cmdSchemaInfer is the handler for the schema infer subcommand
func cmdSchemaInfer(cmd *cobra.Command, _ []string) error {
	sample, _ := cmd.Flags().GetInt("sample")
	noValidators, _ := cmd.Flags().GetBool("no-validators")
	output, _ := cmd.Flags().GetString("output")

	schema, err := inferSchema(mongodriver.IntrospectOptions{
		SampleSize:        sample,
		IncludeValidators: !noValidators,
	})
	if err != nil {
		return err
	}

	b, err := schema.Encode()
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}

	if err := afero.WriteFile(afero.NewOsFs(), output, b, 0o644); err != nil {
		return errors.Wrap(err, "writing schema")
	}
	log.Infof("Inferred schema for %d collections: %s", len(schema.Collections), output)
	return nil
}

// cmdSchemaDiff is the handler for the schema diff subcommand
func cmdSchemaDiff(cmd *cobra.Command, _ []string) error {
	sample, _ := cmd.Flags().GetInt("sample")
	format, _ := cmd.Flags().GetString("format")

	current, err := loadSchema()
	if err != nil {
		return err
	}

	expected, err := inferSchema(mongodriver.IntrospectOptions{
		SampleSize:        sample,
		IncludeValidators: true,
	})
	if err != nil {
		return err
	}

	ops := core.SchemaDiff(current, expected)
	if len(ops) == 0 {
		log.Infof("No schema changes required")
		return nil
	}

	switch format {
	case "json":
		return outputJSON(cmd.OutOrStdout(), ops)
	default:
		outputText(cmd.OutOrStdout(), ops)
	}
	return nil
}

// inferSchema connects to the configured database and samples it
func inferSchema(opts mongodriver.IntrospectOptions) (*core.Schema, error) {
	if err := setup(cpath); err != nil {
		return nil, err
	}
	if conf.Mongo.URL == "" {
		return nil, errors.New("mongo.url is not set in the config")
	}

	ctx := context.Background()

	octx, cancel := context.WithTimeout(ctx, conf.Mongo.Timeout)
	defer cancel()

	conn, err := mongodriver.Open(octx, conf.Mongo.URL, conf.Mongo.Database)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx) //nolint:errcheck

	return conn.InferSchema(ctx, opts)
}

func outputText(w io.Writer, ops []core.SchemaOperation) {
	danger := color.New(color.FgRed).SprintFunc()
	safe := color.New(color.FgGreen).SprintFunc()

	for _, op := range ops {
		if op.Danger {
			fmt.Fprintf(w, "%s %s\n", danger("-- DESTRUCTIVE:"), op)
		} else {
			fmt.Fprintf(w, "%s %s\n", safe("--"), op)
		}
	}
}

func outputJSON(w io.Writer, ops []core.SchemaOperation) error {
	type jsonOp struct {
		Type        string `json:"type"`
		Collection  string `json:"collection"`
		Field       string `json:"field,omitempty"`
		From        string `json:"from,omitempty"`
		To          string `json:"to,omitempty"`
		Destructive bool   `json:"destructive,omitempty"`
	}

	jsonOps := make([]jsonOp, 0, len(ops))
	for _, op := range ops {
		jsonOps = append(jsonOps, jsonOp{
			Type:        op.Type,
			Collection:  op.Collection,
			Field:       op.Field,
			From:        op.From,
			To:          op.To,
			Destructive: op.Danger,
		})
	}

	output, err := json.MarshalIndent(jsonOps, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	fmt.Fprintln(w, string(output))
	return nil
}
