package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dosco/nlpipe/core"
	"github.com/dosco/nlpipe/mongodriver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var compact bool

func translateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "translate [sentence...]",
		Short: "Translate a sentence into an aggregation pipeline",
		Long: `Translate a sentence into a MongoDB aggregation pipeline and print it
as JSON. The sentence can be given as arguments or on stdin.

  nlpipe translate "sales where year > 2020 show total sales grouped by region"`,
		RunE: cmdTranslate,
	}
	c.Flags().BoolVar(&compact, "compact", false, "Print the result on a single line")
	return c
}

func runCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [sentence...]",
		Short: "Translate a sentence and run the pipeline against MongoDB",
		RunE:  cmdRun,
	}
	c.Flags().BoolVar(&compact, "compact", false, "Print the result on a single line")
	return c
}

// cmdTranslate is the handler for the translate subcommand
func cmdTranslate(cmd *cobra.Command, args []string) error {
	text, err := readSentence(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}

	res := core.Translate(text, schema)

	var b []byte
	if compact {
		b, err = res.MarshalJSON()
	} else {
		b, err = res.Pretty()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// cmdRun is the handler for the run subcommand
func cmdRun(cmd *cobra.Command, args []string) error {
	text, err := readSentence(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}

	res := core.Translate(text, schema)
	if !res.Found() {
		return errors.New(res.Error)
	}

	if err := setup(cpath); err != nil {
		return err
	}
	if conf.Mongo.URL == "" {
		return errors.New("mongo.url is not set in the config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.Timeout)
	defer cancel()

	conn, err := mongodriver.Open(ctx, conf.Mongo.URL, conf.Mongo.Database)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background()) //nolint:errcheck

	docs, err := conn.Aggregate(ctx, res.Collection, res.Pipeline,
		mongodriver.AggregateOptions{
			MaxDocs:        conf.Mongo.MaxDocs,
			FlattenGroupID: conf.Mongo.FlattenGroupID,
		})
	if err != nil {
		return err
	}

	b, err := mongodriver.MarshalDocs(docs)
	if err != nil {
		return err
	}
	if !compact {
		var out bytes.Buffer
		if err := json.Indent(&out, b, "", "  "); err != nil {
			return err
		}
		b = out.Bytes()
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	log.Infof("%d documents from %s", len(docs), res.Collection)
	return nil
}

// readSentence joins the arguments into a sentence, reading stdin when
// there are none
func readSentence(args []string, stdin io.Reader) (string, error) {
	if len(args) != 0 {
		return strings.Join(args, " "), nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "reading stdin")
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("no sentence given")
	}
	return text, nil
}
