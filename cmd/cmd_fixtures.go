package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dosco/nlpipe/core"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fixture is one sentence and the result it must translate to. Expected
// is either a YAML or JSON structure, compared field by field, or a string
// of JSON text which must match the output exactly, key order included.
type fixture struct {
	Name     string    `yaml:"name"`
	Query    string    `yaml:"query"`
	Expected yaml.Node `yaml:"expected"`
}

type fixtureResult struct {
	Name string
	Diff string
	Err  error
}

func (r fixtureResult) pass() bool {
	return r.Err == nil && r.Diff == ""
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [fixtures.yml]",
		Short: "Check translations against expected results",
		Long: `Translate each fixture query and compare the result with the expected
value. Differences are printed field by field and the command fails if any
fixture does not match.

  - name: grouped totals
    query: sales where year > 2020 show total sales grouped by region
    expected:
      collection: sales
      pipeline:
        - $match: {year: {$gt: 2020}}
        - $group: {_id: {region: $region}, total_sales: {$sum: $sales}}`,
		Args: cobra.MaximumNArgs(1),
		RunE: cmdTest,
	}
}

// cmdTest is the handler for the test subcommand
func cmdTest(cmd *cobra.Command, args []string) error {
	fp := filepath.Join(cpath, "fixtures.yml")
	if len(args) != 0 {
		fp = args[0]
	}

	fixtures, err := readFixtures(afero.NewOsFs(), fp)
	if err != nil {
		return err
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}

	results := runFixtures(schema, fixtures)
	if failed := printResults(cmd.OutOrStdout(), results); failed != 0 {
		return errors.Errorf("%d of %d fixtures failed", failed, len(results))
	}
	return nil
}

// readFixtures reads a YAML list of fixtures
func readFixtures(fs afero.Fs, fp string) ([]fixture, error) {
	b, err := afero.ReadFile(fs, fp)
	if err != nil {
		return nil, errors.Wrap(err, "fixtures")
	}

	var fixtures []fixture
	if err := yaml.Unmarshal(b, &fixtures); err != nil {
		return nil, errors.Wrapf(err, "fixtures %s", fp)
	}

	for i, f := range fixtures {
		if f.Query == "" {
			return nil, errors.Errorf("fixtures %s: entry %d has no query", fp, i+1)
		}
		if f.Name == "" {
			fixtures[i].Name = f.Query
		}
	}
	return fixtures, nil
}

func runFixtures(schema *core.Schema, fixtures []fixture) []fixtureResult {
	results := make([]fixtureResult, 0, len(fixtures))
	for _, f := range fixtures {
		diff, err := checkFixture(schema, f)
		results = append(results, fixtureResult{Name: f.Name, Diff: diff, Err: err})
	}
	return results
}

// checkFixture returns the difference between the expected and the
// actual result, empty when they agree
func checkFixture(schema *core.Schema, f fixture) (string, error) {
	got, err := core.Translate(f.Query, schema).MarshalJSON()
	if err != nil {
		return "", err
	}

	switch {
	case f.Expected.Kind == 0:
		return "", errors.New("no expected value")

	case f.Expected.Kind == yaml.ScalarNode && f.Expected.ShortTag() == "!!str":
		return cmp.Diff(strings.TrimSpace(f.Expected.Value), string(got)), nil
	}

	var want interface{}
	if err := f.Expected.Decode(&want); err != nil {
		return "", errors.Wrap(err, "expected")
	}
	if want, err = normalizeJSON(want); err != nil {
		return "", errors.Wrap(err, "expected")
	}

	var actual interface{}
	if err := json.Unmarshal(got, &actual); err != nil {
		return "", err
	}
	return cmp.Diff(want, actual), nil
}

// normalizeJSON round trips v through JSON so numbers and maps have the
// same types as a decoded result
func normalizeJSON(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(b, &out)
	return out, err
}

// printResults writes a PASS or FAIL line per fixture followed by a
// summary, and returns the number of failures
func printResults(w io.Writer, results []fixtureResult) int {
	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	var failed int
	for _, r := range results {
		if r.pass() {
			fmt.Fprintf(w, "%s %s\n", pass("PASS"), r.Name)
			continue
		}
		failed++
		fmt.Fprintf(w, "%s %s\n", fail("FAIL"), r.Name)

		if r.Err != nil {
			fmt.Fprintf(w, "    %s\n", r.Err)
			continue
		}
		fmt.Fprintln(w, "    (-expected +actual)")
		for _, l := range strings.Split(strings.TrimRight(r.Diff, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", l)
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed\n", len(results)-failed, failed)
	return failed
}
