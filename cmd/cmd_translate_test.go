package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dosco/nlpipe/core"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSentence(t *testing.T) {
	text, err := readSentence([]string{"sales", "where", "year", ">", "2020"}, nil)
	require.NoError(t, err)
	assert.Equal(t, salesQuery, text)

	text, err = readSentence(nil, strings.NewReader("  "+salesQuery+"\n"))
	require.NoError(t, err)
	assert.Equal(t, salesQuery, text)

	_, err = readSentence(nil, strings.NewReader("\n"))
	assert.Error(t, err)
}

func TestCmdTranslate(t *testing.T) {
	t.Cleanup(func() { schemaPath, compact = "", false })

	sp := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(sp, []byte(salesSchema), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"translate", "--schema", sp, "--compact", salesQuery})
	require.NoError(t, root.Execute())
	assert.Equal(t, salesJSON+"\n", out.String())

	out.Reset()
	compact = false
	root = newRootCmd()
	root.SetOut(&out)
	root.SetIn(strings.NewReader("widgets"))
	root.SetArgs([]string{"translate", "--schema", sp})
	require.NoError(t, root.Execute())
	assert.Equal(t, "{\n  \"error\": \"Collection not found.\"\n}\n", out.String())
}

func TestCmdTranslateMissingSchema(t *testing.T) {
	t.Cleanup(func() { schemaPath = "" })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"translate", "--schema", filepath.Join(t.TempDir(), "none.yml"), "sales"})
	assert.Error(t, root.Execute())
}

func TestOutputSchemaDiff(t *testing.T) {
	color.NoColor = true

	ops := []core.SchemaOperation{
		{Type: "add_field", Collection: "sales", Field: "qty", To: "int"},
		{Type: "drop_field", Collection: "sales", Field: "year", From: "int", Danger: true},
	}

	var buf bytes.Buffer
	outputText(&buf, ops)
	assert.Equal(t,
		"-- add_field sales.qty int\n-- DESTRUCTIVE: drop_field sales.year int\n",
		buf.String())

	buf.Reset()
	require.NoError(t, outputJSON(&buf, ops))
	assert.JSONEq(t, `[
		{"type":"add_field","collection":"sales","field":"qty","to":"int"},
		{"type":"drop_field","collection":"sales","field":"year","from":"int","destructive":true}
	]`, buf.String())
}
