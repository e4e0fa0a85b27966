package prompt_test

import (
	"bytes"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/fwojciec/dataops/prompt"
	"github.com/stretchr/testify/assert"
)

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestLoad_Embedded(t *testing.T) {
	t.Parallel()

	got := prompt.Load(prompt.Config{Now: fixedNow, MaxRows: 50})

	assert.Contains(t, got.Generator, "bigquery-public-data.github_repos.commits")
	assert.Contains(t, got.Generator, "Today is 2025-06-01")
	assert.Contains(t, got.Generator, "(50 or fewer rows)")
	assert.Contains(t, got.Generator, "\n\n## Examples")
	assert.Contains(t, got.Explainer, "explain_query")
	assert.Contains(t, got.Executor, "execute_bigquery_sql")
	assert.NotEqual(t, prompt.Fallback, got.Generator)
}

func TestLoad_CustomDataset(t *testing.T) {
	t.Parallel()

	got := prompt.Load(prompt.Config{Dataset: "my-proj.github_mirror", Now: fixedNow})
	assert.Contains(t, got.Generator, "`my-proj.github_mirror.languages`")
	assert.NotContains(t, got.Generator, prompt.DefaultDataset)
}

func TestLoad_Override(t *testing.T) {
	t.Parallel()

	override := fstest.MapFS{
		"nested/dir/analysis_examples.md.tmpl": {Data: []byte("custom examples for {{.Dataset}}")},
	}
	got := prompt.Load(prompt.Config{Override: override, Dataset: "d", Now: fixedNow})

	assert.Contains(t, got.Generator, "You are a BigQuery SQL expert")
	assert.Contains(t, got.Generator, "\n\ncustom examples for d")
	assert.NotContains(t, got.Generator, "## Examples")
}

func TestLoad_FallbackOnParseError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	override := fstest.MapFS{
		"table_structure.md.tmpl": {Data: []byte("{{.Dataset")},
	}
	got := prompt.Load(prompt.Config{Override: override, Logger: logger})

	assert.Equal(t, prompt.Fallback, got.Generator)
	assert.Equal(t, "You are an agent that can query Github Repos data.", got.Generator)
	assert.NotEmpty(t, got.Explainer)
	assert.NotEmpty(t, got.Executor)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestLoad_FallbackOnRenderError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	override := fstest.MapFS{
		"analysis_examples.md.tmpl": {Data: []byte("{{.NoSuchField}}")},
	}
	got := prompt.Load(prompt.Config{Override: override, Logger: logger, Now: fixedNow})

	assert.Equal(t, prompt.Fallback, got.Generator)
	assert.Contains(t, got.Explainer, "explain_query")
	assert.Contains(t, buf.String(), "generator instruction failed")
}
