// Package prompt loads the instructions given to each pipeline stage.
//
// Instructions are text/template files embedded in the binary. An optional
// override file system can replace any of them by base name.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Fallback is the generator instruction used when the templates cannot be
// loaded.
const Fallback = "You are an agent that can query Github Repos data."

const (
	explainerFallback = "Call the explain_query tool with the query in the user message, unchanged, and report its statistics. Ask whether to execute it."
	executorFallback  = "Call the execute_bigquery_sql tool with the query in the user message, unchanged, and summarize the results."
)

// DefaultDataset is the public GitHub dataset.
const DefaultDataset = "bigquery-public-data.github_repos"

//go:embed templates/*.tmpl
var embedded embed.FS

// Config controls template rendering.
type Config struct {
	Dataset  string
	MaxRows  int
	Override fs.FS // optional; *.tmpl files at any depth replace embedded ones
	Logger   *slog.Logger
	Now      func() time.Time
}

// Instructions holds the rendered instruction of every stage.
type Instructions struct {
	Generator string
	Explainer string
	Executor  string
}

type data struct {
	Dataset string
	Today   string
	MaxRows int
}

// Load renders all stage instructions. It never fails: any error is logged
// and the affected stage gets a minimal built-in instruction.
func Load(cfg Config) Instructions {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	set, err := parse(cfg.Override)
	if err != nil {
		log.Warn("prompt templates unavailable, using fallback", "error", err)
		return Instructions{Generator: Fallback, Explainer: explainerFallback, Executor: executorFallback}
	}
	d := newData(cfg)

	var out Instructions
	out.Generator, err = generator(set, d)
	if err != nil {
		log.Warn("generator instruction failed, using fallback", "error", err)
		out.Generator = Fallback
	}
	if out.Explainer, err = render(set, "explainer.md.tmpl", d); err != nil {
		log.Warn("explainer instruction failed, using fallback", "error", err)
		out.Explainer = explainerFallback
	}
	if out.Executor, err = render(set, "executor.md.tmpl", d); err != nil {
		log.Warn("executor instruction failed, using fallback", "error", err)
		out.Executor = executorFallback
	}
	log.Debug("loaded agent instructions", "generator_bytes", len(out.Generator))
	return out
}

func newData(cfg Config) data {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	d := data{Dataset: cfg.Dataset, MaxRows: cfg.MaxRows, Today: now().Format(time.DateOnly)}
	if d.Dataset == "" {
		d.Dataset = DefaultDataset
	}
	if d.MaxRows <= 0 {
		d.MaxRows = 100
	}
	return d
}

// generator renders the table structure and the analysis examples joined
// by a blank line.
func generator(set *template.Template, d any) (string, error) {
	structure, err := render(set, "table_structure.md.tmpl", d)
	if err != nil {
		return "", err
	}
	examples, err := render(set, "analysis_examples.md.tmpl", d)
	if err != nil {
		return "", err
	}
	return structure + "\n\n" + examples, nil
}

func parse(override fs.FS) (*template.Template, error) {
	set, err := template.New("prompt").Option("missingkey=error").ParseFS(embedded, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("prompt: parse embedded: %w", err)
	}
	if override == nil {
		return set, nil
	}
	matches, err := doublestar.Glob(override, "**/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("prompt: glob override: %w", err)
	}
	for _, m := range matches {
		b, err := fs.ReadFile(override, m)
		if err != nil {
			return nil, fmt.Errorf("prompt: read %s: %w", m, err)
		}
		if _, err := set.New(path.Base(m)).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("prompt: parse %s: %w", m, err)
		}
	}
	return set, nil
}

func render(set *template.Template, name string, d any) (string, error) {
	t := set.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("prompt: template %s not found", name)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, d); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
