package pipeline_test

import (
	"testing"

	"github.com/fwojciec/dataops/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestExtractSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "sql fence",
			text: "Here you go:\n```sql\nSELECT 1;\n```\nThis counts rows.",
			want: "SELECT 1",
		},
		{
			name: "googlesql fence",
			text: "```googlesql\nSELECT repo_name FROM t\n```",
			want: "SELECT repo_name FROM t",
		},
		{
			name: "upper case label",
			text: "```SQL\nWITH a AS (SELECT 1) SELECT * FROM a\n```",
			want: "WITH a AS (SELECT 1) SELECT * FROM a",
		},
		{
			name: "sql fence wins over earlier generic fence",
			text: "```\nSELECT 0\n```\n```sql\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "generic fence that looks like sql",
			text: "```\n  select count(*) from t;;\n```",
			want: "select count(*) from t",
		},
		{
			name: "generic fence that is not sql",
			text: "```\npip install foo\n```",
			want: "",
		},
		{
			name: "other language fence is ignored",
			text: "```python\nSELECT = 1\n```",
			want: "",
		},
		{
			name: "bare sql",
			text: "  SELECT 1  ",
			want: "SELECT 1",
		},
		{
			name: "prose",
			text: "I can only answer questions about GitHub repositories.",
			want: "",
		},
		{
			name: "empty sql fence falls through",
			text: "```sql\n```\n```\nSELECT 2\n```",
			want: "SELECT 2",
		},
		{
			name: "empty",
			text: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, pipeline.ExtractSQL(tt.text))
		})
	}
}
