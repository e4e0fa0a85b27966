package pipeline

import (
	"regexp"
	"strings"
)

var fenceRE = regexp.MustCompile("(?s)```([A-Za-z]*)[ \\t]*\\r?\\n(.*?)```")

// ExtractSQL finds the query in a model answer. It prefers a ```sql fenced
// block, then an unlabeled fenced block that looks like SQL, then the whole
// text if it looks like SQL. It returns "" when nothing qualifies.
func ExtractSQL(text string) string {
	matches := fenceRE.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		switch strings.ToLower(m[1]) {
		case "sql", "googlesql", "bigquery":
			if sql := cleanSQL(m[2]); sql != "" {
				return sql
			}
		}
	}
	for _, m := range matches {
		if m[1] == "" && looksLikeSQL(m[2]) {
			return cleanSQL(m[2])
		}
	}
	if looksLikeSQL(text) {
		return cleanSQL(text)
	}
	return ""
}

// looksLikeSQL checks if text starts with a read query keyword.
func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// cleanSQL trims whitespace and trailing semicolons.
func cleanSQL(sql string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}

// normalizeSQL collapses whitespace so reformatted but otherwise identical
// queries compare equal.
func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(cleanSQL(sql)), " ")
}
