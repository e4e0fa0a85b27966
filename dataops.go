// Package dataops defines the domain types for answering natural-language
// questions about the GitHub public dataset with BigQuery.
//
// A question flows through a fixed three-stage pipeline: SQL generation,
// dry-run cost explanation with an explicit consent gate, and execution.
// Each pipeline invocation streams an ordered sequence of [Event] values to
// the caller. Sub-packages implement the interfaces declared here against
// concrete dependencies (gemini, bigquery, chi, bubbletea, ...).
package dataops
