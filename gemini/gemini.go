// Package gemini implements [dataops.Provider] for Gemini models served by
// either the Gemini API or Vertex AI.
//
// It wraps the google.golang.org/genai SDK, translating between the domain
// types and the genai types. Streaming uses the SDK's iter.Seq2 iterator,
// wrapped into the pull-based [dataops.Stream] interface.
package gemini

import "github.com/fwojciec/dataops"

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = dataops.ErrStreamClosed
