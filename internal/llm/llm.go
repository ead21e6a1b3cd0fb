package llm

import (
	"context"
	"iter"
)

// Generator abstracts text-generation backends that stream their output.
type Generator interface {
	// StreamGenerate yields fragments in arrival order. The sequence ends
	// after a fragment with Done set, or after the first error.
	StreamGenerate(ctx context.Context, prompt string, opts Options) iter.Seq2[Fragment, error]
}

// Fragment is one incremental piece of generated text.
type Fragment struct {
	Text string
	Done bool
}

// Options are the sampling parameters sent with a generation request.
type Options struct {
	Temperature float64
	TopP        float64
	// Format asks the backend for a response format, e.g. "json".
	Format string
}

// DefaultOptions returns the sampling parameters used for energy advice.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.9,
		Format:      "json",
	}
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
