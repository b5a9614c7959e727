package completion

import "context"

// Request describes one completion call. Model may be left empty, in which
// case the client's configured primary model is used.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response carries the completion text plus the provenance callers record
// in report metadata.
type Response struct {
	Text string

	// Model is the model that actually served the call.
	Model string

	// Attempts counts every attempt across both retry ladders.
	Attempts int

	FallbackUsed bool
	Cached       bool
}

// Completer is the narrow boundary the analyzer and the report composer
// depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Transport performs one raw attempt against the completion service and
// classifies failures into the package's error taxonomy.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}
