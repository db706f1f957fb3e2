// Package llm defines the port interface for text and vision generation
// backends. The core validates everything an implementation returns; backends
// are not trusted to produce schema-conformant output.
package llm

import "context"

// Message is one chat turn sent to a backend.
type Message struct {
	Role    string
	Content string
	// Images holds optional data URLs attached to the message for
	// multimodal models.
	Images []string
}

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the raw text returned by a backend.
type Response struct {
	Content string
}

// Client is the port interface for chat completion backends.
type Client interface {
	ChatCompletion(ctx context.Context, req Request) (*Response, error)
}
