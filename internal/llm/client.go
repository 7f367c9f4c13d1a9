// Package llm provides completion clients for hosted language models.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTimeout is returned when the completion call exceeds its deadline.
	ErrTimeout = errors.New("completion timed out")
	// ErrCompletionFailed wraps transport, auth, rate-limit, and decoding failures.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrEmptyAPIKey is returned when a client is built without credentials.
	ErrEmptyAPIKey = errors.New("API key is required")
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call: a system instruction plus the user message.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ContentBlock is one item of a completion's content list.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the completion result. Zero content blocks means the model returned nothing.
type Response struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// Empty reports whether the response carries no content blocks.
func (r *Response) Empty() bool {
	return r == nil || len(r.Content) == 0
}

// Client sends one completion request.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// UserMessage builds a single-message conversation.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}
