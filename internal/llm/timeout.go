package llm

import (
	"context"
	"time"
)

// timeoutClient bounds every completion call with a deadline. Turns never
// retry a slow call; they degrade, so an unbounded hang would stall the
// whole conversation.
type timeoutClient struct {
	Client
	timeout time.Duration
}

// WithTimeout wraps a client with a per-call timeout. A non-positive timeout
// returns the client unchanged.
func WithTimeout(c Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return c
	}
	return &timeoutClient{Client: c, timeout: timeout}
}

func (c *timeoutClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Client.Complete(ctx, req)
}
