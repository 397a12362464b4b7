package testsupport

import (
	"context"
	"sync"
)

// Completer is a scripted text completion stub. Responses are returned in
// order; once exhausted it answers with an empty string.
type Completer struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// Block makes every call wait for its context to end.
	Block bool
	users     []string
}

// CompleteJSON records the call and returns the next scripted response.
func (c *Completer) CompleteJSON(ctx context.Context, _, user string) (string, error) {
	c.mu.Lock()
	call := len(c.users)
	c.users = append(c.users, user)
	c.mu.Unlock()

	if c.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.Err != nil {
		return "", c.Err
	}
	if call < len(c.Responses) {
		return c.Responses[call], nil
	}
	return "", nil
}

// Calls returns the number of completions requested.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}

// UserPrompts returns a copy of every user prompt received.
func (c *Completer) UserPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.users...)
}
