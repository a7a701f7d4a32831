// Package fake provides a scripted reply Generator for tests.
package fake

import (
	"context"
	"sync"

	"github.com/carevoice/companion/pkg/ai/reply"
)

// FakeGenerator returns scripted responses in order, repeating the last one.
type FakeGenerator struct {
	mu        sync.Mutex
	responses []string
	call      int
	failErr   error
	requests  []reply.Request
}

// NewFakeGenerator creates a scripted generator.
func NewFakeGenerator(responses ...string) *FakeGenerator {
	if len(responses) == 0 {
		responses = []string{"This is a fake response from the fake reply generator."}
	}
	return &FakeGenerator{responses: responses}
}

// FailWith makes every subsequent call return err.
func (f *FakeGenerator) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// Requests returns a copy of every request seen, for asserting on context
// and topic plumbing.
func (f *FakeGenerator) Requests() []reply.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]reply.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeGenerator) Generate(ctx context.Context, req reply.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failErr != nil {
		return "", f.failErr
	}
	idx := f.call
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.call++
	return f.responses[idx], nil
}
