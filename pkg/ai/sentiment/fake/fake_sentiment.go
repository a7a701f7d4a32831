// Package fake provides a scripted Classifier for tests.
package fake

import (
	"context"
	"sync"

	"github.com/carevoice/companion/pkg/ai/sentiment"
)

// FakeClassifier returns a fixed result, or a configured error.
type FakeClassifier struct {
	mu      sync.Mutex
	result  sentiment.Result
	failErr error
	calls   int
}

// NewFakeClassifier creates a classifier that always returns label.
func NewFakeClassifier(label sentiment.Label, score float64) *FakeClassifier {
	return &FakeClassifier{result: sentiment.Result{Label: label, Score: score}}
}

// FailWith makes every subsequent call return err.
func (f *FakeClassifier) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// Calls returns the number of classification requests seen.
func (f *FakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeClassifier) Classify(ctx context.Context, text string) (sentiment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil {
		return sentiment.Result{}, f.failErr
	}
	return f.result, nil
}
