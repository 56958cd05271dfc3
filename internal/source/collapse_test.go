package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) Fetch(_ context.Context, _ int) ([]domain.Question, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	return []domain.Question{{Prompt: "q", CorrectAnswer: "a", Options: []string{"a", "b"}}}, nil
}

func TestCollapsingSharesConcurrentFetches(t *testing.T) {
	inner := &gatedFetcher{started: make(chan struct{}, 2), release: make(chan struct{})}
	collapsing := NewCollapsing(inner)

	var wg sync.WaitGroup
	results := make([]int, 2)
	fetch := func(i int) {
		defer wg.Done()
		questions, err := collapsing.Fetch(context.Background(), 10)
		if err != nil {
			t.Errorf("fetch %d: %v", i, err)
			return
		}
		results[i] = len(questions)
	}

	wg.Add(1)
	go fetch(0)
	<-inner.started // first caller is inside the upstream fetch

	wg.Add(1)
	go fetch(1)
	time.Sleep(50 * time.Millisecond) // let the second caller join the flight
	close(inner.release)
	wg.Wait()

	inner.mu.Lock()
	calls := inner.calls
	inner.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
	if results[0] != 1 || results[1] != 1 {
		t.Fatalf("both callers should receive the shared result: %v", results)
	}
}
