package source

import (
	"context"
	"strconv"

	"trivia-session-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Fetcher is the question-source contract consumed by the machine.
type Fetcher interface {
	Fetch(ctx context.Context, count int) ([]domain.Question, error)
}

// Collapsing deduplicates concurrent fetches for the same count into a
// single upstream call, backing the machine's in-flight latch at the I/O
// layer as well.
type Collapsing struct {
	inner Fetcher
	sf    singleflight.Group
}

func NewCollapsing(inner Fetcher) *Collapsing {
	return &Collapsing{inner: inner}
}

func (c *Collapsing) Fetch(ctx context.Context, count int) ([]domain.Question, error) {
	result, err, _ := c.sf.Do(strconv.Itoa(count), func() (interface{}, error) {
		return c.inner.Fetch(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}
