package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// StaticSource serves questions from a fixed in-memory pool, useful for
// tests and offline demos. Each fetch draws a shuffled selection so
// repeated sessions do not replay the same order.
type StaticSource struct {
	mu   sync.Mutex
	pool []domain.Question
	rnd  *rand.Rand
}

func NewStaticSource(pool []domain.Question) *StaticSource {
	return &StaticSource{
		pool: pool,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *StaticSource) Fetch(_ context.Context, count int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > len(s.pool) {
		return nil, domain.ErrQuestionsUnavailable
	}
	picks := s.rnd.Perm(len(s.pool))[:count]
	questions := make([]domain.Question, 0, count)
	for _, i := range picks {
		questions = append(questions, s.pool[i])
	}
	return questions, nil
}
