package domain_test

import (
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestSummarize(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	questions := make([]domain.Question, 10)
	for i := range questions {
		questions[i] = domain.Question{Prompt: "q", CorrectAnswer: "a", Options: []string{"a", "b"}}
	}

	s := domain.NewSession().WithQuestions("a", questions, deadline)
	for i := 0; i < 4; i++ {
		s = s.WithAnswer(domain.AnswerRecord{Correct: i < 3})
	}
	s = s.WithTimeout()

	summary := domain.Summarize(s)
	if summary.Total != 10 || summary.Answered != 4 || summary.Correct != 3 || summary.Wrong != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Percentage != 30 {
		t.Fatalf("expected 30%%, got %d", summary.Percentage)
	}
}

func TestGradeBands(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	cases := []struct {
		correct int
		total   int
		want    domain.Grade
	}{
		{10, 10, domain.GradePerfect},
		{8, 10, domain.GradeGreat},
		{5, 10, domain.GradePass},
		{4, 10, domain.GradeNeedsPractice},
		{0, 10, domain.GradeNeedsPractice},
	}
	for _, tc := range cases {
		questions := make([]domain.Question, tc.total)
		for i := range questions {
			questions[i] = domain.Question{Prompt: "q", CorrectAnswer: "a", Options: []string{"a", "b"}}
		}
		s := domain.NewSession().WithQuestions("a", questions, deadline)
		for i := 0; i < tc.total; i++ {
			s = s.WithAnswer(domain.AnswerRecord{Correct: i < tc.correct})
		}
		if got := domain.Summarize(s).Grade; got != tc.want {
			t.Fatalf("%d/%d: grade=%s want %s", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	summary := domain.Summarize(domain.NewSession())
	if summary.Percentage != 0 || summary.Total != 0 {
		t.Fatalf("empty session should score zero: %+v", summary)
	}
}
