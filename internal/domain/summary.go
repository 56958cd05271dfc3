package domain

import "math"

// Grade buckets a finished session's percentage for the result screen.
type Grade string

const (
	GradePerfect       Grade = "perfect"
	GradeGreat         Grade = "great"
	GradePass          Grade = "pass"
	GradeNeedsPractice Grade = "needs_practice"
)

// Summary is the scored result of a finished session.
type Summary struct {
	Total      int   `json:"total"`
	Answered   int   `json:"answered"`
	Correct    int   `json:"correct"`
	Wrong      int   `json:"wrong"`
	Percentage int   `json:"percentage"`
	Grade      Grade `json:"grade"`
}

// Summarize derives the result summary from a session. The percentage is
// computed against the full question count, so unanswered questions count
// against the score.
func Summarize(s Session) Summary {
	total := len(s.Questions)
	answered := len(s.Answers)
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(s.Score) / float64(total) * 100))
	}
	return Summary{
		Total:      total,
		Answered:   answered,
		Correct:    s.Score,
		Wrong:      answered - s.Score,
		Percentage: pct,
		Grade:      gradeFor(pct),
	}
}

func gradeFor(pct int) Grade {
	switch {
	case pct >= 100:
		return GradePerfect
	case pct >= 80:
		return GradeGreat
	case pct >= 50:
		return GradePass
	default:
		return GradeNeedsPractice
	}
}
