package domain

import "time"

// Identity is the user-supplied display name, the only form of login.
type Identity struct {
	Name string `json:"name"`
}

// Question models a multiple-choice trivia question. Options holds the
// correct answer and the incorrect ones, shuffled once at fetch time and
// fixed thereafter.
type Question struct {
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer"`
	Options       []string `json:"options"`
}

// AnswerRecord captures one submitted answer. Records are appended in the
// order answered and never mutated.
type AnswerRecord struct {
	Prompt        string `json:"prompt"`
	Selected      string `json:"selected"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// Status is the lifecycle phase of a quiz session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Session is the aggregate state of one quiz attempt. It is an immutable
// value: every transition returns a fully specified new Session, so no
// caller ever observes a half-applied update.
type Session struct {
	// AttemptID identifies one fetch-to-finish attempt in logs and
	// persisted records.
	AttemptID    string         `json:"attemptId,omitempty"`
	Questions    []Question     `json:"questions"`
	CurrentIndex int            `json:"currentIndex"`
	Score        int            `json:"score"`
	Answers      []AnswerRecord `json:"answers"`
	Deadline     time.Time      `json:"deadline"`
	Status       Status         `json:"status"`
}

// NewSession returns the empty idle session.
func NewSession() Session {
	return Session{Status: StatusIdle}
}

// WithFetching resets progress ahead of a question fetch. Score, answers
// and index are cleared immediately so observers never see a session that
// is finished and fetching at the same time. Questions from a previous
// attempt are kept until the fresh set arrives.
func (s Session) WithFetching() Session {
	return Session{
		AttemptID:    s.AttemptID,
		Questions:    s.Questions,
		CurrentIndex: 0,
		Score:        0,
		Answers:      nil,
		Deadline:     time.Time{},
		Status:       StatusFetching,
	}
}

// WithQuestions starts play with a freshly fetched question set and an
// absolute deadline.
func (s Session) WithQuestions(attemptID string, questions []Question, deadline time.Time) Session {
	return Session{
		AttemptID:    attemptID,
		Questions:    questions,
		CurrentIndex: 0,
		Score:        0,
		Answers:      nil,
		Deadline:     deadline,
		Status:       StatusPlaying,
	}
}

// WithAnswer appends one answer record, advances the index, bumps the
// score iff correct, and finishes the session when the last question has
// been answered.
func (s Session) WithAnswer(record AnswerRecord) Session {
	next := s
	next.Answers = append(append([]AnswerRecord(nil), s.Answers...), record)
	next.CurrentIndex = s.CurrentIndex + 1
	if record.Correct {
		next.Score = s.Score + 1
	}
	if next.CurrentIndex >= len(next.Questions) {
		next.Status = StatusFinished
	}
	return next
}

// WithTimeout force-finishes the session, keeping whatever progress was
// made. Unanswered questions stay unanswered.
func (s Session) WithTimeout() Session {
	next := s
	next.Status = StatusFinished
	return next
}

// Resumable reports whether the session should survive a restart as-is:
// it has questions and has not finished.
func (s Session) Resumable() bool {
	return len(s.Questions) > 0 && s.Status != StatusFinished
}

// Valid checks the structural invariants of a session, used to reject
// corrupt persisted state.
func (s Session) Valid() bool {
	switch s.Status {
	case StatusIdle, StatusFetching, StatusPlaying, StatusFinished:
	default:
		return false
	}
	if s.CurrentIndex < 0 || s.CurrentIndex > len(s.Questions) {
		return false
	}
	if len(s.Answers) != s.CurrentIndex {
		return false
	}
	if s.Score < 0 || s.Score > s.CurrentIndex {
		return false
	}
	if s.Status == StatusPlaying && (len(s.Questions) == 0 || s.Deadline.IsZero()) {
		return false
	}
	return true
}

// Remaining computes time left until the deadline. It is always derived
// from the absolute deadline, never from a decrementing counter, so time
// lost while the process was down is reflected correctly.
func Remaining(deadline, now time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	left := deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
