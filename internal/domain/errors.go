package domain

import "errors"

var (
	// ErrNoIdentity is returned when a session is started before login.
	ErrNoIdentity = errors.New("no identity: login required")
	// ErrEmptyName rejects a login with a blank display name.
	ErrEmptyName = errors.New("display name must not be empty")
	// ErrNotPlaying guards answer submission outside an active session.
	ErrNotPlaying = errors.New("session is not playing")
	// ErrSessionExpired indicates the deadline passed before the answer landed.
	ErrSessionExpired = errors.New("session time expired")
	// ErrQuestionsUnavailable indicates the question source could not
	// supply the requested number of questions.
	ErrQuestionsUnavailable = errors.New("questions unavailable")
)
