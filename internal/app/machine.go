package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"trivia-session-service/internal/domain"

	"github.com/google/uuid"
)

// QuestionSource supplies multiple-choice questions (trivia API, static set, etc).
// Any non-success indicator from the provider surfaces as an error.
type QuestionSource interface {
	Fetch(ctx context.Context, count int) ([]domain.Question, error)
}

// StateStore abstracts the key-value store that keeps identity and session
// records across restarts (in-memory, Redis, Postgres).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Remove(ctx context.Context, key string) error
}

// Config tunes one machine. Zero values fall back to the defaults used by
// the original quiz: 10 questions, 60 seconds, one retry after 2 seconds.
type Config struct {
	QuestionCount   int
	SessionDuration time.Duration
	RetryDelay      time.Duration
	TickInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuestionCount <= 0 {
		c.QuestionCount = 10
	}
	if c.SessionDuration <= 0 {
		c.SessionDuration = 60 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

// Snapshot is the read surface consumed by the presentation layer.
type Snapshot struct {
	Identity   *domain.Identity `json:"identity"`
	Session    domain.Session   `json:"session"`
	TimeLeft   time.Duration    `json:"timeLeft"`
	IsFetching bool             `json:"isFetching"`
	LastError  string           `json:"lastError,omitempty"`
}

// Machine owns the quiz session lifecycle for one player key: login state,
// fetch latch, countdown, scoring, and write-through persistence.
// All mutation happens under one mutex, mirroring the single-threaded
// callback model of the original client.
type Machine struct {
	key    string
	source QuestionSource
	store  StateStore
	cfg    Config
	clock  func() time.Time

	mu          sync.Mutex
	identity    *domain.Identity
	session     domain.Session
	fetching    bool
	generation  uint64
	lastErr     string
	subscribers map[chan Snapshot]struct{}
}

func NewMachine(key string, source QuestionSource, store StateStore, cfg Config) *Machine {
	return NewMachineWithClock(key, source, store, cfg, time.Now)
}

// NewMachineWithClock allows a deterministic clock in tests.
func NewMachineWithClock(key string, source QuestionSource, store StateStore, cfg Config, now func() time.Time) *Machine {
	return &Machine{
		key:         key,
		source:      source,
		store:       store,
		cfg:         cfg.withDefaults(),
		clock:       now,
		session:     domain.NewSession(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Restore loads identity and session from the state store. Missing or
// corrupt records fall back to the empty state. A restored playing session
// whose deadline has already passed is normalized to finished before
// anything can observe it; the stored deadline is the source of truth.
func (m *Machine) Restore(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok, err := m.store.Get(ctx, m.identityKey()); err != nil {
		log.Printf("machine %s: restore identity: %v", m.key, err)
	} else if ok {
		var identity domain.Identity
		if err := json.Unmarshal(data, &identity); err == nil && identity.Name != "" {
			m.identity = &identity
		}
	}

	if data, ok, err := m.store.Get(ctx, m.sessionKey()); err != nil {
		log.Printf("machine %s: restore session: %v", m.key, err)
	} else if ok {
		var session domain.Session
		if err := json.Unmarshal(data, &session); err == nil && session.Valid() {
			m.session = session
		}
	}

	// An interrupted fetch does not survive a restart.
	if m.session.Status == domain.StatusFetching {
		m.session = domain.NewSession()
	}
	if m.session.Status == domain.StatusPlaying && !m.session.Deadline.After(m.clock()) {
		m.session = m.session.WithTimeout()
		m.persistLocked(ctx)
	}
}

// Login records the identity for this machine. The name must be non-empty
// after trimming.
func (m *Machine) Login(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &domain.Identity{Name: name}
	m.persistLocked(ctx)
	m.broadcastLocked()
	return nil
}

// Logout clears identity and session, purges persisted state, and
// releases the fetch latch unconditionally in case a fetch was abandoned
// mid-flight. Any such fetch resolves into a discarded update.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = nil
	m.session = domain.NewSession()
	m.generation++
	m.fetching = false
	m.lastErr = ""
	if err := m.store.Remove(ctx, m.identityKey()); err != nil {
		log.Printf("machine %s: remove identity: %v", m.key, err)
	}
	if err := m.store.Remove(ctx, m.sessionKey()); err != nil {
		log.Printf("machine %s: remove session: %v", m.key, err)
	}
	m.broadcastLocked()
}

// StartSession begins (or restarts) a quiz attempt. It is a no-op when an
// unfinished session can be resumed in place, and collapses into the
// in-flight fetch when one is already pending. Progress is cleared before
// the fetch resolves so no observer sees a finished-but-fetching state.
// On fetch failure exactly one retry runs after the configured delay; a
// second failure is terminal for this attempt and requires another
// explicit StartSession.
func (m *Machine) StartSession(ctx context.Context) error {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return domain.ErrNoIdentity
	}
	if m.session.Status == domain.StatusPlaying {
		if m.session.Deadline.After(m.clock()) {
			// Resume in place: a reload mid-quiz must not restart it.
			m.mu.Unlock()
			return nil
		}
		m.session = m.session.WithTimeout()
		m.persistLocked(ctx)
		m.broadcastLocked()
	}
	if m.fetching {
		m.mu.Unlock()
		return nil
	}
	m.fetching = true
	m.lastErr = ""
	m.generation++
	generation := m.generation
	m.session = m.session.WithFetching()
	m.persistLocked(ctx)
	m.broadcastLocked()
	m.mu.Unlock()

	questions, err := m.source.Fetch(ctx, m.cfg.QuestionCount)
	if err != nil {
		log.Printf("machine %s: question fetch failed, retrying in %s: %v", m.key, m.cfg.RetryDelay, err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(m.cfg.RetryDelay):
			questions, err = m.source.Fetch(ctx, m.cfg.QuestionCount)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		// The session was reset or logged out while the fetch was in
		// flight; this result belongs to a dead attempt.
		return nil
	}
	m.fetching = false
	if err != nil {
		m.lastErr = "could not load questions, check your connection and start again"
		log.Printf("machine %s: question fetch failed twice: %v", m.key, err)
		m.broadcastLocked()
		return err
	}
	deadline := m.clock().Add(m.cfg.SessionDuration)
	m.session = m.session.WithQuestions(uuid.NewString(), questions, deadline)
	m.persistLocked(ctx)
	m.broadcastLocked()
	return nil
}

// SubmitAnswer scores the selected option against the current question.
// The deadline is checked before the answer is applied: a submission that
// arrives at or after expiry finishes the session and is not scored, so
// the timer always wins the race with a same-instant final answer.
func (m *Machine) SubmitAnswer(ctx context.Context, selected string) (domain.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status == domain.StatusPlaying && !m.session.Deadline.After(m.clock()) {
		m.session = m.session.WithTimeout()
		m.persistLocked(ctx)
		m.broadcastLocked()
		return domain.AnswerRecord{}, domain.ErrSessionExpired
	}
	if m.session.Status != domain.StatusPlaying {
		return domain.AnswerRecord{}, domain.ErrNotPlaying
	}
	if m.session.CurrentIndex >= len(m.session.Questions) {
		return domain.AnswerRecord{}, domain.ErrNotPlaying
	}

	question := m.session.Questions[m.session.CurrentIndex]
	record := domain.AnswerRecord{
		Prompt:        question.Prompt,
		Selected:      selected,
		CorrectAnswer: question.CorrectAnswer,
		Correct:       selected == question.CorrectAnswer,
	}
	m.session = m.session.WithAnswer(record)
	m.persistLocked(ctx)
	m.broadcastLocked()
	return record, nil
}

// Snapshot returns the current read surface. Time left is always derived
// from the absolute deadline.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Tick is one beat of the countdown observer: while playing, it checks
// the deadline and force-finishes the session once time is up. The
// transition is authoritative; no later answer can undo it.
func (m *Machine) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != domain.StatusPlaying {
		return
	}
	if m.session.Deadline.After(m.clock()) {
		m.broadcastLocked() // keep observers' countdown display fresh
		return
	}
	m.session = m.session.WithTimeout()
	m.persistLocked(ctx)
	m.broadcastLocked()
}

// Run drives the countdown observer until the context is canceled.
func (m *Machine) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Idle reports whether nothing observes or drives this machine: no
// subscribers, no in-flight fetch, and no session being played. Idle
// machines are safe to evict; their state lives in the store.
func (m *Machine) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers) == 0 && !m.fetching && m.session.Status != domain.StatusPlaying
}

// Subscribe returns a channel that receives a snapshot after every state
// change. The caller must invoke the cancel function to avoid leaks.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	initial := m.snapshotLocked()
	m.mu.Unlock()

	ch <- initial

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Machine) snapshotLocked() Snapshot {
	var left time.Duration
	if m.session.Status == domain.StatusPlaying {
		left = domain.Remaining(m.session.Deadline, m.clock())
	}
	return Snapshot{
		Identity:   m.identity,
		Session:    m.session,
		TimeLeft:   left,
		IsFetching: m.fetching,
		LastError:  m.lastErr,
	}
}

func (m *Machine) broadcastLocked() {
	snap := m.snapshotLocked()
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow consumer never blocks
			// the machine.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// persistLocked writes identity and session through to the state store.
// The transient initial idle state is never written. Store failures are
// logged, not surfaced: persistence is best-effort, like the browser
// storage it replaces.
func (m *Machine) persistLocked(ctx context.Context) {
	if m.identity != nil {
		if data, err := json.Marshal(m.identity); err == nil {
			if err := m.store.Set(ctx, m.identityKey(), data); err != nil {
				log.Printf("machine %s: persist identity: %v", m.key, err)
			}
		}
	}
	if m.session.Status == domain.StatusIdle {
		return
	}
	data, err := json.Marshal(m.session)
	if err != nil {
		log.Printf("machine %s: marshal session: %v", m.key, err)
		return
	}
	if err := m.store.Set(ctx, m.sessionKey(), data); err != nil {
		log.Printf("machine %s: persist session: %v", m.key, err)
	}
}

func (m *Machine) identityKey() string {
	return "quiz:identity:" + m.key
}

func (m *Machine) sessionKey() string {
	return "quiz:session:" + m.key
}
