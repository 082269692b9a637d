package models

import (
	"fmt"
	"github.com/myrjola/decisionverse/internal/errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

type Decision string

const (
	DecisionYes Decision = "YES"
	DecisionNo  Decision = "NO"
)

// ParseDecision accepts the form values "YES" and "NO" case-insensitively.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionYes:
		return DecisionYes, nil
	case DecisionNo:
		return DecisionNo, nil
	default:
		return "", ValidationErrors{{Field: "decision", Message: "La decisión debe ser SÍ o NO."}}
	}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFail    Outcome = "FAIL"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPlaying    Status = "playing"
	StatusEvaluating Status = "evaluating"
	StatusOutcome    Status = "outcome"
	StatusFinished   Status = "finished"
)

const (
	NicknameMinLen = 2
	NicknameMaxLen = 16

	// TimeoutGrace is the slack given to a browser submitting right at the deadline.
	TimeoutGrace = time.Second
)

// ValidateNickname trims raw and checks that its length in runes is within bounds.
func ValidateNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(nickname)
	switch {
	case n < NicknameMinLen:
		return nickname, ValidationErrors{{
			Field:   "nickname",
			Message: fmt.Sprintf("El nickname debe tener al menos %d caracteres.", NicknameMinLen),
		}}
	case n > NicknameMaxLen:
		return nickname, ValidationErrors{{
			Field:   "nickname",
			Message: fmt.Sprintf("El nickname no puede tener más de %d caracteres.", NicknameMaxLen),
		}}
	}
	return nickname, nil
}

// GameAnswer is one resolved decision. Answers are immutable once recorded.
type GameAnswer struct {
	QuestionID string
	Decision   Decision
	Outcome    Outcome
	TimeMs     int64
	AnsweredAt time.Time
}

// PendingAnswer is the decision waiting for the evaluator.
type PendingAnswer struct {
	Decision Decision
	TimeMs   int64
}

// Result is what the player sees during the outcome phase.
type Result struct {
	Outcome  Outcome
	Feedback string
	MediaURL string
}

// GameSession is one player's run through a snapshot of the active questions.
//
// All transitions go through the methods below so that the invariants checked by [GameSession.CheckInvariants]
// hold after every step.
type GameSession struct {
	ID        string
	Nickname  string
	Status    Status
	StartedAt time.Time
	// EndedAt is zero until the session is finished.
	EndedAt time.Time
	// Questions is the snapshot taken at start. Later edits to the question store do not affect it.
	Questions    []Question
	CurrentIndex int
	Score        int
	TotalTimeMs  int64
	Answers      []GameAnswer

	QuestionShownAt      time.Time
	EvaluatingSince      time.Time
	Pending              *PendingAnswer
	LastResult           *Result
	OutcomeShownAt       time.Time
	LeaderboardSubmitted bool
}

// NewGameSession creates a pending session owning a copy of questions.
func NewGameSession(id, nickname string, questions []Question, now time.Time) *GameSession {
	snapshot := make([]Question, len(questions))
	copy(snapshot, questions)
	return &GameSession{ //nolint:exhaustruct // remaining fields start zeroed
		ID:        id,
		Nickname:  nickname,
		Status:    StatusPending,
		StartedAt: now,
		Questions: snapshot,
		Answers:   []GameAnswer{},
	}
}

func (s *GameSession) conflict(op string, want Status) error {
	return errors.Wrap(ErrConflict, op,
		slog.String("session_id", s.ID),
		slog.String("status", string(s.Status)),
		slog.String("want_status", string(want)),
	)
}

// Start shows the first question.
func (s *GameSession) Start(now time.Time) error {
	if s.Status != StatusPending {
		return s.conflict("start", StatusPending)
	}
	if len(s.Questions) == 0 {
		return errors.Wrap(ErrNoContent, "start without questions", slog.String("session_id", s.ID))
	}
	s.Status = StatusPlaying
	s.CurrentIndex = 0
	s.QuestionShownAt = now
	return nil
}

// CurrentQuestion returns the question at the current index, if there is one.
func (s *GameSession) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false //nolint:exhaustruct // zero value
	}
	return s.Questions[s.CurrentIndex], true
}

// Deadline is when the countdown of the current question reaches zero.
func (s *GameSession) Deadline() time.Time {
	q, ok := s.CurrentQuestion()
	if !ok {
		return s.QuestionShownAt
	}
	return s.QuestionShownAt.Add(time.Duration(q.TimeLimitSec) * time.Second)
}

// Expired reports whether the current question can only be answered with an implicit NO.
func (s *GameSession) Expired(now time.Time) bool {
	return s.Status == StatusPlaying && now.After(s.Deadline().Add(TimeoutGrace))
}

// Submit records the decision for the question at index and moves to evaluating.
//
// A submission after the deadline plus [TimeoutGrace] is turned into NO with the full time limit as elapsed time.
func (s *GameSession) Submit(index int, decision Decision, now time.Time) error {
	if s.Status != StatusPlaying {
		return s.conflict("submit", StatusPlaying)
	}
	if index != s.CurrentIndex {
		return errors.Wrap(ErrConflict, "submit stale question",
			slog.String("session_id", s.ID),
			slog.Int("index", index),
			slog.Int("current_index", s.CurrentIndex),
		)
	}
	if decision != DecisionYes && decision != DecisionNo {
		return errors.Wrap(ErrValidation, "submit unknown decision", slog.String("decision", string(decision)))
	}
	q, _ := s.CurrentQuestion()
	limitMs := int64(q.TimeLimitSec) * time.Second.Milliseconds()

	timeMs := now.Sub(s.QuestionShownAt).Milliseconds()
	if s.Expired(now) {
		decision = DecisionNo
	}
	timeMs = max(0, min(timeMs, limitMs))

	s.Pending = &PendingAnswer{Decision: decision, TimeMs: timeMs}
	s.Status = StatusEvaluating
	s.EvaluatingSince = now
	return nil
}

// Timeout submits the implicit NO when the current question has expired. It reports whether it did.
func (s *GameSession) Timeout(now time.Time) bool {
	if !s.Expired(now) {
		return false
	}
	return s.Submit(s.CurrentIndex, DecisionNo, now) == nil
}

// Resolve records the evaluated answer and shows its result.
func (s *GameSession) Resolve(result Result, now time.Time) error {
	if s.Status != StatusEvaluating || s.Pending == nil {
		return s.conflict("resolve", StatusEvaluating)
	}
	q, _ := s.CurrentQuestion()
	s.Answers = append(s.Answers, GameAnswer{
		QuestionID: q.ID,
		Decision:   s.Pending.Decision,
		Outcome:    result.Outcome,
		TimeMs:     s.Pending.TimeMs,
		AnsweredAt: now,
	})
	if result.Outcome == OutcomeSuccess {
		s.Score++
	}
	s.TotalTimeMs += s.Pending.TimeMs
	s.Pending = nil
	s.EvaluatingSince = time.Time{}
	s.LastResult = &result
	s.Status = StatusOutcome
	s.OutcomeShownAt = now
	return nil
}

// CanAdvance reports whether the outcome has been shown for at least dwell.
func (s *GameSession) CanAdvance(now time.Time, dwell time.Duration) bool {
	return s.Status == StatusOutcome && !now.Before(s.OutcomeShownAt.Add(dwell))
}

// Advance leaves the outcome phase for the next question or finishes the session.
func (s *GameSession) Advance(now time.Time, dwell time.Duration) error {
	if s.Status != StatusOutcome {
		return s.conflict("advance", StatusOutcome)
	}
	if !s.CanAdvance(now, dwell) {
		return errors.Wrap(ErrConflict, "advance before dwell",
			slog.String("session_id", s.ID),
			slog.Duration("remaining", s.OutcomeShownAt.Add(dwell).Sub(now)),
		)
	}
	s.CurrentIndex++
	s.LastResult = nil
	s.OutcomeShownAt = time.Time{}
	if s.CurrentIndex >= len(s.Questions) {
		s.Status = StatusFinished
		s.EndedAt = now
		return nil
	}
	s.Status = StatusPlaying
	s.QuestionShownAt = now
	return nil
}

func (s *GameSession) Finished() bool {
	return s.Status == StatusFinished
}

// ScoreEntry returns the leaderboard record for a finished session.
func (s *GameSession) ScoreEntry() ScoreEntry {
	return ScoreEntry{
		Nickname:    s.Nickname,
		Score:       s.Score,
		TotalTimeMs: s.TotalTimeMs,
		CreatedAt:   s.EndedAt,
		SessionID:   s.ID,
	}
}

// CheckInvariants verifies the score, time and index bookkeeping against the answer log.
func (s *GameSession) CheckInvariants() error {
	var (
		successes int
		total     int64
	)
	for _, a := range s.Answers {
		if a.Outcome == OutcomeSuccess {
			successes++
		}
		total += a.TimeMs
	}
	if s.Score != successes {
		return errors.New("score does not match answer log",
			slog.Int("score", s.Score), slog.Int("successes", successes))
	}
	if s.TotalTimeMs != total {
		return errors.New("total time does not match answer log",
			slog.Int64("total_time_ms", s.TotalTimeMs), slog.Int64("sum", total))
	}
	wantAnswers := s.CurrentIndex
	if s.Status == StatusOutcome {
		wantAnswers = s.CurrentIndex + 1
	}
	if len(s.Answers) != wantAnswers {
		return errors.New("answer count does not match index",
			slog.Int("answers", len(s.Answers)), slog.Int("current_index", s.CurrentIndex),
			slog.String("status", string(s.Status)))
	}
	if s.Status == StatusFinished && s.CurrentIndex != len(s.Questions) {
		return errors.New("finished before the last question",
			slog.Int("current_index", s.CurrentIndex), slog.Int("questions", len(s.Questions)))
	}
	return nil
}

// FeedbackRequest is the input of a narrative feedback generator.
type FeedbackRequest struct {
	QuestionText string
	Decision     Decision
	Outcome      Outcome
	Nickname     string
}
