package game

import (
	"cmp"
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/random"
	"log/slog"
	"slices"
	"time"
)

const (
	DefaultDwell           = 2500 * time.Millisecond
	DefaultFeedbackTimeout = 3 * time.Second
)

type QuestionSource interface {
	ListActive(ctx context.Context) ([]models.Question, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.GameSession) error
	Get(ctx context.Context, id string) (*models.GameSession, error)
	Transition(ctx context.Context, s *models.GameSession, from models.Status, fromIndex int) error
	SubmitToLeaderboard(ctx context.Context, sessionID string, now time.Time) (models.MergeResult, error)
}

// Service drives game sessions through their lifecycle. Every step is persisted with a conditional transition, so
// concurrent requests for the same session apply at most once.
type Service struct {
	questions       QuestionSource
	sessions        SessionStore
	logger          *slog.Logger
	now             func() time.Time
	draw            func() (float64, error)
	feedback        FeedbackGenerator
	dwell           time.Duration
	feedbackTimeout time.Duration
	onSubmitted     func(ctx context.Context, result models.MergeResult)
	evaluator       *Evaluator
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDraw replaces the crypto/rand outcome draw.
func WithDraw(draw func() (float64, error)) Option {
	return func(s *Service) { s.draw = draw }
}

func WithFeedbackGenerator(g FeedbackGenerator) Option {
	return func(s *Service) { s.feedback = g }
}

// WithDwell sets how long an outcome is shown before the session may advance.
func WithDwell(d time.Duration) Option {
	return func(s *Service) { s.dwell = d }
}

func WithFeedbackTimeout(d time.Duration) Option {
	return func(s *Service) { s.feedbackTimeout = d }
}

// WithScoreSubmittedHook registers fn to be called after a finished session reached the leaderboard.
func WithScoreSubmittedHook(fn func(ctx context.Context, result models.MergeResult)) Option {
	return func(s *Service) { s.onSubmitted = fn }
}

func NewService(questions QuestionSource, sessions SessionStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		questions:       questions,
		sessions:        sessions,
		logger:          logger.With("source", "game.Service"),
		now:             time.Now,
		draw:            random.Float64,
		feedback:        nil,
		dwell:           DefaultDwell,
		feedbackTimeout: DefaultFeedbackTimeout,
		onSubmitted:     nil,
		evaluator:       nil,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluator = NewEvaluator(s.feedback, s.feedbackTimeout, s.draw, s.logger)
	return s
}

func (s *Service) Dwell() time.Duration {
	return s.dwell
}

// StartGame creates a session for nickname over a snapshot of the active questions and shows the first question.
func (s *Service) StartGame(ctx context.Context, nickname string) (*models.GameSession, error) {
	nickname, err := models.ValidateNickname(nickname)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active questions")
	}
	if len(questions) == 0 {
		return nil, errors.Wrap(models.ErrNoContent, "no active questions")
	}
	slices.SortStableFunc(questions, func(a, b models.Question) int {
		return cmp.Compare(a.Order, b.Order)
	})

	now := s.now()
	session := models.NewGameSession(uuid.NewString(), nickname, questions, now)
	if err = session.Start(now); err != nil {
		return nil, err
	}
	if err = s.sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "game started",
		slog.String("session_id", session.ID), slog.Int("questions", len(questions)))
	return session, nil
}

// Session loads the session and applies the transitions that are due without player input.
//
// An expired countdown is answered with NO. A session left in evaluating longer than the feedback timeout, for
// example after a crash, is resolved from its stored pending decision.
func (s *Service) Session(ctx context.Context, id string) (*models.GameSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get session", slog.String("session_id", id))
	}
	now := s.now()
	switch {
	case session.Status == models.StatusPlaying && session.Expired(now):
		index := session.CurrentIndex
		if !session.Timeout(now) {
			return session, nil
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "countdown expired",
			slog.String("session_id", id), slog.Int("index", index))
		return s.persistAndResolve(ctx, session, index)
	case session.Status == models.StatusEvaluating &&
		now.Sub(session.EvaluatingSince) > s.feedbackTimeout+models.TimeoutGrace:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "recovering stuck evaluation",
			slog.String("session_id", id), slog.Time("evaluating_since", session.EvaluatingSince))
		return s.resolve(ctx, session)
	}
	return session, nil
}

// Answer submits decision for the question at index.
//
// A stale or duplicate submission returns [models.ErrConflict] and changes nothing.
func (s *Service) Answer(
	ctx context.Context,
	id string,
	index int,
	decision models.Decision,
) (*models.GameSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get session", slog.String("session_id", id))
	}
	if err = session.Submit(index, decision, s.now()); err != nil {
		return nil, err
	}
	return s.persistAndResolve(ctx, session, index)
}

func (s *Service) persistAndResolve(ctx context.Context, session *models.GameSession, index int) (*models.GameSession, error) {
	if err := s.sessions.Transition(ctx, session, models.StatusPlaying, index); err != nil {
		return nil, err
	}
	return s.resolve(ctx, session)
}

func (s *Service) resolve(ctx context.Context, session *models.GameSession) (*models.GameSession, error) {
	q, ok := session.CurrentQuestion()
	if !ok || session.Pending == nil {
		return nil, errors.New("evaluating session without pending answer", slog.String("session_id", session.ID))
	}
	result, err := s.evaluator.Evaluate(ctx, q, session.Pending.Decision, session.Nickname)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate", slog.String("session_id", session.ID))
	}
	if err = session.Resolve(result, s.now()); err != nil {
		return nil, err
	}
	if err = s.sessions.Transition(ctx, session, models.StatusEvaluating, session.CurrentIndex); err != nil {
		return nil, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "answer resolved",
		slog.String("session_id", session.ID),
		slog.Int("index", session.CurrentIndex),
		slog.String("outcome", string(result.Outcome)),
	)
	return session, nil
}

// Advance moves past the outcome of the question at index once the dwell has passed. The last advance finishes the
// session and submits its score to the leaderboard.
func (s *Service) Advance(ctx context.Context, id string, index int) (*models.GameSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get session", slog.String("session_id", id))
	}
	if session.Status == models.StatusOutcome && session.CurrentIndex != index {
		return nil, errors.Wrap(models.ErrConflict, "advance stale question",
			slog.Int("index", index), slog.Int("current_index", session.CurrentIndex))
	}
	if err = session.Advance(s.now(), s.dwell); err != nil {
		return nil, err
	}
	if err = s.sessions.Transition(ctx, session, models.StatusOutcome, index); err != nil {
		return nil, err
	}
	if session.Finished() {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "game finished",
			slog.String("session_id", id), slog.Int("score", session.Score),
			slog.Int64("total_time_ms", session.TotalTimeMs))
		s.submit(ctx, session)
	}
	return session, nil
}

// Results returns a finished session. A session whose leaderboard submission failed earlier is retried.
func (s *Service) Results(ctx context.Context, id string) (*models.GameSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get session", slog.String("session_id", id))
	}
	if !session.Finished() {
		return nil, errors.Wrap(models.ErrConflict, "session not finished",
			slog.String("session_id", id), slog.String("status", string(session.Status)))
	}
	if !session.LeaderboardSubmitted {
		s.submit(ctx, session)
	}
	return session, nil
}

// submit merges the session into the leaderboard. Failures are logged and leave LeaderboardSubmitted false.
func (s *Service) submit(ctx context.Context, session *models.GameSession) {
	result, err := s.sessions.SubmitToLeaderboard(ctx, session.ID, s.now())
	if errors.Is(err, models.ErrConflict) {
		// A concurrent request submitted it first.
		session.LeaderboardSubmitted = true
		return
	}
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "leaderboard submission failed", errors.SlogError(err))
		return
	}
	session.LeaderboardSubmitted = true
	if s.onSubmitted != nil {
		s.onSubmitted(ctx, result)
	}
}
