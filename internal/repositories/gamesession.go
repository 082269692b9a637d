package repositories

import (
	"context"
	"database/sql"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"log/slog"
	"time"
)

type GameSessionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewGameSessionRepository(db *sqlite.Database, logger *slog.Logger) *GameSessionRepository {
	return &GameSessionRepository{
		db:     db,
		logger: logger.With("source", "GameSessionRepository"),
	}
}

type gameSessionRow struct {
	ID                   string         `db:"id"`
	Nickname             string         `db:"nickname"`
	Status               string         `db:"status"`
	StartedAt            int64          `db:"started_at"`
	EndedAt              sql.NullInt64  `db:"ended_at"`
	CurrentIndex         int            `db:"current_index"`
	Score                int            `db:"score"`
	TotalTimeMs          int64          `db:"total_time_ms"`
	QuestionShownAt      sql.NullInt64  `db:"question_shown_at"`
	PendingDecision      sql.NullString `db:"pending_decision"`
	PendingTimeMs        sql.NullInt64  `db:"pending_time_ms"`
	EvaluatingSince      sql.NullInt64  `db:"evaluating_since"`
	LastOutcome          sql.NullString `db:"last_outcome"`
	LastFeedback         sql.NullString `db:"last_feedback"`
	LastMediaURL         sql.NullString `db:"last_media_url"`
	OutcomeShownAt       sql.NullInt64  `db:"outcome_shown_at"`
	LeaderboardSubmitted bool           `db:"leaderboard_submitted"`
}

func newGameSessionRow(s *models.GameSession) gameSessionRow {
	row := gameSessionRow{
		ID:                   s.ID,
		Nickname:             s.Nickname,
		Status:               string(s.Status),
		StartedAt:            s.StartedAt.UnixMilli(),
		EndedAt:              toNullMillis(s.EndedAt),
		CurrentIndex:         s.CurrentIndex,
		Score:                s.Score,
		TotalTimeMs:          s.TotalTimeMs,
		QuestionShownAt:      toNullMillis(s.QuestionShownAt),
		PendingDecision:      sql.NullString{String: "", Valid: false},
		PendingTimeMs:        sql.NullInt64{Int64: 0, Valid: false},
		EvaluatingSince:      toNullMillis(s.EvaluatingSince),
		LastOutcome:          sql.NullString{String: "", Valid: false},
		LastFeedback:         sql.NullString{String: "", Valid: false},
		LastMediaURL:         sql.NullString{String: "", Valid: false},
		OutcomeShownAt:       toNullMillis(s.OutcomeShownAt),
		LeaderboardSubmitted: s.LeaderboardSubmitted,
	}
	if s.Pending != nil {
		row.PendingDecision = sql.NullString{String: string(s.Pending.Decision), Valid: true}
		row.PendingTimeMs = sql.NullInt64{Int64: s.Pending.TimeMs, Valid: true}
	}
	if s.LastResult != nil {
		row.LastOutcome = sql.NullString{String: string(s.LastResult.Outcome), Valid: true}
		row.LastFeedback = sql.NullString{String: s.LastResult.Feedback, Valid: true}
		row.LastMediaURL = sql.NullString{String: s.LastResult.MediaURL, Valid: true}
	}
	return row
}

func (r gameSessionRow) toModel() *models.GameSession {
	s := &models.GameSession{
		ID:                   r.ID,
		Nickname:             r.Nickname,
		Status:               models.Status(r.Status),
		StartedAt:            fromMillis(r.StartedAt),
		EndedAt:              fromNullMillis(r.EndedAt),
		Questions:            nil,
		CurrentIndex:         r.CurrentIndex,
		Score:                r.Score,
		TotalTimeMs:          r.TotalTimeMs,
		Answers:              nil,
		QuestionShownAt:      fromNullMillis(r.QuestionShownAt),
		EvaluatingSince:      fromNullMillis(r.EvaluatingSince),
		Pending:              nil,
		LastResult:           nil,
		OutcomeShownAt:       fromNullMillis(r.OutcomeShownAt),
		LeaderboardSubmitted: r.LeaderboardSubmitted,
	}
	if r.PendingDecision.Valid {
		s.Pending = &models.PendingAnswer{
			Decision: models.Decision(r.PendingDecision.String),
			TimeMs:   r.PendingTimeMs.Int64,
		}
	}
	if r.LastOutcome.Valid {
		s.LastResult = &models.Result{
			Outcome:  models.Outcome(r.LastOutcome.String),
			Feedback: r.LastFeedback.String,
			MediaURL: r.LastMediaURL.String,
		}
	}
	return s
}

type sessionQuestionRow struct {
	SessionID    string  `db:"session_id"`
	Position     int     `db:"position"`
	QuestionID   string  `db:"question_id"`
	Text         string  `db:"text"`
	SuccessProb  float64 `db:"success_prob"`
	TimeLimitSec int     `db:"time_limit_sec"`
	MediaPosURL  string  `db:"media_pos_url"`
	MediaNegURL  string  `db:"media_neg_url"`
}

type answerRow struct {
	SessionID  string `db:"session_id"`
	Position   int    `db:"position"`
	QuestionID string `db:"question_id"`
	Decision   string `db:"decision"`
	Outcome    string `db:"outcome"`
	TimeMs     int64  `db:"time_ms"`
	CreatedAt  int64  `db:"created_at"`
}

const gameSessionColumns = `id, nickname, status, started_at, ended_at, current_index, score, total_time_ms,
       question_shown_at, pending_decision, pending_time_ms, evaluating_since, last_outcome, last_feedback,
       last_media_url, outcome_shown_at, leaderboard_submitted`

// Create stores a new session together with its question snapshot.
func (r *GameSessionRepository) Create(ctx context.Context, s *models.GameSession) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt := `INSERT INTO game_sessions (` + gameSessionColumns + `)
VALUES (:id, :nickname, :status, :started_at, :ended_at, :current_index, :score, :total_time_ms,
        :question_shown_at, :pending_decision, :pending_time_ms, :evaluating_since, :last_outcome, :last_feedback,
        :last_media_url, :outcome_shown_at, :leaderboard_submitted)`
		if _, err := tx.NamedExecContext(ctx, stmt, newGameSessionRow(s)); err != nil {
			return errors.Wrap(err, "insert session")
		}
		stmt = `INSERT INTO session_questions
    (session_id, position, question_id, text, success_prob, time_limit_sec, media_pos_url, media_neg_url)
VALUES (:session_id, :position, :question_id, :text, :success_prob, :time_limit_sec, :media_pos_url, :media_neg_url)`
		for i, q := range s.Questions {
			row := sessionQuestionRow{
				SessionID:    s.ID,
				Position:     i,
				QuestionID:   q.ID,
				Text:         q.Text,
				SuccessProb:  q.SuccessProb,
				TimeLimitSec: q.TimeLimitSec,
				MediaPosURL:  q.MediaPosURL,
				MediaNegURL:  q.MediaNegURL,
			}
			if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
				return errors.Wrap(err, "insert session question", slog.Int("position", i))
			}
		}
		return insertAnswers(ctx, tx, s)
	})
	if err != nil {
		return errors.Wrap(err, "create session", slog.String("session_id", s.ID))
	}
	return nil
}

// Get loads a session with its question snapshot and answer log.
func (r *GameSessionRepository) Get(ctx context.Context, id string) (*models.GameSession, error) {
	var row gameSessionRow
	err := r.db.ReadOnly.GetContext(ctx, &row, `SELECT `+gameSessionColumns+` FROM game_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(models.ErrNotFound, "session", slog.String("session_id", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session", slog.String("session_id", id))
	}
	s := row.toModel()

	var questionRows []sessionQuestionRow
	if err = r.db.ReadOnly.SelectContext(ctx, &questionRows, `SELECT session_id, position, question_id, text,
       success_prob, time_limit_sec, media_pos_url, media_neg_url
FROM session_questions WHERE session_id = ? ORDER BY position`, id); err != nil {
		return nil, errors.Wrap(err, "select session questions", slog.String("session_id", id))
	}
	s.Questions = make([]models.Question, len(questionRows))
	for i, q := range questionRows {
		s.Questions[i] = models.Question{
			ID:           q.QuestionID,
			Text:         q.Text,
			SuccessProb:  q.SuccessProb,
			TimeLimitSec: q.TimeLimitSec,
			MediaPosURL:  q.MediaPosURL,
			MediaNegURL:  q.MediaNegURL,
			Active:       true,
			Order:        i,
			UpdatedAt:    s.StartedAt,
		}
	}

	var answerRows []answerRow
	if err = r.db.ReadOnly.SelectContext(ctx, &answerRows, `SELECT session_id, position, question_id, decision,
       outcome, time_ms, created_at
FROM answers WHERE session_id = ? ORDER BY position`, id); err != nil {
		return nil, errors.Wrap(err, "select answers", slog.String("session_id", id))
	}
	s.Answers = make([]models.GameAnswer, len(answerRows))
	for i, a := range answerRows {
		s.Answers[i] = models.GameAnswer{
			QuestionID: a.QuestionID,
			Decision:   models.Decision(a.Decision),
			Outcome:    models.Outcome(a.Outcome),
			TimeMs:     a.TimeMs,
			AnsweredAt: fromMillis(a.CreatedAt),
		}
	}
	return s, nil
}

// Transition persists s if the stored session is still in status from at index fromIndex.
//
// It returns [models.ErrConflict] when another request already moved the session on.
func (r *GameSessionRepository) Transition(
	ctx context.Context,
	s *models.GameSession,
	from models.Status,
	fromIndex int,
) error {
	if err := s.CheckInvariants(); err != nil {
		return errors.Wrap(err, "refuse to persist inconsistent session", slog.String("session_id", s.ID))
	}
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		args := struct {
			gameSessionRow
			FromStatus string `db:"from_status"`
			FromIndex  int    `db:"from_index"`
		}{
			gameSessionRow: newGameSessionRow(s),
			FromStatus:     string(from),
			FromIndex:      fromIndex,
		}
		res, err := tx.NamedExecContext(ctx, `UPDATE game_sessions
SET status                = :status,
    ended_at              = :ended_at,
    current_index         = :current_index,
    score                 = :score,
    total_time_ms         = :total_time_ms,
    question_shown_at     = :question_shown_at,
    pending_decision      = :pending_decision,
    pending_time_ms       = :pending_time_ms,
    evaluating_since      = :evaluating_since,
    last_outcome          = :last_outcome,
    last_feedback         = :last_feedback,
    last_media_url        = :last_media_url,
    outcome_shown_at      = :outcome_shown_at,
    leaderboard_submitted = :leaderboard_submitted
WHERE id = :id AND status = :from_status AND current_index = :from_index`, args)
		if err != nil {
			return errors.Wrap(err, "update session")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return errors.Wrap(models.ErrConflict, "session moved on",
				slog.String("from_status", string(from)), slog.Int("from_index", fromIndex))
		}
		return insertAnswers(ctx, tx, s)
	})
	if err != nil {
		return errors.Wrap(err, "transition session",
			slog.String("session_id", s.ID), slog.String("status", string(s.Status)))
	}
	return nil
}

// insertAnswers appends answers that are not stored yet. Stored answers are immutable.
func insertAnswers(ctx context.Context, tx *sqlx.Tx, s *models.GameSession) error {
	for i, a := range s.Answers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO answers
    (session_id, position, question_id, decision, outcome, time_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id, position) DO NOTHING`,
			s.ID, i, a.QuestionID, string(a.Decision), string(a.Outcome), a.TimeMs,
			a.AnsweredAt.UnixMilli()); err != nil {
			return errors.Wrap(err, "insert answer", slog.Int("position", i))
		}
	}
	return nil
}

// SubmitToLeaderboard merges the result of a finished session into the leaderboard exactly once.
//
// The submission flag and the leaderboard upsert are written in the same transaction. A session that was already
// submitted returns [models.ErrConflict].
func (r *GameSessionRepository) SubmitToLeaderboard(
	ctx context.Context,
	sessionID string,
	now time.Time,
) (models.MergeResult, error) {
	var result models.MergeResult
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var row gameSessionRow
		err := tx.GetContext(ctx, &row, `SELECT `+gameSessionColumns+` FROM game_sessions WHERE id = ?`, sessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(models.ErrNotFound, "session")
		}
		if err != nil {
			return errors.Wrap(err, "read session")
		}
		s := row.toModel()
		if !s.Finished() {
			return errors.Wrap(models.ErrConflict, "session not finished", slog.String("status", row.Status))
		}
		if s.LeaderboardSubmitted {
			return errors.Wrap(models.ErrConflict, "already submitted")
		}
		if result, err = upsertBest(ctx, tx, s.ScoreEntry(), now); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE game_sessions SET leaderboard_submitted = 1 WHERE id = ?`, sessionID); err != nil {
			return errors.Wrap(err, "mark submitted")
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "submit session to leaderboard", slog.String("session_id", sessionID))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "session submitted to leaderboard",
		slog.String("session_id", sessionID), slog.String("result", string(result)))
	return result, nil
}
