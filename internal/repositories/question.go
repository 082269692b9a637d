package repositories

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"log/slog"
	"time"
)

type QuestionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewQuestionRepository(db *sqlite.Database, logger *slog.Logger) *QuestionRepository {
	return &QuestionRepository{
		db:     db,
		logger: logger.With("source", "QuestionRepository"),
	}
}

// questionRow maps the questions table. Records are normalized into [models.Question] on read.
type questionRow struct {
	ID           string  `db:"id"`
	Text         string  `db:"text"`
	SuccessProb  float64 `db:"success_prob"`
	TimeLimitSec int     `db:"time_limit_sec"`
	MediaPosURL  string  `db:"media_pos_url"`
	MediaNegURL  string  `db:"media_neg_url"`
	Active       bool    `db:"active"`
	Order        int     `db:"order"`
	UpdatedAt    int64   `db:"updated_at"`
}

func (r questionRow) toModel() models.Question {
	return models.Question{
		ID:           r.ID,
		Text:         r.Text,
		SuccessProb:  r.SuccessProb,
		TimeLimitSec: r.TimeLimitSec,
		MediaPosURL:  r.MediaPosURL,
		MediaNegURL:  r.MediaNegURL,
		Active:       r.Active,
		Order:        r.Order,
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

func toQuestions(rows []questionRow) []models.Question {
	qs := make([]models.Question, len(rows))
	for i, row := range rows {
		qs[i] = row.toModel()
	}
	return qs
}

const questionColumns = `id, text, success_prob, time_limit_sec, media_pos_url, media_neg_url, active, "order", updated_at`

// ListActive returns the active questions in insertion order. Callers sort them by order.
func (r *QuestionRepository) ListActive(ctx context.Context) ([]models.Question, error) {
	var rows []questionRow
	stmt := `SELECT ` + questionColumns + ` FROM questions WHERE active = 1 ORDER BY rowid`
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "select active questions")
	}
	return toQuestions(rows), nil
}

// List returns every question, active or not, sorted by order.
func (r *QuestionRepository) List(ctx context.Context) ([]models.Question, error) {
	var rows []questionRow
	stmt := `SELECT ` + questionColumns + ` FROM questions ORDER BY "order", rowid`
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "select questions")
	}
	return toQuestions(rows), nil
}

func (r *QuestionRepository) Get(ctx context.Context, id string) (models.Question, error) {
	var row questionRow
	stmt := `SELECT ` + questionColumns + ` FROM questions WHERE id = ?`
	if err := r.db.ReadOnly.GetContext(ctx, &row, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Question{}, errors.Wrap(models.ErrNotFound, "question", slog.String("question_id", id)) //nolint:exhaustruct,lll // zero value on error
		}
		return models.Question{}, errors.Wrap(err, "get question", slog.String("question_id", id)) //nolint:exhaustruct // zero value on error
	}
	return row.toModel(), nil
}

func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.ReadOnly.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions`); err != nil {
		return 0, errors.Wrap(err, "count questions")
	}
	return n, nil
}

// Create stores a new active question at the end of the order.
func (r *QuestionRepository) Create(ctx context.Context, draft models.QuestionDraft, now time.Time) (models.Question, error) {
	if err := draft.Validate(); err != nil {
		return models.Question{}, errors.Wrap(err, "validate question") //nolint:exhaustruct // zero value on error
	}
	id := uuid.NewString()
	stmt := `INSERT INTO questions (` + questionColumns + `)
VALUES (:id, :text, :success_prob, :time_limit_sec, :media_pos_url, :media_neg_url, 1,
        (SELECT COALESCE(MAX("order"), 0) + 1 FROM questions), :updated_at)`
	args := map[string]any{
		"id":             id,
		"text":           draft.Text,
		"success_prob":   draft.SuccessProb,
		"time_limit_sec": draft.TimeLimitSec,
		"media_pos_url":  draft.MediaPosURL,
		"media_neg_url":  draft.MediaNegURL,
		"updated_at":     now.UnixMilli(),
	}
	if _, err := r.db.ReadWrite.NamedExecContext(ctx, stmt, args); err != nil {
		return models.Question{}, errors.Wrap(err, "insert question") //nolint:exhaustruct // zero value on error
	}
	var row questionRow
	if err := r.db.ReadWrite.GetContext(ctx, &row, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id); err != nil {
		return models.Question{}, errors.Wrap(err, "read created question") //nolint:exhaustruct // zero value on error
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "question created", slog.String("question_id", id))
	return row.toModel(), nil
}

// Update replaces the editable fields of a question. Running games keep their snapshot.
func (r *QuestionRepository) Update(ctx context.Context, id string, draft models.QuestionDraft, now time.Time) error {
	if err := draft.Validate(); err != nil {
		return errors.Wrap(err, "validate question")
	}
	stmt := `UPDATE questions
SET text           = ?,
    success_prob   = ?,
    time_limit_sec = ?,
    media_pos_url  = ?,
    media_neg_url  = ?,
    updated_at     = ?
WHERE id = ?`
	res, err := r.db.ReadWrite.ExecContext(ctx, stmt, draft.Text, draft.SuccessProb, draft.TimeLimitSec,
		draft.MediaPosURL, draft.MediaNegURL, now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "update question", slog.String("question_id", id))
	}
	return requireAffected(res, "question", slog.String("question_id", id))
}

// SetActive soft deletes or restores a question.
func (r *QuestionRepository) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := r.db.ReadWrite.ExecContext(ctx,
		`UPDATE questions SET active = ?, updated_at = ? WHERE id = ?`, active, now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "set question active", slog.String("question_id", id))
	}
	return requireAffected(res, "question", slog.String("question_id", id))
}

// Import inserts questions in one transaction, keeping their order and active flag.
//
// Questions without an id get a new one. Invalid questions abort the whole import.
func (r *QuestionRepository) Import(ctx context.Context, questions []models.Question, now time.Time) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt := `INSERT INTO questions (` + questionColumns + `)
VALUES (:id, :text, :success_prob, :time_limit_sec, :media_pos_url, :media_neg_url, :active, :order, :updated_at)`
		for i, q := range questions {
			if err := q.Draft().Validate(); err != nil {
				return errors.Wrap(err, "validate imported question", slog.Int("index", i))
			}
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			row := questionRow{
				ID:           q.ID,
				Text:         q.Text,
				SuccessProb:  q.SuccessProb,
				TimeLimitSec: q.TimeLimitSec,
				MediaPosURL:  q.MediaPosURL,
				MediaNegURL:  q.MediaNegURL,
				Active:       q.Active,
				Order:        q.Order,
				UpdatedAt:    now.UnixMilli(),
			}
			if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
				return errors.Wrap(err, "insert imported question", slog.Int("index", i))
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "import questions")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "questions imported", slog.Int("count", len(questions)))
	return nil
}

func requireAffected(res sql.Result, what string, attrs ...slog.Attr) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(models.ErrNotFound, what, attrs...)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) time.Time {
	if !ms.Valid {
		return time.Time{}
	}
	return fromMillis(ms.Int64)
}

func toNullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{Int64: 0, Valid: false}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
