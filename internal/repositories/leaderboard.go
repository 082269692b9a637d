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

type LeaderboardRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewLeaderboardRepository(db *sqlite.Database, logger *slog.Logger) *LeaderboardRepository {
	return &LeaderboardRepository{
		db:     db,
		logger: logger.With("source", "LeaderboardRepository"),
	}
}

type scoreRow struct {
	Nickname    string `db:"nickname"`
	Score       int    `db:"score"`
	TotalTimeMs int64  `db:"total_time_ms"`
	CreatedAt   int64  `db:"created_at"`
	SessionID   string `db:"session_id"`
}

func (r scoreRow) toModel() models.ScoreEntry {
	return models.ScoreEntry{
		Nickname:    r.Nickname,
		Score:       r.Score,
		TotalTimeMs: r.TotalTimeMs,
		CreatedAt:   fromMillis(r.CreatedAt),
		SessionID:   r.SessionID,
	}
}

func toScoreEntries(rows []scoreRow) []models.ScoreEntry {
	entries := make([]models.ScoreEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.toModel()
	}
	return entries
}

const rankOrder = `ORDER BY score DESC, total_time_ms ASC, created_at DESC`

// SubmitScore merges entry into the leaderboard with the keep-best rule.
//
// The read and the conditional write share one immediate transaction so concurrent submissions for the same
// nickname cannot lose updates.
func (r *LeaderboardRepository) SubmitScore(
	ctx context.Context,
	entry models.ScoreEntry,
	now time.Time,
) (models.MergeResult, error) {
	var result models.MergeResult
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = upsertBest(ctx, tx, entry, now)
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "submit score", slog.String("nickname", entry.Nickname))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "score submitted",
		slog.String("nickname", entry.Nickname),
		slog.Int("score", entry.Score),
		slog.String("result", string(result)))
	return result, nil
}

func upsertBest(ctx context.Context, tx *sqlx.Tx, entry models.ScoreEntry, now time.Time) (models.MergeResult, error) {
	var (
		row      scoreRow
		existing *models.ScoreEntry
	)
	err := tx.GetContext(ctx, &row, `SELECT nickname, score, total_time_ms, created_at, session_id
FROM scores WHERE nickname = ?`, entry.Nickname)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", errors.Wrap(err, "read score")
	default:
		e := row.toModel()
		existing = &e
	}

	merged, result := models.Merge(existing, entry)
	switch result {
	case models.MergeCreated:
		_, err = tx.ExecContext(ctx, `INSERT INTO scores (nickname, score, total_time_ms, created_at, session_id)
VALUES (?, ?, ?, ?, ?)`, merged.Nickname, merged.Score, merged.TotalTimeMs, now.UnixMilli(), merged.SessionID)
	case models.MergeImproved:
		_, err = tx.ExecContext(ctx, `UPDATE scores
SET score = ?, total_time_ms = ?, created_at = ?, session_id = ?
WHERE nickname = ?`, merged.Score, merged.TotalTimeMs, now.UnixMilli(), merged.SessionID, merged.Nickname)
	case models.MergeKept:
	}
	if err != nil {
		return "", errors.Wrap(err, "write score", slog.String("result", string(result)))
	}
	return result, nil
}

// Top returns at most limit ranked entries. The limit is capped at [models.LeaderboardLimit].
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	if limit <= 0 || limit > models.LeaderboardLimit {
		limit = models.LeaderboardLimit
	}
	var rows []scoreRow
	stmt := `SELECT nickname, score, total_time_ms, created_at, session_id FROM scores ` + rankOrder + ` LIMIT ?`
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt, limit); err != nil {
		return nil, errors.Wrap(err, "select top scores")
	}
	return toScoreEntries(rows), nil
}

// ListAll returns every record in rank order for the admin panel.
func (r *LeaderboardRepository) ListAll(ctx context.Context) ([]models.ScoreEntry, error) {
	var rows []scoreRow
	stmt := `SELECT nickname, score, total_time_ms, created_at, session_id FROM scores ` + rankOrder
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "select scores")
	}
	return toScoreEntries(rows), nil
}

func (r *LeaderboardRepository) Get(ctx context.Context, nickname string) (models.ScoreEntry, error) {
	var row scoreRow
	err := r.db.ReadOnly.GetContext(ctx, &row, `SELECT nickname, score, total_time_ms, created_at, session_id
FROM scores WHERE nickname = ?`, nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoreEntry{}, errors.Wrap(models.ErrNotFound, "score", slog.String("nickname", nickname)) //nolint:exhaustruct,lll // zero value on error
	}
	if err != nil {
		return models.ScoreEntry{}, errors.Wrap(err, "get score", slog.String("nickname", nickname)) //nolint:exhaustruct // zero value on error
	}
	return row.toModel(), nil
}

func (r *LeaderboardRepository) Delete(ctx context.Context, nickname string) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM scores WHERE nickname = ?`, nickname)
	if err != nil {
		return errors.Wrap(err, "delete score", slog.String("nickname", nickname))
	}
	if err = requireAffected(res, "score", slog.String("nickname", nickname)); err != nil {
		return err
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "player deleted", slog.String("nickname", nickname))
	return nil
}

// Clear deletes every leaderboard record and returns how many were removed.
func (r *LeaderboardRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM scores`)
	if err != nil {
		return 0, errors.Wrap(err, "clear scores")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "leaderboard cleared", slog.Int64("deleted", n))
	return n, nil
}
