package repositories

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"log/slog"
)

type AnalyticsRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewAnalyticsRepository(db *sqlite.Database, logger *slog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: logger.With("source", "AnalyticsRepository"),
	}
}

// Compute aggregates the recorded answers and leaderboard into the admin overview.
func (r *AnalyticsRepository) Compute(ctx context.Context) (models.Analytics, error) {
	var summary struct {
		TotalPlayers  int     `db:"total_players"`
		GamesStarted  int     `db:"games_started"`
		GamesFinished int     `db:"games_finished"`
		AverageScore  float64 `db:"average_score"`
		TotalAnswers  int     `db:"total_answers"`
		Successes     int     `db:"successes"`
	}
	if err := r.db.ReadOnly.GetContext(ctx, &summary, `SELECT
    (SELECT COUNT(*) FROM scores)                                                    AS total_players,
    (SELECT COUNT(*) FROM game_sessions)                                             AS games_started,
    (SELECT COUNT(*) FROM game_sessions WHERE status = 'finished')                   AS games_finished,
    (SELECT COALESCE(AVG(score), 0.0) FROM game_sessions WHERE status = 'finished')  AS average_score,
    (SELECT COUNT(*) FROM answers)                                                   AS total_answers,
    (SELECT COUNT(*) FROM answers WHERE outcome = 'SUCCESS')                         AS successes`); err != nil {
		return models.Analytics{}, errors.Wrap(err, "query summary") //nolint:exhaustruct // zero value on error
	}

	var perQuestion []struct {
		QuestionID string `db:"question_id"`
		Text       string `db:"text"`
		Active     bool   `db:"active"`
		Yes        int    `db:"yes_count"`
		No         int    `db:"no_count"`
		Successes  int    `db:"successes"`
	}
	if err := r.db.ReadOnly.SelectContext(ctx, &perQuestion, `SELECT q.id                                                     AS question_id,
       q.text                                                   AS text,
       q.active                                                 AS active,
       COUNT(CASE WHEN a.decision = 'YES' THEN 1 END)           AS yes_count,
       COUNT(CASE WHEN a.decision = 'NO' THEN 1 END)            AS no_count,
       COUNT(CASE WHEN a.outcome = 'SUCCESS' THEN 1 END)        AS successes
FROM questions q
LEFT JOIN answers a ON a.question_id = q.id
GROUP BY q.id
ORDER BY q."order", q.rowid`); err != nil {
		return models.Analytics{}, errors.Wrap(err, "query per question") //nolint:exhaustruct // zero value on error
	}

	analytics := models.Analytics{
		TotalPlayers:  summary.TotalPlayers,
		GamesStarted:  summary.GamesStarted,
		GamesFinished: summary.GamesFinished,
		AverageScore:  summary.AverageScore,
		TotalAnswers:  summary.TotalAnswers,
		SuccessRate:   0,
		Questions:     make([]models.QuestionStats, len(perQuestion)),
	}
	if summary.TotalAnswers > 0 {
		analytics.SuccessRate = float64(summary.Successes) * 100 / float64(summary.TotalAnswers) //nolint:mnd // percent
	}
	for i, q := range perQuestion {
		analytics.Questions[i] = models.QuestionStats{
			QuestionID: q.QuestionID,
			Text:       q.Text,
			Active:     q.Active,
			Yes:        q.Yes,
			No:         q.No,
			Successes:  q.Successes,
		}
	}
	return analytics, nil
}
