package main

import (
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"log/slog"
	"net/http"
)

type answerRow struct {
	Number   int
	Question string
	models.GameAnswer
}

type resultsTemplateData struct {
	BaseTemplateData

	Session *models.GameSession
	Answers []answerRow
	// Rank is the player's position on the leaderboard, 0 when not listed.
	Rank        int
	Leaderboard []models.RankedEntry
	Highlight   string
	// LeaderboardUnavailable is set when the leaderboard could not be read. The results are shown anyway.
	LeaderboardUnavailable bool
}

func (app *application) results(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := app.game.Results(ctx, r.PathValue("sessionID"))
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, models.ErrConflict):
		http.Redirect(w, r, "/play", http.StatusSeeOther)
		return
	case err != nil:
		app.serverError(w, r, errors.Wrap(err, "game results"))
		return
	}

	unavailable := false
	top, err := app.leaderboard.Top(ctx, models.LeaderboardLimit)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "results without leaderboard",
			slog.String("session_id", session.ID), errors.SlogError(errors.Wrap(err, "leaderboard top")))
		unavailable = true
	}
	ranked := models.Rank(top)
	rank := 0
	for _, e := range ranked {
		if e.Nickname == session.Nickname {
			rank = e.Rank
			break
		}
	}

	texts := make(map[string]string, len(session.Questions))
	for _, q := range session.Questions {
		texts[q.ID] = q.Text
	}
	answers := make([]answerRow, len(session.Answers))
	for i, a := range session.Answers {
		answers[i] = answerRow{Number: i + 1, Question: texts[a.QuestionID], GameAnswer: a}
	}

	app.render(w, r, http.StatusOK, "results", resultsTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Session:          session,
		Answers:          answers,
		Rank:             rank,
		Leaderboard:      ranked,
		Highlight:        session.Nickname,

		LeaderboardUnavailable: unavailable,
	})
}
