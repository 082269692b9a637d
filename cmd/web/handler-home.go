package main

import (
	"github.com/myrjola/decisionverse/internal/contexthelpers"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"net/http"
)

const homeLeaderboardSize = 5

type homeTemplateData struct {
	BaseTemplateData

	Nickname      string
	NicknameError string
	Message       string
	// HasGame is set when the browser has a game it can continue.
	HasGame bool
	Top     []models.RankedEntry
}

func (app *application) renderHome(w http.ResponseWriter, r *http.Request, status int, data homeTemplateData) {
	ctx := r.Context()
	top, err := app.leaderboard.Top(ctx, homeLeaderboardSize)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "leaderboard top"))
		return
	}
	data.BaseTemplateData = newBaseTemplateData(r)
	data.HasGame = contexthelpers.GameSessionID(ctx) != ""
	data.Top = models.Rank(top)
	app.render(w, r, status, "home", data)
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	app.renderHome(w, r, http.StatusOK, homeTemplateData{}) //nolint:exhaustruct // filled in renderHome
}

func (app *application) startGame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nickname := r.PostFormValue("nickname")
	session, err := app.game.StartGame(ctx, nickname)
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		app.renderHome(w, r, http.StatusUnprocessableEntity, homeTemplateData{ //nolint:exhaustruct // filled in renderHome
			Nickname:      nickname,
			NicknameError: verrs.For("nickname"),
		})
		return
	case errors.Is(err, models.ErrNoContent):
		app.renderHome(w, r, http.StatusServiceUnavailable, homeTemplateData{ //nolint:exhaustruct // filled in renderHome
			Nickname: nickname,
			Message:  "No hay preguntas disponibles en este momento. Vuelve más tarde.",
		})
		return
	case err != nil:
		app.serverError(w, r, errors.Wrap(err, "start game"))
		return
	}

	app.sessionManager.Put(ctx, gameSessionIDKey, session.ID)
	app.redirect(w, r, "/play")
}
