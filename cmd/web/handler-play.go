package main

import (
	"github.com/myrjola/decisionverse/internal/contexthelpers"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"log/slog"
	"net/http"
	"time"
)

// evaluatingReloadMs is how soon the play page asks again while another request evaluates the answer.
const evaluatingReloadMs = 500

type playTemplateData struct {
	BaseTemplateData

	Session  *models.GameSession
	Question models.Question
	Index    int
	Total    int
	// RemainingMs is the server side countdown of the current question.
	RemainingMs int64
	// DwellMs is how long the outcome stays before the page moves on by itself.
	DwellMs  int64
	ReloadMs int64
	Result   *models.Result
}

// playSessionID returns the game of this browser or redirects to the start page when there is none.
func (app *application) playSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := contexthelpers.GameSessionID(r.Context())
	if id == "" {
		app.redirect(w, r, "/")
		return "", false
	}
	return id, true
}

// handleGameError redirects for the expected game errors and reports whether err was handled.
func (app *application) handleGameError(w http.ResponseWriter, r *http.Request, err error) bool {
	ctx := r.Context()
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrNotFound):
		app.sessionManager.Remove(ctx, gameSessionIDKey)
		app.redirect(w, r, "/")
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrValidation):
		app.logger.LogAttrs(ctx, slog.LevelDebug, "rejected game action", errors.SlogError(err))
		app.redirect(w, r, "/play")
	default:
		app.serverError(w, r, err)
	}
	return true
}

func (app *application) play(w http.ResponseWriter, r *http.Request) {
	id, ok := app.playSessionID(w, r)
	if !ok {
		return
	}
	session, err := app.game.Session(r.Context(), id)
	if app.handleGameError(w, r, err) {
		return
	}
	if session.Finished() {
		http.Redirect(w, r, "/results/"+session.ID, http.StatusSeeOther)
		return
	}

	now := time.Now()
	question, _ := session.CurrentQuestion()
	data := playTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Session:          session,
		Question:         question,
		Index:            session.CurrentIndex,
		Total:            len(session.Questions),
		RemainingMs:      max(0, session.Deadline().Sub(now).Milliseconds()),
		DwellMs:          0,
		ReloadMs:         0,
		Result:           session.LastResult,
	}
	switch session.Status { //nolint:exhaustive // finished redirects above, pending is never stored
	case models.StatusOutcome:
		data.DwellMs = max(0, session.OutcomeShownAt.Add(app.game.Dwell()).Sub(now).Milliseconds())
	case models.StatusEvaluating:
		data.ReloadMs = evaluatingReloadMs
	}
	w.Header().Set("Cache-Control", "no-store")
	app.render(w, r, http.StatusOK, "play", data)
}

func (app *application) answer(w http.ResponseWriter, r *http.Request) {
	id, ok := app.playSessionID(w, r)
	if !ok {
		return
	}
	decision, err := models.ParseDecision(r.PostFormValue("decision"))
	if app.handleGameError(w, r, err) {
		return
	}
	_, err = app.game.Answer(r.Context(), id, formInt(r, "index"), decision)
	if app.handleGameError(w, r, err) {
		return
	}
	app.redirect(w, r, "/play")
}

func (app *application) next(w http.ResponseWriter, r *http.Request) {
	id, ok := app.playSessionID(w, r)
	if !ok {
		return
	}
	session, err := app.game.Advance(r.Context(), id, formInt(r, "index"))
	if app.handleGameError(w, r, err) {
		return
	}
	if session.Finished() {
		app.redirect(w, r, "/results/"+session.ID)
		return
	}
	app.redirect(w, r, "/play")
}
