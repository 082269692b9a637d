package main

import (
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/seed"
	"net/http"
	"strconv"
	"time"
)

type adminTemplateData struct {
	BaseTemplateData

	Flash string
}

func (app *application) newAdminTemplateData(r *http.Request) adminTemplateData {
	return adminTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Flash:            app.sessionManager.PopString(r.Context(), flashKey),
	}
}

type dashboardTemplateData struct {
	adminTemplateData

	Analytics models.Analytics
}

func (app *application) adminDashboard(w http.ResponseWriter, r *http.Request) {
	analytics, err := app.analytics.Compute(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "compute analytics"))
		return
	}
	app.render(w, r, http.StatusOK, "admin-dashboard", dashboardTemplateData{
		adminTemplateData: app.newAdminTemplateData(r),
		Analytics:         analytics,
	})
}

type questionsTemplateData struct {
	adminTemplateData

	Questions []models.Question
}

func (app *application) adminQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := app.questions.List(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list questions"))
		return
	}
	app.render(w, r, http.StatusOK, "admin-questions", questionsTemplateData{
		adminTemplateData: app.newAdminTemplateData(r),
		Questions:         questions,
	})
}

type questionFormTemplateData struct {
	adminTemplateData

	// Action is the URL the form posts to.
	Action       string
	Text         string
	SuccessProb  string
	TimeLimitSec string
	MediaPosURL  string
	MediaNegURL  string
	Errors       models.ValidationErrors
}

func (app *application) renderQuestionForm(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	action string,
	draft models.QuestionDraft,
	verrs models.ValidationErrors,
) {
	data := questionFormTemplateData{
		adminTemplateData: app.newAdminTemplateData(r),
		Action:            action,
		Text:              draft.Text,
		SuccessProb:       strconv.FormatFloat(draft.SuccessProb, 'f', -1, 64),
		TimeLimitSec:      strconv.Itoa(draft.TimeLimitSec),
		MediaPosURL:       draft.MediaPosURL,
		MediaNegURL:       draft.MediaNegURL,
		Errors:            verrs,
	}
	if len(verrs) > 0 {
		// Show what was typed rather than the parsed fallback.
		data.SuccessProb = r.PostFormValue("successProb")
		data.TimeLimitSec = r.PostFormValue("timeLimitSec")
	}
	app.render(w, r, status, "admin-question-form", data)
}

func (app *application) adminNewQuestion(w http.ResponseWriter, r *http.Request) {
	draft := models.QuestionDraft{
		Text:         "",
		SuccessProb:  0.5, //nolint:mnd // even odds
		TimeLimitSec: 15,  //nolint:mnd // default countdown
		MediaPosURL:  "",
		MediaNegURL:  "",
	}
	app.renderQuestionForm(w, r, http.StatusOK, "/admin/questions", draft, nil)
}

// parseQuestionForm returns the submitted draft and the validation errors, if any.
func parseQuestionForm(r *http.Request) (models.QuestionDraft, models.ValidationErrors, error) {
	draft, err := models.ParseQuestionDraft(
		r.PostFormValue("text"),
		r.PostFormValue("successProb"),
		r.PostFormValue("timeLimitSec"),
		r.PostFormValue("mediaPosUrl"),
		r.PostFormValue("mediaNegUrl"),
	)
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		return draft, verrs, nil
	}
	return draft, nil, err
}

func (app *application) adminCreateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draft, verrs, err := parseQuestionForm(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if len(verrs) > 0 {
		app.renderQuestionForm(w, r, http.StatusUnprocessableEntity, "/admin/questions", draft, verrs)
		return
	}
	if _, err = app.questions.Create(ctx, draft, time.Now()); err != nil {
		app.serverError(w, r, errors.Wrap(err, "create question"))
		return
	}
	app.questionCache.Invalidate(ctx)
	app.sessionManager.Put(ctx, flashKey, "Pregunta creada.")
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}

func (app *application) adminEditQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := app.questions.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get question"))
		return
	}
	app.renderQuestionForm(w, r, http.StatusOK, "/admin/questions/"+id, q.Draft(), nil)
}

func (app *application) adminUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	draft, verrs, err := parseQuestionForm(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if len(verrs) > 0 {
		app.renderQuestionForm(w, r, http.StatusUnprocessableEntity, "/admin/questions/"+id, draft, verrs)
		return
	}
	err = app.questions.Update(ctx, id, draft, time.Now())
	if errors.Is(err, models.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "update question"))
		return
	}
	app.questionCache.Invalidate(ctx)
	app.sessionManager.Put(ctx, flashKey, "Pregunta actualizada.")
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}

func (app *application) setQuestionActive(w http.ResponseWriter, r *http.Request, active bool) {
	ctx := r.Context()
	err := app.questions.SetActive(ctx, r.PathValue("id"), active, time.Now())
	if errors.Is(err, models.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "set question active"))
		return
	}
	app.questionCache.Invalidate(ctx)
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}

func (app *application) adminDeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	app.setQuestionActive(w, r, false)
}

func (app *application) adminActivateQuestion(w http.ResponseWriter, r *http.Request) {
	app.setQuestionActive(w, r, true)
}

func (app *application) adminSeedQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := seed.IfEmpty(ctx, app.questions, time.Now())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "seed questions"))
		return
	}
	if n == 0 {
		app.sessionManager.Put(ctx, flashKey, "Ya existen preguntas, no se importó nada.")
	} else {
		app.questionCache.Invalidate(ctx)
		app.sessionManager.Put(ctx, flashKey, strconv.Itoa(n)+" preguntas inicializadas.")
	}
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}

type playersTemplateData struct {
	adminTemplateData

	Players []models.RankedEntry
}

func (app *application) adminPlayers(w http.ResponseWriter, r *http.Request) {
	entries, err := app.scores.ListAll(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list players"))
		return
	}
	app.render(w, r, http.StatusOK, "admin-players", playersTemplateData{
		adminTemplateData: app.newAdminTemplateData(r),
		Players:           models.Rank(entries),
	})
}

func (app *application) adminDeletePlayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := app.scores.Delete(ctx, r.PathValue("nickname"))
	if errors.Is(err, models.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "delete player"))
		return
	}
	app.publishLeaderboard(ctx)
	app.sessionManager.Put(ctx, flashKey, "Jugador eliminado.")
	http.Redirect(w, r, "/admin/players", http.StatusSeeOther)
}

func (app *application) adminClearPlayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := app.scores.Clear(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear leaderboard"))
		return
	}
	app.publishLeaderboard(ctx)
	app.sessionManager.Put(ctx, flashKey, strconv.FormatInt(n, 10)+" jugadores eliminados.")
	http.Redirect(w, r, "/admin/players", http.StatusSeeOther)
}
