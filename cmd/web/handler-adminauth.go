package main

import (
	"github.com/myrjola/decisionverse/internal/contexthelpers"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/webauthnhandler"
	"log/slog"
	"net/http"
)

type adminAuthTemplateData struct {
	BaseTemplateData

	RegistrationOpen bool
	InviteVerified   bool
	InviteError      string
}

func (app *application) adminAuthData(r *http.Request) adminAuthTemplateData {
	ctx := r.Context()
	return adminAuthTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		RegistrationOpen: app.webAuthnHandler.RegistrationOpen(),
		InviteVerified:   app.webAuthnHandler.InviteVerified(ctx),
		InviteError:      "",
	}
}

func (app *application) adminLogin(w http.ResponseWriter, r *http.Request) {
	if contexthelpers.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	app.render(w, r, http.StatusOK, "admin-login", app.adminAuthData(r))
}

func (app *application) adminRegister(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !app.webAuthnHandler.RegistrationOpen() {
		status = http.StatusForbidden
	}
	app.render(w, r, status, "admin-register", app.adminAuthData(r))
}

func (app *application) adminVerifyInvite(w http.ResponseWriter, r *http.Request) {
	err := app.webAuthnHandler.VerifyInvite(r.Context(), r.PostFormValue("invite_code"))
	switch {
	case errors.Is(err, webauthnhandler.ErrRegistrationClosed):
		app.render(w, r, http.StatusForbidden, "admin-register", app.adminAuthData(r))
		return
	case errors.Is(err, webauthnhandler.ErrInvalidInvite):
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "invalid admin invite code")
		data := app.adminAuthData(r)
		data.InviteError = "El código de invitación no es válido."
		app.render(w, r, http.StatusUnprocessableEntity, "admin-register", data)
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/register", http.StatusSeeOther)
}

func writeJSONResponse(w http.ResponseWriter, out []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (app *application) beginRegistration(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginRegistration(r.Context())
	switch {
	case errors.Is(err, webauthnhandler.ErrRegistrationClosed), errors.Is(err, webauthnhandler.ErrInviteRequired):
		app.clientError(w, r, http.StatusForbidden)
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}
	writeJSONResponse(w, out)
}

func (app *application) finishRegistration(w http.ResponseWriter, r *http.Request) {
	err := app.webAuthnHandler.FinishRegistration(r)
	switch {
	case errors.Is(err, webauthnhandler.ErrInviteRequired):
		app.clientError(w, r, http.StatusForbidden)
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}
	writeJSONResponse(w, []byte(`{"redirect":"/admin"}`))
}

func (app *application) beginLogin(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginLogin(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	writeJSONResponse(w, out)
}

func (app *application) finishLogin(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishLogin(r); err != nil {
		app.serverError(w, r, err)
		return
	}
	writeJSONResponse(w, []byte(`{"redirect":"/admin"}`))
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.Logout(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
