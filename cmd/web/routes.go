package main

import (
	"github.com/justinas/alice"
	"github.com/myrjola/decisionverse/ui"
	"io/fs"
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(ui.Files, "static")
	if err != nil {
		// The embedded directory is fixed at compile time.
		panic(err)
	}
	mux.Handle("GET /static/", cacheHeaders(http.StripPrefix("/static", http.FileServerFS(static))))

	// The websocket hijacks the connection, so it stays outside the timeout handler and the session middleware.
	mux.HandleFunc("GET /leaderboard/live", app.leaderboardLive)
	mux.HandleFunc("GET /api/healthy", app.healthy)

	session := alice.New(app.timeout, app.sessionManager.LoadAndSave, app.noSurf, commonContext,
		app.webAuthnHandler.AuthenticateMiddleware)
	player := session.Append(app.gameSession)
	admin := session.Append(app.mustAdmin)

	mux.Handle("GET /{$}", player.ThenFunc(app.home))
	mux.Handle("POST /games", player.ThenFunc(app.startGame))
	mux.Handle("GET /play", player.ThenFunc(app.play))
	mux.Handle("POST /play/answer", player.ThenFunc(app.answer))
	mux.Handle("POST /play/next", player.ThenFunc(app.next))
	mux.Handle("GET /results/{sessionID}", player.ThenFunc(app.results))
	mux.Handle("GET /leaderboard", session.ThenFunc(app.leaderboardPage))

	mux.Handle("GET /admin/login", session.ThenFunc(app.adminLogin))
	mux.Handle("GET /admin/register", session.ThenFunc(app.adminRegister))
	mux.Handle("POST /admin/register", session.ThenFunc(app.adminVerifyInvite))
	mux.Handle("POST /api/registration/start", session.ThenFunc(app.beginRegistration))
	mux.Handle("POST /api/registration/finish", session.ThenFunc(app.finishRegistration))
	mux.Handle("POST /api/login/start", session.ThenFunc(app.beginLogin))
	mux.Handle("POST /api/login/finish", session.ThenFunc(app.finishLogin))
	mux.Handle("POST /api/logout", session.ThenFunc(app.logout))

	mux.Handle("GET /admin", admin.ThenFunc(app.adminDashboard))
	mux.Handle("GET /admin/questions", admin.ThenFunc(app.adminQuestions))
	mux.Handle("GET /admin/questions/new", admin.ThenFunc(app.adminNewQuestion))
	mux.Handle("POST /admin/questions", admin.ThenFunc(app.adminCreateQuestion))
	mux.Handle("POST /admin/questions/seed", admin.ThenFunc(app.adminSeedQuestions))
	mux.Handle("GET /admin/questions/{id}/edit", admin.ThenFunc(app.adminEditQuestion))
	mux.Handle("POST /admin/questions/{id}", admin.ThenFunc(app.adminUpdateQuestion))
	mux.Handle("POST /admin/questions/{id}/deactivate", admin.ThenFunc(app.adminDeactivateQuestion))
	mux.Handle("POST /admin/questions/{id}/activate", admin.ThenFunc(app.adminActivateQuestion))
	mux.Handle("GET /admin/players", admin.ThenFunc(app.adminPlayers))
	mux.Handle("POST /admin/players/clear", admin.ThenFunc(app.adminClearPlayers))
	mux.Handle("POST /admin/players/{nickname}/delete", admin.ThenFunc(app.adminDeletePlayer))

	mux.Handle("/", session.ThenFunc(app.notFound))

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
