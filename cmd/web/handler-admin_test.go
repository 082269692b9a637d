package main

import (
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/decisionverse/internal/e2etest"
	"github.com/myrjola/decisionverse/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"testing"
)

func questionValues(text string) neturl.Values {
	return neturl.Values{
		"text":         {text},
		"successProb":  {"0.7"},
		"timeLimitSec": {"10"},
		"mediaPosUrl":  {"https://example.com/yes.png"},
		"mediaNegUrl":  {"https://example.com/no.png"},
	}
}

// registeredAdmin returns a client logged in as a freshly registered admin.
func registeredAdmin(t *testing.T, server *e2etest.Server) *e2etest.Client {
	t.Helper()
	client, err := server.NewClient()
	require.NoError(t, err)
	_, err = client.Register(context.Background(), testInviteCode)
	require.NoError(t, err)
	return client
}

func Test_application_adminRequiresLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)

	for _, path := range []string{"/admin", "/admin/questions", "/admin/questions/new", "/admin/players"} {
		page, err := server.Client().GetPage(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "/admin/login", page.URL.Path, path)
		assert.Equal(t, 1, page.Doc.Find("form[action='/api/login/start']").Length())
	}

	page, err := server.Client().PostForm(ctx, "/admin/players/clear", neturl.Values{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, page.StatusCode, "CSRF check runs before the login check")
}

func Test_application_adminAuth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()

	doc, err := client.Register(ctx, testInviteCode)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("form[action='/api/logout']").Length())
	assert.Equal(t, 1, doc.Find("nav a[href='/admin/questions']").Length())

	doc, err = client.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Find("nav a[href='/admin/questions']").Length())
	page, err := client.GetPage(ctx, "/admin")
	require.NoError(t, err)
	assert.Equal(t, "/admin/login", page.URL.Path)

	doc, err = client.Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("form[action='/api/logout']").Length())

	// Logged in admins skip the login page.
	page, err = client.GetPage(ctx, "/admin/login")
	require.NoError(t, err)
	assert.Equal(t, "/admin", page.URL.Path)
}

func Test_application_adminInvite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong code", func(t *testing.T) {
		t.Parallel()
		server := startTestServer(t, nil)
		page, err := server.Client().SubmitForm(ctx, "/admin/register", "/admin/register",
			neturl.Values{"invite_code": {"wrong"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, page.StatusCode)
		assert.Contains(t, page.Doc.Find("#invite-error").Text(), "no es válido")
		assert.Equal(t, 0, page.Doc.Find("form[action='/api/registration/start']").Length())

		_, err = server.Client().Register(ctx, "also wrong")
		require.Error(t, err)
	})

	t.Run("registration closed", func(t *testing.T) {
		t.Parallel()
		server := startTestServer(t, map[string]string{"DECISIONVERSE_ADMIN_INVITE_CODE": ""})
		page, err := server.Client().GetPage(ctx, "/admin/register")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, page.StatusCode)
		assert.Equal(t, 0, page.Doc.Find("form[action='/admin/register']").Length())

		login, err := server.Client().GetDoc(ctx, "/admin/login")
		require.NoError(t, err)
		assert.Equal(t, 0, login.Find("a[href='/admin/register']").Length())
	})
}

func findQuestionRow(doc *goquery.Document, text string) *goquery.Selection {
	return doc.Find("table.questions tbody tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), text)
	})
}

func Test_application_adminQuestions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	admin := registeredAdmin(t, server)

	doc, err := admin.GetDoc(ctx, "/admin/questions")
	require.NoError(t, err)
	assert.Equal(t, len(seed.Default()), doc.Find("table.questions tbody tr").Length())
	assert.Equal(t, 0, doc.Find("form[action='/admin/questions/seed']").Length(), "seeding only offered when empty")

	// Invalid drafts are shown again with the errors next to the fields.
	invalid := questionValues("short")
	invalid.Set("successProb", "1.5")
	invalid.Set("mediaNegUrl", "not a url")
	page, err := admin.SubmitForm(ctx, "/admin/questions/new", "/admin/questions", invalid)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, page.StatusCode)
	for _, field := range []string{"text", "successProb", "mediaNegUrl"} {
		assert.Equal(t, 1, page.Doc.Find("[data-error="+field+"]").Length(), field)
	}
	assert.Equal(t, 0, page.Doc.Find("[data-error=timeLimitSec]").Length())
	value, _ := page.Doc.Find("input[name=successProb]").Attr("value")
	assert.Equal(t, "1.5", value)

	const text = "¿Aceptas liderar el proyecto más arriesgado del trimestre?"
	page, err = admin.SubmitForm(ctx, "/admin/questions/new", "/admin/questions", questionValues(text))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "/admin/questions", page.URL.Path)
	assert.Contains(t, page.Doc.Find(".flash").Text(), "Pregunta creada.")
	row := findQuestionRow(page.Doc, text)
	require.Equal(t, 1, row.Length())
	assert.Contains(t, row.Text(), "70 %")
	id, ok := row.Attr("data-question-id")
	require.True(t, ok)

	// Edit.
	edit, err := admin.GetDoc(ctx, "/admin/questions/"+id+"/edit")
	require.NoError(t, err)
	assert.Equal(t, text, edit.Find("textarea[name=text]").Text())
	const edited = "¿Aceptas liderar el proyecto del próximo trimestre?"
	values := questionValues(edited)
	values.Set("timeLimitSec", "20")
	page, err = admin.SubmitDocForm(ctx, edit, "/admin/questions/"+id, values)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	row = findQuestionRow(page.Doc, edited)
	require.Equal(t, 1, row.Length())
	assert.Contains(t, row.Text(), "20 s")

	invalid = questionValues(edited)
	invalid.Set("timeLimitSec", "2")
	page, err = admin.SubmitForm(ctx, "/admin/questions/"+id+"/edit", "/admin/questions/"+id, invalid)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, page.StatusCode)
	assert.Equal(t, 1, page.Doc.Find("[data-error=timeLimitSec]").Length())

	invalid = questionValues(edited)
	invalid.Set("successProb", "NaN")
	page, err = admin.SubmitForm(ctx, "/admin/questions/"+id+"/edit", "/admin/questions/"+id, invalid)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, page.StatusCode)
	assert.Equal(t, 1, page.Doc.Find("[data-error=successProb]").Length())

	// Deactivate and activate.
	page, err = admin.SubmitForm(ctx, "/admin/questions", "/admin/questions/"+id+"/deactivate", nil)
	require.NoError(t, err)
	row = findQuestionRow(page.Doc, edited)
	assert.True(t, row.HasClass("inactive"))
	assert.Equal(t, 1, row.Find("form[action='/admin/questions/"+id+"/activate']").Length())

	page, err = admin.SubmitForm(ctx, "/admin/questions", "/admin/questions/"+id+"/activate", nil)
	require.NoError(t, err)
	assert.False(t, findQuestionRow(page.Doc, edited).HasClass("inactive"))

	// Unknown questions.
	page, err = admin.GetPage(ctx, "/admin/questions/unknown/edit")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func Test_application_adminQuestionsAffectNewGames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, map[string]string{"DECISIONVERSE_SEED_QUESTIONS": "false"})
	admin := registeredAdmin(t, server)

	page, err := admin.SubmitForm(ctx, "/admin/questions", "/admin/questions/seed", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	total := len(seed.Default())
	assert.Contains(t, page.Doc.Find(".flash").Text(), strconv.Itoa(total)+" preguntas inicializadas.")

	// Deactivate all but one question.
	ids := make([]string, 0, total)
	page.Doc.Find("table.questions tbody tr").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-question-id")
		ids = append(ids, id)
	})
	require.Len(t, ids, total)
	for _, id := range ids[1:] {
		_, err = admin.SubmitForm(ctx, "/admin/questions", "/admin/questions/"+id+"/deactivate", nil)
		require.NoError(t, err)
	}

	player, err := server.NewClient()
	require.NoError(t, err)
	page, err = player.PlayGame(ctx, "Ana", alwaysYes)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Doc.Find("table.answers tbody tr").Length())
}

func Test_application_adminPlayers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	admin := registeredAdmin(t, server)

	for _, nickname := range []string{"Ana", "Bea", "Carla"} {
		player, err := server.NewClient()
		require.NoError(t, err)
		_, err = player.PlayGame(ctx, nickname, alwaysYes)
		require.NoError(t, err)
	}

	doc, err := admin.GetDoc(ctx, "/admin/players")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Find("table.players tr[data-nickname]").Length())

	dashboard, err := admin.GetDoc(ctx, "/admin")
	require.NoError(t, err)
	assert.Equal(t, "3", dashboard.Find("[data-stat=players]").Text())
	assert.Equal(t, "3", dashboard.Find("[data-stat=finished]").Text())

	page, err := admin.SubmitDocForm(ctx, doc, "/admin/players/Bea/delete", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Doc.Find(".flash").Text(), "Jugador eliminado.")
	assert.Equal(t, 0, page.Doc.Find("tr[data-nickname=Bea]").Length())
	assert.Equal(t, 2, page.Doc.Find("table.players tr[data-nickname]").Length())

	board, err := admin.GetDoc(ctx, "/leaderboard")
	require.NoError(t, err)
	assert.NotContains(t, board.Find("table.leaderboard").Text(), "Bea")

	page, err = admin.SubmitDocForm(ctx, page.Doc, "/admin/players/clear", nil)
	require.NoError(t, err)
	assert.Contains(t, page.Doc.Find(".flash").Text(), "2 jugadores eliminados.")
	assert.Equal(t, 1, page.Doc.Find("table.players tr.empty").Length())

	page, err = admin.PostForm(ctx, "/admin/players/Nobody/delete", neturl.Values{
		"csrf_token": {csrfFrom(t, doc)},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func csrfFrom(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	token, ok := doc.Find("input[name=csrf_token]").First().Attr("value")
	require.True(t, ok)
	return token
}
