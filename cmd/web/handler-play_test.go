package main

import (
	"context"
	"github.com/myrjola/decisionverse/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"testing"
)

func Test_application_fullGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()
	total := len(seed.Default())

	var seen []int
	page, err := client.PlayGame(ctx, "Ana", func(index int) string {
		seen = append(seen, index)
		if index%2 == 0 {
			return "YES"
		}
		return "NO"
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.True(t, strings.HasPrefix(page.URL.Path, "/results/"), "ended on %s", page.URL.Path)

	want := make([]int, total)
	for i := range total {
		want[i] = i
	}
	assert.Equal(t, want, seen, "every question is asked once in order")

	doc := page.Doc
	assert.Contains(t, doc.Find("h1").Text(), "Ana")
	assert.Contains(t, doc.Find("[data-score]").Text(), "de "+strconv.Itoa(total))
	assert.Equal(t, "#1", strings.TrimSpace(doc.Find("[data-rank]").Text()))

	rows := doc.Find("table.answers tbody tr")
	require.Equal(t, total, rows.Length())
	assert.Equal(t, "SÍ", strings.TrimSpace(rows.Eq(0).Find("td").Eq(2).Text()))
	assert.Equal(t, "NO", strings.TrimSpace(rows.Eq(1).Find("td").Eq(2).Text()))

	highlighted := doc.Find("table.leaderboard tr.highlight")
	require.Equal(t, 1, highlighted.Length())
	assert.Contains(t, highlighted.Text(), "Ana")

	// The finished game is shown from /play too.
	page, err = client.GetPage(ctx, "/play")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page.URL.Path, "/results/"))

	// The start page offers to continue and lists the new score.
	home, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	assert.Contains(t, home.Find("ol.top").Text(), "Ana")
}

func Test_application_playWithoutGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)

	page, err := server.Client().GetPage(ctx, "/play")
	require.NoError(t, err)
	assert.Equal(t, "/", page.URL.Path)
}

func Test_application_staleAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()

	page, err := client.StartGame(ctx, "Ana")
	require.NoError(t, err)
	require.Equal(t, "/play", page.URL.Path)

	// Answering a question that is not the current one changes nothing.
	page, err = client.SubmitDocForm(ctx, page.Doc, "/play/answer", neturl.Values{
		"decision": {"YES"},
		"index":    {"3"},
	})
	require.NoError(t, err)
	require.Equal(t, "/play", page.URL.Path)
	assert.Contains(t, page.Doc.Find(".progress").Text(), "Pregunta 1 de")
	assert.Equal(t, 1, page.Doc.Find("form[action='/play/answer']").Length())

	// An invalid decision is rejected the same way.
	page, err = client.SubmitDocForm(ctx, page.Doc, "/play/answer", neturl.Values{"decision": {"MAYBE"}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Doc.Find("form[action='/play/answer']").Length())

	page, err = client.SubmitDocForm(ctx, page.Doc, "/play/answer", neturl.Values{"decision": {"NO"}})
	require.NoError(t, err)
	require.Equal(t, "/play", page.URL.Path)
	assert.Equal(t, 1, page.Doc.Find("form[action='/play/next']").Length())
	assert.NotEmpty(t, strings.TrimSpace(page.Doc.Find(".feedback").Text()))
}

func Test_application_resultsOfUnfinishedGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()

	_, err := client.StartGame(ctx, "Ana")
	require.NoError(t, err)

	page, err := client.GetPage(ctx, "/results/unknown")
	require.NoError(t, err)
	assert.Equal(t, "/", page.URL.Path)
}

func Test_application_htmxRedirect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()

	page, err := client.StartGame(ctx, "Ana")
	require.NoError(t, err)
	csrfToken, ok := page.Doc.Find("form[action='/play/answer'] input[name=csrf_token]").Attr("value")
	require.True(t, ok)

	formData := neturl.Values{"csrf_token": {csrfToken}, "decision": {"YES"}, "index": {"0"}}
	resp, err := client.PostHx(ctx, "/play/answer", formData)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "/play", resp.Header.Get("HX-Redirect"))
}
