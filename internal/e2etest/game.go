package e2etest

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"
)

// maxGameSteps bounds PlayGame in case the server never reaches the results page.
const maxGameSteps = 200

const evaluatingPollInterval = 50 * time.Millisecond

// StartGame submits the nickname form of the start page and returns the page it lands on.
func (c *Client) StartGame(ctx context.Context, nickname string) (*Page, error) {
	page, err := c.SubmitForm(ctx, "/", "/games", neturl.Values{"nickname": {nickname}})
	if err != nil {
		return nil, errors.Wrap(err, "submit nickname")
	}
	return page, nil
}

// PlayGame starts a game as nickname and answers every question with decide until the results page is shown.
//
// decide receives the zero-based question index and returns "YES" or "NO".
func (c *Client) PlayGame(ctx context.Context, nickname string, decide func(index int) string) (*Page, error) {
	page, err := c.StartGame(ctx, nickname)
	if err != nil {
		return nil, err
	}
	for range maxGameSteps {
		if page.StatusCode != http.StatusOK {
			return nil, errors.New("unexpected status code",
				slog.Int("status", page.StatusCode), slog.String("path", page.URL.Path))
		}
		if strings.HasPrefix(page.URL.Path, "/results/") {
			return page, nil
		}

		answerForm := page.Doc.Find("form[action='/play/answer']")
		switch {
		case answerForm.Length() == 1:
			index := 0
			if idx, ok := answerForm.Find("input[name=index]").Attr("value"); ok {
				index, _ = strconv.Atoi(idx)
			}
			page, err = c.SubmitDocForm(ctx, page.Doc, "/play/answer", neturl.Values{"decision": {decide(index)}})
		case page.Doc.Find("form[action='/play/next']").Length() == 1:
			// The server refuses to advance before the outcome has been shown long enough.
			if dwell, ok := page.Doc.Find("form[action='/play/next']").Attr("data-dwell-ms"); ok {
				if ms, convErr := strconv.Atoi(dwell); convErr == nil && ms > 0 {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
			page, err = c.SubmitDocForm(ctx, page.Doc, "/play/next", nil)
		case page.Doc.Find("[data-reload-ms]").Length() == 1:
			// Another request is still evaluating the answer.
			time.Sleep(evaluatingPollInterval)
			page, err = c.GetPage(ctx, "/play")
		default:
			return nil, errors.New("page has neither answer nor next form", slog.String("path", page.URL.Path))
		}
		if err != nil {
			return nil, errors.Wrap(err, "play step")
		}
	}
	return nil, errors.New("game did not finish", slog.Int("steps", maxGameSteps))
}
