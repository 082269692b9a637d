package main

import (
	"context"
	"github.com/gorilla/websocket"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"log/slog"
	"net/http"
	"time"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	// Clients only send control frames.
	wsMaxMessageSize = 512
)

type leaderboardTemplateData struct {
	BaseTemplateData

	Leaderboard []models.RankedEntry
	Highlight   string
}

func (app *application) leaderboardPage(w http.ResponseWriter, r *http.Request) {
	top, err := app.leaderboard.Top(r.Context(), models.LeaderboardLimit)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "leaderboard top"))
		return
	}
	app.render(w, r, http.StatusOK, "leaderboard", leaderboardTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Leaderboard:      models.Rank(top),
		Highlight:        "",
	})
}

// scoreSubmitted refreshes the cached leaderboard and pushes it to the live subscribers.
func (app *application) scoreSubmitted(ctx context.Context, result models.MergeResult) {
	app.logger.LogAttrs(ctx, slog.LevelDebug, "score submitted", slog.String("result", string(result)))
	app.publishLeaderboard(ctx)
}

func (app *application) publishLeaderboard(ctx context.Context) {
	app.leaderboard.Invalidate(ctx)
	top, err := app.leaderboard.Top(ctx, models.LeaderboardLimit)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "publish leaderboard", errors.SlogError(err))
		return
	}
	app.leaderboardHub.Publish(top)
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type leaderboardRow struct {
	Rank        int    `json:"rank"`
	Nickname    string `json:"nickname"`
	Score       int    `json:"score"`
	TotalTimeMs int64  `json:"totalTimeMs"`
}

func leaderboardMessage(entries []models.ScoreEntry) outboundMessage[[]leaderboardRow] {
	rows := make([]leaderboardRow, 0, len(entries))
	for _, e := range models.Rank(entries) {
		rows = append(rows, leaderboardRow{
			Rank:        e.Rank,
			Nickname:    e.Nickname,
			Score:       e.Score,
			TotalTimeMs: e.TotalTimeMs,
		})
	}
	return outboundMessage[[]leaderboardRow]{Type: "leaderboard", Payload: rows}
}

// leaderboardLive streams the top of the leaderboard over a websocket, first on connect and then after every
// successful score submission.
func (app *application) leaderboardLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := app.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		app.logger.LogAttrs(ctx, slog.LevelDebug, "websocket upgrade failed", errors.SlogError(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// Subscribe before reading the snapshot so that no submission falls in between.
	updates, unsubscribe := app.leaderboardHub.Subscribe()
	defer unsubscribe()

	top, err := app.leaderboard.Top(ctx, models.LeaderboardLimit)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "websocket leaderboard snapshot", errors.SlogError(err))
		return
	}
	if err = writeJSON(conn, leaderboardMessage(top)); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, readErr := conn.NextReader(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case entries, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err = writeJSON(conn, leaderboardMessage(entries)); err != nil {
				app.logger.LogAttrs(ctx, slog.LevelDebug, "websocket write failed", errors.SlogError(err))
				return
			}
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := conn.WriteJSON(v); err != nil {
		return errors.Wrap(err, "write json")
	}
	return nil
}
