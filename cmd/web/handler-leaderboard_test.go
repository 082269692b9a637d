package main

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func Test_application_leaderboardPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startTestServer(t, nil)
	client := server.Client()

	doc, err := client.GetDoc(ctx, "/leaderboard")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("table.leaderboard tr.empty").Length())

	for _, nickname := range []string{"Ana", "Bea"} {
		player, clientErr := server.NewClient()
		require.NoError(t, clientErr)
		_, err = player.PlayGame(ctx, nickname, alwaysYes)
		require.NoError(t, err)
	}

	doc, err = client.GetDoc(ctx, "/leaderboard")
	require.NoError(t, err)
	rows := doc.Find("table.leaderboard tbody tr")
	require.Equal(t, 2, rows.Length())
	text := rows.Text()
	assert.Contains(t, text, "Ana")
	assert.Contains(t, text, "Bea")
	assert.Equal(t, "1", strings.TrimSpace(rows.Eq(0).Find("td").First().Text()))
}

type liveMessage struct {
	Type    string `json:"type"`
	Payload []struct {
		Rank        int    `json:"rank"`
		Nickname    string `json:"nickname"`
		Score       int    `json:"score"`
		TotalTimeMs int64  `json:"totalTimeMs"`
	} `json:"payload"`
}

func dialLive(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/leaderboard/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readLive(t *testing.T, conn *websocket.Conn) liveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "leaderboard", msg.Type)
	return msg
}

func Test_application_leaderboardLive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		// redis enables the leaderboard cache.
		redis bool
	}{
		{name: "without cache", redis: false},
		{name: "with redis cache", redis: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			env := map[string]string{}
			if tt.redis {
				env["DECISIONVERSE_REDIS_ADDR"] = miniredis.RunT(t).Addr()
			}
			server := startTestServer(t, env)
			conn := dialLive(t, server.URL())

			snapshot := readLive(t, conn)
			assert.Empty(t, snapshot.Payload)

			_, err := server.Client().PlayGame(ctx, "Ana", alwaysYes)
			require.NoError(t, err)

			update := readLive(t, conn)
			require.Len(t, update.Payload, 1)
			assert.Equal(t, 1, update.Payload[0].Rank)
			assert.Equal(t, "Ana", update.Payload[0].Nickname)

			// A new subscriber gets the current state right away, also when it comes from the cache.
			late := readLive(t, dialLive(t, server.URL()))
			require.Len(t, late.Payload, 1)
			assert.Equal(t, update.Payload[0], late.Payload[0])

			// The cached leaderboard was invalidated on submission, so the page shows the new score.
			doc, err := server.Client().GetDoc(ctx, "/leaderboard")
			require.NoError(t, err)
			assert.Contains(t, doc.Find("table.leaderboard tbody").Text(), "Ana")
		})
	}
}
