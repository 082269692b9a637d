package main

import (
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/game"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/rediscache"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// finishedStore holds one finished session whose leaderboard submission fails while failSubmit is set.
type finishedStore struct {
	session    models.GameSession
	failSubmit bool
}

func (f *finishedStore) Create(context.Context, *models.GameSession) error {
	return errors.New("read only")
}

func (f *finishedStore) Get(_ context.Context, id string) (*models.GameSession, error) {
	if id != f.session.ID {
		return nil, errors.Wrap(models.ErrNotFound, "get session")
	}
	s := f.session
	return &s, nil
}

func (f *finishedStore) Transition(context.Context, *models.GameSession, models.Status, int) error {
	return errors.New("read only")
}

func (f *finishedStore) SubmitToLeaderboard(context.Context, string, time.Time) (models.MergeResult, error) {
	if f.failSubmit {
		return "", errors.New("database is locked")
	}
	f.session.LeaderboardSubmitted = true
	return models.MergeCreated, nil
}

type noQuestions struct{}

func (noQuestions) ListActive(context.Context) ([]models.Question, error) {
	return nil, nil
}

type leaderboardFunc func(ctx context.Context, limit int) ([]models.ScoreEntry, error)

func (f leaderboardFunc) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	return f(ctx, limit)
}

func Test_application_resultsDegraded(t *testing.T) {
	t.Parallel()
	ended := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := models.GameSession{ //nolint:exhaustruct // only what the results page reads
		ID:          "s1",
		Nickname:    "Ana",
		Status:      models.StatusFinished,
		StartedAt:   ended.Add(-time.Minute),
		EndedAt:     ended,
		Score:       1,
		TotalTimeMs: 4200,
		Answers: []models.GameAnswer{
			{QuestionID: "q1", Decision: models.DecisionYes, Outcome: models.OutcomeSuccess, TimeMs: 4200,
				AnsweredAt: ended},
		},
	}
	withAna := leaderboardFunc(func(context.Context, int) ([]models.ScoreEntry, error) {
		return []models.ScoreEntry{{Nickname: "Ana", Score: 1, TotalTimeMs: 4200, CreatedAt: ended, SessionID: "s1"}}, nil
	})
	broken := leaderboardFunc(func(context.Context, int) ([]models.ScoreEntry, error) {
		return nil, errors.New("database is locked")
	})

	tests := []struct {
		name            string
		failSubmit      bool
		leaderboard     rediscache.LeaderboardSource
		wantUnsaved     bool
		wantRank        string
		wantLeaderboard bool
	}{
		{name: "saved", failSubmit: false, leaderboard: withAna, wantUnsaved: false, wantRank: "#1",
			wantLeaderboard: true},
		{name: "submission failed", failSubmit: true, leaderboard: withAna, wantUnsaved: true, wantRank: "#1",
			wantLeaderboard: true},
		{name: "leaderboard unreadable", failSubmit: false, leaderboard: broken, wantUnsaved: false,
			wantRank: "No disponible", wantLeaderboard: false},
		{name: "both failing", failSubmit: true, leaderboard: broken, wantUnsaved: true, wantRank: "No disponible",
			wantLeaderboard: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger := testhelpers.NewLogger(io.Discard)
			store := &finishedStore{session: finished, failSubmit: tt.failSubmit}
			app := &application{ //nolint:exhaustruct // the results handler needs nothing else
				logger:      logger,
				game:        game.NewService(noQuestions{}, store, logger),
				leaderboard: rediscache.NewLeaderboard(nil, tt.leaderboard, time.Minute, logger),
			}

			r := httptest.NewRequest(http.MethodGet, "/results/s1", nil)
			r.SetPathValue("sessionID", "s1")
			w := httptest.NewRecorder()
			app.results(w, r)

			require.Equal(t, http.StatusOK, w.Code, "the score stays visible")
			doc, err := goquery.NewDocumentFromReader(w.Body)
			require.NoError(t, err)
			assert.Equal(t, "1 de 0", doc.Find("[data-score]").Text())
			assert.Equal(t, 1, doc.Find("table.answers tbody tr").Length())
			assert.Equal(t, tt.wantRank, doc.Find("[data-rank]").Text())
			if tt.wantUnsaved {
				assert.Equal(t, 1, doc.Find("[data-warning=unsaved]").Length())
			} else {
				assert.Equal(t, 0, doc.Find("[data-warning=unsaved]").Length())
			}
			if tt.wantLeaderboard {
				assert.Equal(t, 1, doc.Find("table.leaderboard tr.highlight").Length())
				assert.Equal(t, 0, doc.Find("[data-warning=leaderboard]").Length())
			} else {
				assert.Equal(t, 0, doc.Find("table.leaderboard").Length())
				assert.Equal(t, 1, doc.Find("[data-warning=leaderboard]").Length())
			}
		})
	}
}
