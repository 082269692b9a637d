package repositories_test

import (
	"context"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"math"
	"testing"
	"time"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func questionIDs(qs []models.Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func validDraft() models.QuestionDraft {
	return models.QuestionDraft{
		Text:         "¿Fusionar la base de datos con una hoja de cálculo?",
		SuccessProb:  0.1,
		TimeLimitSec: 15,
		MediaPosURL:  "https://picsum.photos/seed/success5/600/400",
		MediaNegURL:  "https://picsum.photos/seed/fail5/600/400",
	}
}

func TestQuestionRepository_ListActive(t *testing.T) {
	t.Parallel()
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	qs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"q-intro", "q-tie-first", "q-tie-second"}, questionIDs(qs))
	require.Equal(t, 0.6, qs[0].SuccessProb)
	require.Equal(t, 15, qs[0].TimeLimitSec)
	require.Equal(t, time.UnixMilli(1714564800000).UTC(), qs[0].UpdatedAt)
}

func TestQuestionRepository_List(t *testing.T) {
	t.Parallel()
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	qs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"q-inactive", "q-intro", "q-tie-first", "q-tie-second"}, questionIDs(qs))
	require.False(t, qs[0].Active)
}

func TestQuestionRepository_Get(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "existing", id: "q-intro", wantErr: nil},
		{name: "inactive is still readable", id: "q-inactive", wantErr: nil},
		{name: "missing", id: "nonexistent", wantErr: models.ErrNotFound},
	}
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := repo.Get(context.Background(), tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.id, q.ID)
		})
	}
}

func TestQuestionRepository_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	q, err := repo.Create(ctx, validDraft(), now)
	require.NoError(t, err)
	require.NotEmpty(t, q.ID)
	require.True(t, q.Active)
	require.Equal(t, 3, q.Order, "new questions go after the highest order")
	require.Equal(t, now, q.UpdatedAt)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, q.ID, active[len(active)-1].ID)

	invalid := validDraft()
	invalid.SuccessProb = 2
	_, err = repo.Create(ctx, invalid, now)
	require.ErrorIs(t, err, models.ErrValidation)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestQuestionRepository_UpdateAndSetActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	later := now.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, "q-intro", validDraft(), later))
	q, err := repo.Get(ctx, "q-intro")
	require.NoError(t, err)
	require.Equal(t, validDraft(), q.Draft())
	require.Equal(t, later, q.UpdatedAt)
	require.Equal(t, 1, q.Order, "editing keeps the position")

	require.ErrorIs(t, repo.Update(ctx, "nonexistent", validDraft(), later), models.ErrNotFound)

	require.NoError(t, repo.SetActive(ctx, "q-intro", false, later))
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"q-tie-first", "q-tie-second"}, questionIDs(active))

	require.NoError(t, repo.SetActive(ctx, "q-inactive", true, later))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Contains(t, questionIDs(active), "q-inactive")

	require.ErrorIs(t, repo.SetActive(ctx, "nonexistent", true, later), models.ErrNotFound)
}

func TestQuestionRepository_Import(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewQuestionRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	d := validDraft()
	imported := []models.Question{
		{ID: "", Text: d.Text, SuccessProb: 0.9, TimeLimitSec: 5, MediaPosURL: d.MediaPosURL,
			MediaNegURL: d.MediaNegURL, Active: true, Order: 10, UpdatedAt: time.Time{}},
		{ID: "q-imported", Text: d.Text, SuccessProb: 0, TimeLimitSec: 30, MediaPosURL: d.MediaPosURL,
			MediaNegURL: d.MediaNegURL, Active: false, Order: 11, UpdatedAt: time.Time{}},
	}
	require.NoError(t, repo.Import(ctx, imported, now))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, count)

	q, err := repo.Get(ctx, "q-imported")
	require.NoError(t, err)
	require.False(t, q.Active)
	require.Equal(t, 11, q.Order)

	// One invalid question rolls back the whole batch.
	broken := append([]models.Question{}, imported[0])
	broken = append(broken, models.Question{}) //nolint:exhaustruct // intentionally invalid
	require.ErrorIs(t, repo.Import(ctx, broken, now), models.ErrValidation)
	nan := imported[0]
	nan.SuccessProb = math.NaN()
	require.ErrorIs(t, repo.Import(ctx, []models.Question{nan}, now), models.ErrValidation)
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, count)
}
