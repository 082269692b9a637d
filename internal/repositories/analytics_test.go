package repositories_test

import (
	"context"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestAnalyticsRepository_Compute(t *testing.T) {
	t.Parallel()
	repo := repositories.NewAnalyticsRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	got, err := repo.Compute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, got.TotalPlayers)
	require.Equal(t, 1, got.GamesStarted)
	require.Equal(t, 1, got.GamesFinished)
	require.InDelta(t, 1.0, got.AverageScore, 1e-9)
	require.Equal(t, 2, got.TotalAnswers)
	require.InDelta(t, 50.0, got.SuccessRate, 1e-9)

	require.Equal(t, []models.QuestionStats{
		{QuestionID: "q-inactive", Text: "¿Cambiar nuestro logo a un meme popular?", Active: false,
			Yes: 0, No: 0, Successes: 0},
		{QuestionID: "q-intro", Text: "¿Invertir en propiedades en el metaverso?", Active: true,
			Yes: 1, No: 0, Successes: 1},
		{QuestionID: "q-tie-first", Text: "¿Lanzar una línea de zapatillas para avatares?", Active: true,
			Yes: 0, No: 1, Successes: 0},
		{QuestionID: "q-tie-second", Text: "¿Reemplazar al equipo de soporte con IAs?", Active: true,
			Yes: 0, No: 0, Successes: 0},
	}, got.Questions)
}

func TestAnalyticsRepository_ComputeEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.ReadWrite.ExecContext(ctx, `DELETE FROM game_sessions; DELETE FROM scores; DELETE FROM questions;`)
	require.NoError(t, err)

	got, err := repositories.NewAnalyticsRepository(db, testhelpers.NewLogger(io.Discard)).Compute(ctx)
	require.NoError(t, err)
	require.Zero(t, got.TotalAnswers)
	require.Zero(t, got.SuccessRate)
	require.Zero(t, got.AverageScore)
	require.Empty(t, got.Questions)
}
