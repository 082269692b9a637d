package repositories_test

import (
	"context"
	"fmt"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"slices"
	"sync"
	"testing"
	"time"
)

func entry(nickname string, score int, timeMs int64) models.ScoreEntry {
	return models.ScoreEntry{Nickname: nickname, Score: score, TotalTimeMs: timeMs, CreatedAt: time.Time{}, SessionID: "s"}
}

func TestLeaderboardRepository_SubmitScore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewLeaderboardRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	steps := []struct {
		submitted  models.ScoreEntry
		at         time.Time
		wantResult models.MergeResult
		wantScore  int
		wantTimeMs int64
		wantAt     time.Time
	}{
		{
			submitted: entry("Ann", 3, 9000), at: now,
			wantResult: models.MergeCreated, wantScore: 3, wantTimeMs: 9000, wantAt: now,
		},
		{
			submitted: entry("Ann", 3, 7000), at: now.Add(time.Minute),
			wantResult: models.MergeImproved, wantScore: 3, wantTimeMs: 7000, wantAt: now.Add(time.Minute),
		},
		{
			submitted: entry("Ann", 2, 1000), at: now.Add(2 * time.Minute),
			wantResult: models.MergeKept, wantScore: 3, wantTimeMs: 7000, wantAt: now.Add(time.Minute),
		},
		{
			submitted: entry("Ann", 3, 7000), at: now.Add(3 * time.Minute),
			wantResult: models.MergeKept, wantScore: 3, wantTimeMs: 7000, wantAt: now.Add(time.Minute),
		},
		{
			submitted: entry("Ann", 4, 60000), at: now.Add(4 * time.Minute),
			wantResult: models.MergeImproved, wantScore: 4, wantTimeMs: 60000, wantAt: now.Add(4 * time.Minute),
		},
	}
	for i, step := range steps {
		result, err := repo.SubmitScore(ctx, step.submitted, step.at)
		require.NoError(t, err, "step %d", i)
		require.Equal(t, step.wantResult, result, "step %d", i)

		stored, err := repo.Get(ctx, "Ann")
		require.NoError(t, err)
		require.Equal(t, step.wantScore, stored.Score, "step %d", i)
		require.Equal(t, step.wantTimeMs, stored.TotalTimeMs, "step %d", i)
		require.Equal(t, step.wantAt, stored.CreatedAt, "step %d", i)
	}
}

func TestLeaderboardRepository_SubmitScoreConcurrently(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewLeaderboardRepository(newTestFileDB(t), testhelpers.NewLogger(io.Discard))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.SubmitScore(ctx, entry("Racer", i%5, int64(10000-i)), now)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.Get(ctx, "Racer")
	require.NoError(t, err)
	// Best is score 4 with the lowest time among i = 4, 9, 14, 19.
	require.Equal(t, 4, stored.Score)
	require.Equal(t, int64(10000-19), stored.TotalTimeMs)
}

func TestLeaderboardRepository_Top(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewLeaderboardRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	top, err := repo.Top(ctx, models.LeaderboardLimit)
	require.NoError(t, err)
	var names []string
	for _, e := range top {
		names = append(names, e.Nickname)
	}
	require.Equal(t, []string{"PlayerOne", "CosmicRider", "DataQueen", "SynthWave", "LogicLord"}, names)

	top, err = repo.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	for i := range 60 {
		_, err = repo.SubmitScore(ctx, entry(fmt.Sprintf("bulk%02d", i), i%7, int64(i*100)), now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	top, err = repo.Top(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, top, models.LeaderboardLimit)
	require.True(t, slices.IsSortedFunc(top, models.CompareRank))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 65)
	require.True(t, slices.IsSortedFunc(all, models.CompareRank))
}

func TestLeaderboardRepository_DeleteAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewLeaderboardRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	require.NoError(t, repo.Delete(ctx, "PlayerOne"))
	_, err := repo.Get(ctx, "PlayerOne")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "PlayerOne"), models.ErrNotFound)

	n, err := repo.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	top, err := repo.Top(ctx, models.LeaderboardLimit)
	require.NoError(t, err)
	require.Empty(t, top)
}

func Benchmark_LeaderboardRepository(b *testing.B) {
	repo := repositories.NewLeaderboardRepository(newBenchmarkDB(b), testhelpers.NewLogger(io.Discard))
	ctx := context.Background()

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			if _, err := repo.SubmitScore(ctx, entry(fmt.Sprintf("p%d", i%100), i%6, int64(i)), now); err != nil {
				b.Error(err)
			}
			if _, err := repo.Top(ctx, models.LeaderboardLimit); err != nil {
				b.Error(err)
			}
		}
	})
}
