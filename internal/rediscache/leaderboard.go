package rediscache

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

type LeaderboardSource interface {
	Top(ctx context.Context, limit int) ([]models.ScoreEntry, error)
}

// Leaderboard caches the top of the leaderboard. Invalidate it after every successful score submission.
type Leaderboard struct {
	cache *cache[[]models.ScoreEntry]
}

func NewLeaderboard(client *redis.Client, source LeaderboardSource, ttl time.Duration, logger *slog.Logger) *Leaderboard {
	load := func(ctx context.Context) ([]models.ScoreEntry, error) {
		entries, err := source.Top(ctx, models.LeaderboardLimit)
		if err != nil {
			return nil, errors.Wrap(err, "load leaderboard")
		}
		return entries, nil
	}
	return &Leaderboard{cache: newCache(client, "leaderboard:top", ttl, load, logger)}
}

// Top returns at most limit ranked entries. Limits outside (0, LeaderboardLimit] mean LeaderboardLimit.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	entries, err := l.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (l *Leaderboard) Invalidate(ctx context.Context) {
	l.cache.invalidate(ctx)
}
