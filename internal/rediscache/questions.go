package rediscache

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

type ActiveQuestionSource interface {
	ListActive(ctx context.Context) ([]models.Question, error)
}

// Questions caches the active question list that every new game is started from.
type Questions struct {
	cache *cache[[]models.Question]
}

func NewQuestions(client *redis.Client, source ActiveQuestionSource, ttl time.Duration, logger *slog.Logger) *Questions {
	load := func(ctx context.Context) ([]models.Question, error) {
		qs, err := source.ListActive(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load active questions")
		}
		return qs, nil
	}
	return &Questions{cache: newCache(client, "questions:active", ttl, load, logger)}
}

func (q *Questions) ListActive(ctx context.Context) ([]models.Question, error) {
	return q.cache.get(ctx)
}

func (q *Questions) Invalidate(ctx context.Context) {
	q.cache.invalidate(ctx)
}
