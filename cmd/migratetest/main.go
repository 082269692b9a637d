package main

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

// main opens a copy of the production database with the current schema and checks that the data survived the
// migration.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("DECISIONVERSE_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "DECISIONVERSE_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// A live database always has questions, so an empty table means the migration lost data.
	var count int
	if count, err = repositories.NewQuestionRepository(db, logger).Count(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching question count", errors.SlogError(err))
		os.Exit(1)
	}
	if count == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no questions found, something is likely wrong")
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "question count", slog.Int("count", count))

	var entries []models.ScoreEntry
	if entries, err = repositories.NewLeaderboardRepository(db, logger).ListAll(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching leaderboard", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "leaderboard size", slog.Int("count", len(entries)))

	if err = db.Close(); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error closing database", errors.SlogError(err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
