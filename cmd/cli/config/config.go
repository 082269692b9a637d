// Package config holds the persistent flags shared by the CLI commands and opens the resources they point to.
package config

import (
	"context"
	"github.com/myrjola/decisionverse/internal/ai"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/logging"
	"github.com/myrjola/decisionverse/internal/rediscache"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"log/slog"
)

const (
	sqliteURLFlag     = "sqlite-url"
	logFormatFlag     = "log-format"
	redisAddrFlag     = "redis-addr"
	openAIAPIKeyFlag  = "openai-api-key"
	openAIBaseURLFlag = "openai-base-url"
)

func envOr(lookupEnv func(string) (string, bool), key, fallback string) string {
	if v, ok := lookupEnv(key); ok {
		return v
	}
	return fallback
}

// AddFlags registers the persistent flags on root. The defaults come from the same environment variables the web
// server reads.
func AddFlags(root *cobra.Command, lookupEnv func(string) (string, bool)) {
	flags := root.PersistentFlags()
	flags.String(sqliteURLFlag, envOr(lookupEnv, "DECISIONVERSE_SQLITE_URL", "./decisionverse.sqlite"),
		"path to the SQLite database")
	flags.String(logFormatFlag, envOr(lookupEnv, "DECISIONVERSE_LOG_FORMAT", "text"),
		"log format: text, json or pretty")
	flags.String(redisAddrFlag, envOr(lookupEnv, "DECISIONVERSE_REDIS_ADDR", ""),
		"Redis address whose caches are invalidated after changes")
	flags.String(openAIAPIKeyFlag, envOr(lookupEnv, "DECISIONVERSE_OPENAI_API_KEY", ""), "OpenAI API key")
	flags.String(openAIBaseURLFlag, envOr(lookupEnv, "DECISIONVERSE_OPENAI_BASE_URL", ""),
		"OpenAI compatible API base URL")
}

// Logger writes to the standard error of cmd so that the command output stays machine readable.
func Logger(cmd *cobra.Command) (*slog.Logger, error) {
	format, err := cmd.Flags().GetString(logFormatFlag)
	if err != nil {
		return nil, errors.Wrap(err, "get log format flag")
	}
	var logger *slog.Logger
	if logger, err = logging.NewLogger(cmd.ErrOrStderr(), format, slog.LevelWarn); err != nil {
		return nil, errors.Wrap(err, "new logger")
	}
	return logger, nil
}

// Env is what a command needs to work on the game data.
type Env struct {
	Logger *slog.Logger
	DB     *sqlite.Database
	// Redis is nil when no address is configured or the server does not answer.
	Redis *redis.Client
}

// Close releases the database and Redis connections.
func (e *Env) Close() {
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if err := e.DB.Close(); err != nil {
		e.Logger.LogAttrs(context.Background(), slog.LevelError, "close database", errors.SlogError(err))
	}
}

// Open connects to the database, and to Redis when configured.
func Open(ctx context.Context, cmd *cobra.Command) (*Env, error) {
	logger, err := Logger(cmd)
	if err != nil {
		return nil, err
	}
	var sqliteURL string
	if sqliteURL, err = cmd.Flags().GetString(sqliteURLFlag); err != nil {
		return nil, errors.Wrap(err, "get sqlite url flag")
	}
	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", sqliteURL))
	}
	env := &Env{Logger: logger, DB: db, Redis: nil}

	var redisAddr string
	if redisAddr, err = cmd.Flags().GetString(redisAddrFlag); err != nil {
		env.Close()
		return nil, errors.Wrap(err, "get redis addr flag")
	}
	if redisAddr != "" {
		if env.Redis, err = rediscache.NewClient(ctx, redisAddr); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "redis unavailable, caches not invalidated", errors.SlogError(err))
			env.Redis = nil
		}
	}
	return env, nil
}

// AIConfig returns the OpenAI settings of cmd.
func AIConfig(cmd *cobra.Command) (ai.Config, error) {
	apiKey, err := cmd.Flags().GetString(openAIAPIKeyFlag)
	if err != nil {
		return ai.Config{}, errors.Wrap(err, "get openai api key flag") //nolint:exhaustruct // zero value on error
	}
	var baseURL string
	if baseURL, err = cmd.Flags().GetString(openAIBaseURLFlag); err != nil {
		return ai.Config{}, errors.Wrap(err, "get openai base url flag") //nolint:exhaustruct // zero value on error
	}
	return ai.Config{APIKey: apiKey, BaseURL: baseURL, Model: ""}, nil
}
