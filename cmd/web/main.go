package main

import (
	"context"
	"encoding/gob"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/myrjola/decisionverse/internal/ai"
	"github.com/myrjola/decisionverse/internal/broker"
	"github.com/myrjola/decisionverse/internal/envstruct"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/game"
	"github.com/myrjola/decisionverse/internal/logging"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/pprofserver"
	"github.com/myrjola/decisionverse/internal/rediscache"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/seed"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"github.com/myrjola/decisionverse/internal/webauthnhandler"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"os"
	"time"
)

type application struct {
	logger          *slog.Logger
	game            *game.Service
	questions       *repositories.QuestionRepository
	questionCache   *rediscache.Questions
	scores          *repositories.LeaderboardRepository
	leaderboard     *rediscache.Leaderboard
	leaderboardHub  *broker.Hub[[]models.ScoreEntry]
	analytics       *repositories.AnalyticsRepository
	webAuthnHandler *webauthnhandler.WebAuthnHandler
	sessionManager  *scs.SessionManager
	htmx            *htmx.HTMX
	upgrader        websocket.Upgrader
}

type config struct {
	// Addr is the address the HTTP server listens on. Port 0 picks a free port.
	Addr string `env:"DECISIONVERSE_ADDR" envDefault:"localhost:4000"`
	// FQDN is the fully qualified domain name used as the passkey relying party id.
	FQDN string `env:"DECISIONVERSE_FQDN" envDefault:"localhost"`
	// SqliteURL is the path to the database file or ":memory:".
	SqliteURL string `env:"DECISIONVERSE_SQLITE_URL" envDefault:"./decisionverse.sqlite"`
	// PprofAddr enables the pprof server on the given loopback address.
	PprofAddr string `env:"DECISIONVERSE_PPROF_ADDR" envDefault:""`
	// OpenAIAPIKey enables generated feedback. Without it players see the fixed fallback texts.
	OpenAIAPIKey    string        `env:"DECISIONVERSE_OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string        `env:"DECISIONVERSE_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel     string        `env:"DECISIONVERSE_OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	FeedbackTimeout time.Duration `env:"DECISIONVERSE_FEEDBACK_TIMEOUT" envDefault:"3s"`
	// OutcomeDwell is how long an outcome stays on screen before the game moves on.
	OutcomeDwell time.Duration `env:"DECISIONVERSE_OUTCOME_DWELL" envDefault:"2500ms"`
	// RedisAddr enables the question and leaderboard caches.
	RedisAddr string        `env:"DECISIONVERSE_REDIS_ADDR" envDefault:""`
	CacheTTL  time.Duration `env:"DECISIONVERSE_CACHE_TTL" envDefault:"1m"`
	// AdminInviteCode opens passkey registration for new admins. Empty closes it.
	AdminInviteCode string `env:"DECISIONVERSE_ADMIN_INVITE_CODE" envDefault:""`
	// SeedQuestions imports the bundled questions into an empty database on startup.
	SeedQuestions bool `env:"DECISIONVERSE_SEED_QUESTIONS" envDefault:"true"`
}

func init() {
	gob.Register(webauthn.SessionData{})
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()

	questions := repositories.NewQuestionRepository(db, logger)
	if cfg.SeedQuestions {
		var n int
		if n, err = seed.IfEmpty(ctx, questions, time.Now()); err != nil {
			return errors.Wrap(err, "seed questions")
		}
		if n > 0 {
			logger.LogAttrs(ctx, slog.LevelInfo, "seeded default questions", slog.Int("count", n))
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		if redisClient, err = rediscache.NewClient(ctx, cfg.RedisAddr); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "redis unavailable, caching disabled", errors.SlogError(err))
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}

	scores := repositories.NewLeaderboardRepository(db, logger)
	app := &application{
		logger:          logger,
		game:            nil,
		questions:       questions,
		questionCache:   rediscache.NewQuestions(redisClient, questions, cfg.CacheTTL, logger),
		scores:          scores,
		leaderboard:     rediscache.NewLeaderboard(redisClient, scores, cfg.CacheTTL, logger),
		leaderboardHub:  broker.NewHub[[]models.ScoreEntry](),
		analytics:       repositories.NewAnalyticsRepository(db, logger),
		webAuthnHandler: nil,
		sessionManager:  nil,
		htmx:            htmx.New(),
		upgrader: websocket.Upgrader{ //nolint:exhaustruct // default origin check
			ReadBufferSize:  1024, //nolint:mnd // 1 KiB
			WriteBufferSize: 1024, //nolint:mnd // 1 KiB
		},
	}
	go app.leaderboardHub.Start()
	defer app.leaderboardHub.Stop()

	gameOpts := []game.Option{
		game.WithDwell(cfg.OutcomeDwell),
		game.WithFeedbackTimeout(cfg.FeedbackTimeout),
		game.WithScoreSubmittedHook(app.scoreSubmitted),
	}
	if cfg.OpenAIAPIKey != "" {
		aiClient := ai.NewClient(ai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, logger)
		gameOpts = append(gameOpts, game.WithFeedbackGenerator(aiClient))
	} else {
		logger.LogAttrs(ctx, slog.LevelInfo, "no OpenAI API key, using fallback feedback")
	}
	app.game = game.NewService(app.questionCache, repositories.NewGameSessionRepository(db, logger), logger, gameOpts...)

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, time.Hour)
	defer sessionStore.StopCleanup()
	app.sessionManager = scs.New()
	app.sessionManager.Store = sessionStore
	app.sessionManager.Lifetime = 12 * time.Hour //nolint:mnd // half a day
	app.sessionManager.Cookie.Secure = true

	rpOrigins := []string{"https://" + cfg.FQDN, "http://" + cfg.Addr}
	if app.webAuthnHandler, err = webauthnhandler.New(
		cfg.FQDN,
		rpOrigins,
		cfg.AdminInviteCode,
		logger,
		app.sessionManager,
		repositories.NewAdminRepository(db, logger),
	); err != nil {
		return errors.Wrap(err, "new webauthn handler")
	}

	if cfg.PprofAddr != "" {
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	// A missing .env file is fine, the environment may be configured otherwise.
	_ = godotenv.Load()

	format, _ := os.LookupEnv("DECISIONVERSE_LOG_FORMAT")
	logger, err := logging.NewLogger(os.Stdout, format, slog.LevelDebug)
	if err != nil {
		slog.Default().LogAttrs(ctx, slog.LevelError, "failed to create logger", errors.SlogError(err))
		os.Exit(1)
	}

	if err = run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
