package main

import (
	"context"
	"github.com/myrjola/decisionverse/internal/e2etest"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/logging"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestGame plays one full game and checks that it ends on the results page.
func TestGame(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute) //nolint:mnd // outcomes dwell a few seconds each
	defer cancel()

	page, err := client.PlayGame(ctx, "smoketest", func(int) string { return "YES" })
	if err != nil {
		return errors.Wrap(err, "play game")
	}
	if page.Doc.Find("table.answers tbody tr").Length() == 0 {
		return errors.New("results page lists no answers", slog.String("path", page.URL.Path))
	}
	return nil
}

// TestAuth registers an admin with inviteCode, logs out and logs back in.
func TestAuth(ctx context.Context, client *e2etest.Client, inviteCode string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	var err error

	if _, err = client.Register(ctx, inviteCode); err != nil {
		return errors.Wrap(err, "register admin")
	}
	if _, err = client.Logout(ctx); err != nil {
		return errors.Wrap(err, "logout admin")
	}
	if _, err = client.Login(ctx); err != nil {
		return errors.Wrap(err, "login admin")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url, hostname, url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}

	var resp *http.Response
	if resp, err = client.Get(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "health check failed", errors.SlogError(err))
		os.Exit(1)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.LogAttrs(ctx, slog.LevelError, "unhealthy", slog.Int("status", resp.StatusCode))
		os.Exit(1)
	}

	if err = TestGame(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing game", errors.SlogError(err))
		os.Exit(1)
	}

	// Registration needs the invite code of the deployment. Without it only the game is tested.
	if inviteCode := strings.TrimSpace(os.Getenv("DECISIONVERSE_ADMIN_INVITE_CODE")); inviteCode != "" {
		if err = TestAuth(ctx, client, inviteCode); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "error testing auth", errors.SlogError(err))
			os.Exit(1)
		}
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
