package main

import (
	"context"
	"github.com/myrjola/decisionverse/internal/e2etest"
	"github.com/stretchr/testify/require"
	"io"
	"path/filepath"
	"testing"
)

const testInviteCode = "let-me-in"

// testLookupEnv configures a server on a free port with its own database and no outcome dwell. overrides replace
// or add variables.
func testLookupEnv(t *testing.T, overrides map[string]string) func(string) (string, bool) {
	t.Helper()
	env := map[string]string{
		"DECISIONVERSE_ADDR":              "localhost:0",
		"DECISIONVERSE_SQLITE_URL":        filepath.Join(t.TempDir(), "test.sqlite"),
		"DECISIONVERSE_OUTCOME_DWELL":     "0s",
		"DECISIONVERSE_ADMIN_INVITE_CODE": testInviteCode,
		"DECISIONVERSE_SEED_QUESTIONS":    "true",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// startTestServer starts the server in the background and stops it when the test finishes.
func startTestServer(t *testing.T, overrides map[string]string) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	// Logging to the test log would race with the server outliving the test.
	server, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv(t, overrides), run)
	require.NoError(t, err)
	return server
}

func alwaysYes(int) string {
	return "YES"
}
