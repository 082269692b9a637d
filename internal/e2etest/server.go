package e2etest

import (
	"context"
	"fmt"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/logging"
	"io"
	"log/slog"
)

type Server struct {
	url    string
	client *Client
}

// The server under test has to trust this relying party.
const (
	rpID     = "localhost"
	rpOrigin = "http://localhost:0"
)

// LogAddrKey is the key used to log the address the server is listening on.
const LogAddrKey = "addr"

// StartServer runs the server in the background and waits until its health endpoint answers.
//
// logSink receives the server logs, usually [io.Discard] or the test log.
// lookupEnv has the same signature as [os.LookupEnv] and configures the server.
// run starts the server and must log the listening address under [LogAddrKey].
// The server stops when ctx is cancelled.
func StartServer(
	ctx context.Context,
	logSink io.Writer,
	lookupEnv func(string) (string, bool),
	run func(context.Context, *slog.Logger, func(string) (string, bool)) error,
) (*Server, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == LogAddrKey {
				// Only the first address is the HTTP listener.
				select {
				case addrCh <- a.Value.String():
				default:
				}
			}
			return a
		},
	})))

	// Start the server and wait for it to be ready.
	go func() {
		err := run(ctx, logger, lookupEnv)
		if err == nil {
			err = errors.New("server stopped")
		}
		cancel(err)
	}()
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(context.Cause(ctx), "server did not start")
	case addr := <-addrCh:
		var (
			err    error
			client *Client
		)
		serverURL := fmt.Sprintf("http://%s", addr)
		if client, err = NewClient(serverURL, rpID, rpOrigin); err != nil {
			return nil, errors.Wrap(err, "new client")
		}
		if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
			return nil, errors.Wrap(err, "wait for ready")
		}
		return &Server{
			url:    serverURL,
			client: client,
		}, nil
	}
}

func (s *Server) Client() *Client {
	return s.client
}

func (s *Server) URL() string {
	return s.url
}

// NewClient returns a client with its own cookies and passkeys, as if it was another browser.
func (s *Server) NewClient() (*Client, error) {
	return NewClient(s.url, rpID, rpOrigin)
}
