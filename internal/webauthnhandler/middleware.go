package webauthnhandler

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/myrjola/decisionverse/internal/contexthelpers"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/logging"
	"log/slog"
	"net/http"
)

// AuthenticateMiddleware marks the request context as authenticated when the session belongs to an existing admin.
func (h *WebAuthnHandler) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		adminID := h.sessionManager.GetBytes(ctx, string(adminIDSessionKey))

		// Not logged in as admin.
		if adminID == nil {
			next.ServeHTTP(w, r)
			return
		}

		exists, err := h.admins.Exists(ctx, adminID)
		if err != nil {
			h.logger.LogAttrs(ctx, slog.LevelError, "server error",
				slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if exists {
			r = contexthelpers.AuthenticateContext(r, adminID)
		}

		// Hash the token to keep it out of the logs.
		token := h.sessionManager.Token(ctx)
		tokenHash := sha256.Sum256([]byte(token))
		ctx = logging.WithAttrs(r.Context(),
			slog.String("session_hash", hex.EncodeToString(tokenHash[:])),
			slog.String("admin_id", hex.EncodeToString(adminID)),
		)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}
