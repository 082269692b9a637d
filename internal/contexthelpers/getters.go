package contexthelpers

import (
	"context"
)

// IsAuthenticated reports whether the request belongs to a logged in admin.
func IsAuthenticated(ctx context.Context) bool {
	isAuthenticated, ok := ctx.Value(isAuthenticatedContextKey).(bool)
	if !ok {
		return false
	}

	return isAuthenticated
}

func AuthenticatedAdminID(ctx context.Context) []byte {
	adminID, ok := ctx.Value(authenticatedAdminIDContextKey).([]byte)
	if !ok {
		return nil
	}

	return adminID
}

func CurrentPath(ctx context.Context) string {
	currentPath, ok := ctx.Value(currentPathContextKey).(string)
	if !ok {
		return ""
	}

	return currentPath
}

func CSRFToken(ctx context.Context) string {
	csrfToken, ok := ctx.Value(csrfTokenContextKey).(string)
	if !ok {
		return ""
	}

	return csrfToken
}

func CSPNonce(ctx context.Context) string {
	nonce, ok := ctx.Value(cspNonceContextKey).(string)
	if !ok {
		return ""
	}

	return nonce
}

// GameSessionID returns the id of the game the browser is playing, or "" when there is none.
func GameSessionID(ctx context.Context) string {
	id, ok := ctx.Value(gameSessionIDContextKey).(string)
	if !ok {
		return ""
	}

	return id
}
