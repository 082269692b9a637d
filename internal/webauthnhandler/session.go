package webauthnhandler

type sessionKey string

const (
	webAuthnSessionKey  = sessionKey("webauthn")
	adminIDSessionKey   = sessionKey("adminID")
	inviteOKSessionKey  = sessionKey("inviteOK")
	pendingAdminIDKey   = sessionKey("pendingAdminID")
	pendingAdminNameKey = sessionKey("pendingAdminName")
)
