package webauthnhandler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"github.com/alexedwards/scs/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"log/slog"
	"net/http"
	"time"
)

var (
	ErrRegistrationClosed = errors.NewSentinel("admin registration is closed")
	ErrInvalidInvite      = errors.NewSentinel("invalid invite code")
	ErrInviteRequired     = errors.NewSentinel("invite code not verified")
)

type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin, credential *webauthn.Credential) error
	UpsertCredential(ctx context.Context, adminID []byte, credential *webauthn.Credential) error
	Get(ctx context.Context, id []byte) (*models.Admin, error)
	Exists(ctx context.Context, id []byte) (bool, error)
}

type WebAuthnHandler struct {
	logger         *slog.Logger
	webAuthn       *webauthn.WebAuthn
	sessionManager *scs.SessionManager
	admins         AdminStore
	inviteCode     string
}

// New creates the passkey handler for admins. An empty inviteCode closes registration.
func New(
	fqdn string,
	rpOrigins []string,
	inviteCode string,
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	admins AdminStore,
) (*WebAuthnHandler, error) {
	var err error

	var webauthnConfig = &webauthn.Config{ //nolint:exhaustruct // defaults for the rest
		RPDisplayName: "DecisionVerse",
		RPID:          fqdn,
		RPOrigins:     rpOrigins,
	}

	var webAuthn *webauthn.WebAuthn
	if webAuthn, err = webauthn.New(webauthnConfig); err != nil {
		return nil, errors.Wrap(err, "new webauthn")
	}

	return &WebAuthnHandler{
		logger:         logger,
		webAuthn:       webAuthn,
		sessionManager: sessionManager,
		admins:         admins,
		inviteCode:     inviteCode,
	}, nil
}

func (h *WebAuthnHandler) RegistrationOpen() bool {
	return h.inviteCode != ""
}

// VerifyInvite checks code against the configured invite code and remembers a match in the session.
func (h *WebAuthnHandler) VerifyInvite(ctx context.Context, code string) error {
	if !h.RegistrationOpen() {
		return ErrRegistrationClosed
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(h.inviteCode)) != 1 {
		return ErrInvalidInvite
	}
	h.sessionManager.Put(ctx, string(inviteOKSessionKey), true)
	return nil
}

// InviteVerified reports whether this session has entered the correct invite code.
func (h *WebAuthnHandler) InviteVerified(ctx context.Context) bool {
	return h.RegistrationOpen() && h.sessionManager.GetBool(ctx, string(inviteOKSessionKey))
}

func (h *WebAuthnHandler) BeginRegistration(ctx context.Context) ([]byte, error) {
	if !h.RegistrationOpen() {
		return nil, ErrRegistrationClosed
	}
	if !h.sessionManager.GetBool(ctx, string(inviteOKSessionKey)) {
		return nil, ErrInviteRequired
	}

	admin, err := models.NewAdmin(time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "new admin")
	}

	authSelect := protocol.AuthenticatorSelection{ //nolint:exhaustruct // defaults for the rest
		RequireResidentKey: protocol.ResidentKeyNotRequired(),
		UserVerification:   protocol.VerificationDiscouraged,
	}

	opts, session, err := h.webAuthn.BeginRegistration(
		admin,
		webauthn.WithAuthenticatorSelection(authSelect),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired))
	if err != nil {
		return nil, errors.Wrap(err, "begin registration")
	}

	// The admin is stored only once the passkey is confirmed.
	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)
	h.sessionManager.Put(ctx, string(pendingAdminIDKey), admin.ID)
	h.sessionManager.Put(ctx, string(pendingAdminNameKey), admin.DisplayName)

	var out []byte
	if out, err = json.Marshal(opts); err != nil {
		return nil, errors.Wrap(err, "JSON encode")
	}
	return out, nil
}

func (h *WebAuthnHandler) parseWebAuthnSession(ctx context.Context) (webauthn.SessionData, error) {
	var (
		session webauthn.SessionData
		ok      bool
		err     error
	)
	if session, ok = h.sessionManager.Get(ctx, string(webAuthnSessionKey)).(webauthn.SessionData); !ok {
		err = errors.New("could not parse webauthn.SessionData")
	}
	return session, err
}

func (h *WebAuthnHandler) FinishRegistration(r *http.Request) error {
	var (
		err     error
		session webauthn.SessionData
		ctx     = r.Context()
	)

	if !h.sessionManager.GetBool(ctx, string(inviteOKSessionKey)) {
		return ErrInviteRequired
	}
	if session, err = h.parseWebAuthnSession(ctx); err != nil {
		return errors.Wrap(err, "parse webauthn session")
	}

	admin := &models.Admin{
		ID:          h.sessionManager.GetBytes(ctx, string(pendingAdminIDKey)),
		DisplayName: h.sessionManager.GetString(ctx, string(pendingAdminNameKey)),
		Credentials: []webauthn.Credential{},
	}
	if admin.ID == nil {
		return errors.New("no pending admin in session")
	}

	var credential *webauthn.Credential
	if credential, err = h.webAuthn.FinishRegistration(admin, session, r); err != nil {
		return errors.Wrap(err, "finish webauthn registration")
	}

	if err = h.admins.Create(ctx, admin, credential); err != nil {
		return errors.Wrap(err, "create admin")
	}

	// Log in the newly registered admin.
	if err = h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Remove(ctx, string(webAuthnSessionKey))
	h.sessionManager.Remove(ctx, string(inviteOKSessionKey))
	h.sessionManager.Remove(ctx, string(pendingAdminIDKey))
	h.sessionManager.Remove(ctx, string(pendingAdminNameKey))
	h.sessionManager.Put(ctx, string(adminIDSessionKey), admin.ID)

	return nil
}

func (h *WebAuthnHandler) BeginLogin(ctx context.Context) ([]byte, error) {
	options, session, err := h.webAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, errors.Wrap(err, "begin discoverable webauthn login")
	}

	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)

	var out []byte
	if out, err = json.Marshal(options); err != nil {
		return nil, errors.Wrap(err, "json marshal webauthn options")
	}
	return out, nil
}

func (h *WebAuthnHandler) findAdminHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		return h.admins.Get(ctx, userHandle)
	}
}

func (h *WebAuthnHandler) FinishLogin(r *http.Request) error {
	var (
		session webauthn.SessionData
		err     error
		ctx     = r.Context()
	)
	if session, err = h.parseWebAuthnSession(ctx); err != nil {
		return errors.Wrap(err, "parse webauthn session")
	}

	parsedResponse, err := protocol.ParseCredentialRequestResponse(r)
	if err != nil {
		return errors.Wrap(err, "parse credential request response")
	}
	admin, credential, err := h.webAuthn.ValidatePasskeyLogin(h.findAdminHandler(ctx), session, parsedResponse)
	if err != nil {
		return errors.Wrap(err, "validate passkey login")
	}

	if err = h.admins.UpsertCredential(ctx, admin.WebAuthnID(), credential); err != nil {
		return errors.Wrap(err, "upsert webauthn credential")
	}

	if err = h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Remove(ctx, string(webAuthnSessionKey))
	h.sessionManager.Put(ctx, string(adminIDSessionKey), admin.WebAuthnID())

	return nil
}

func (h *WebAuthnHandler) Logout(ctx context.Context) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Remove(ctx, string(adminIDSessionKey))
	return nil
}
