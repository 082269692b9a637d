package models

import (
	"crypto/rand"
	"fmt"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/decisionverse/internal/errors"
	"time"
)

// Admin is a passkey holder allowed to manage questions and players.
type Admin struct {
	ID          []byte
	DisplayName string
	Credentials []webauthn.Credential
}

func NewAdmin(now time.Time) (*Admin, error) {
	id := make([]byte, 64) //nolint:mnd // maximum user handle size
	if _, err := rand.Read(id); err != nil {
		return nil, errors.Wrap(err, "read admin id")
	}
	admin := Admin{
		DisplayName: fmt.Sprintf("Admin registered at %s", now.Format(time.RFC3339)),
		ID:          id,
		Credentials: []webauthn.Credential{},
	}

	return &admin, nil
}

// WebAuthnID is the random 64 byte user handle. Authorization decisions are made on it, never on the display name.
func (a Admin) WebAuthnID() []byte {
	return a.ID
}

func (a Admin) WebAuthnName() string {
	return a.DisplayName
}

func (a Admin) WebAuthnDisplayName() string {
	return a.DisplayName
}

func (a Admin) WebAuthnCredentials() []webauthn.Credential {
	return a.Credentials
}

func (a *Admin) AddWebAuthnCredential(credential webauthn.Credential) {
	a.Credentials = append(a.Credentials, credential)
}

// WebAuthnIcon is deprecated in the WebAuthn recommendation and left blank.
func (a Admin) WebAuthnIcon() string {
	return ""
}
