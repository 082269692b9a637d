package repositories

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"log/slog"
)

type AdminRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewAdminRepository(db *sqlite.Database, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		db:     db,
		logger: logger.With("source", "AdminRepository"),
	}
}

type credentialRow struct {
	ID              []byte `db:"id"`
	AdminID         []byte `db:"admin_id"`
	PublicKey       []byte `db:"public_key"`
	AttestationType string `db:"attestation_type"`
	Transport       string `db:"transport"`
	UserPresent     bool   `db:"flag_user_present"`
	UserVerified    bool   `db:"flag_user_verified"`
	BackupEligible  bool   `db:"flag_backup_eligible"`
	BackupState     bool   `db:"flag_backup_state"`
	AAGUID          []byte `db:"authenticator_aaguid"`
	SignCount       uint32 `db:"authenticator_sign_count"`
	CloneWarning    bool   `db:"authenticator_clone_warning"`
	Attachment      string `db:"authenticator_attachment"`
}

func newCredentialRow(adminID []byte, c *webauthn.Credential) (credentialRow, error) {
	transport, err := json.Marshal(c.Transport)
	if err != nil {
		return credentialRow{}, errors.Wrap(err, "JSON encode transport") //nolint:exhaustruct // zero value
	}
	return credentialRow{
		ID:              c.ID,
		AdminID:         adminID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       string(transport),
		UserPresent:     c.Flags.UserPresent,
		UserVerified:    c.Flags.UserVerified,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
		AAGUID:          c.Authenticator.AAGUID,
		SignCount:       c.Authenticator.SignCount,
		CloneWarning:    c.Authenticator.CloneWarning,
		Attachment:      string(c.Authenticator.Attachment),
	}, nil
}

func (r credentialRow) toCredential() (webauthn.Credential, error) {
	var credential webauthn.Credential
	if err := json.Unmarshal([]byte(r.Transport), &credential.Transport); err != nil {
		return credential, errors.Wrap(err, "JSON decode transport")
	}
	credential.ID = r.ID
	credential.PublicKey = r.PublicKey
	credential.AttestationType = r.AttestationType
	credential.Flags.UserPresent = r.UserPresent
	credential.Flags.UserVerified = r.UserVerified
	credential.Flags.BackupEligible = r.BackupEligible
	credential.Flags.BackupState = r.BackupState
	credential.Authenticator.AAGUID = r.AAGUID
	credential.Authenticator.SignCount = r.SignCount
	credential.Authenticator.CloneWarning = r.CloneWarning
	credential.Authenticator.Attachment = protocol.AuthenticatorAttachment(r.Attachment)
	return credential, nil
}

const upsertCredentialStmt = `INSERT INTO credentials (id,
                         admin_id,
                         public_key,
                         attestation_type,
                         transport,
                         flag_user_present,
                         flag_user_verified,
                         flag_backup_eligible,
                         flag_backup_state,
                         authenticator_aaguid,
                         authenticator_sign_count,
                         authenticator_clone_warning,
                         authenticator_attachment)
VALUES (:id, :admin_id, :public_key, :attestation_type, :transport, :flag_user_present, :flag_user_verified,
        :flag_backup_eligible, :flag_backup_state, :authenticator_aaguid, :authenticator_sign_count,
        :authenticator_clone_warning, :authenticator_attachment)
ON CONFLICT (id) DO UPDATE SET attestation_type            = excluded.attestation_type,
                               transport                   = excluded.transport,
                               flag_user_present           = excluded.flag_user_present,
                               flag_user_verified          = excluded.flag_user_verified,
                               flag_backup_eligible        = excluded.flag_backup_eligible,
                               flag_backup_state           = excluded.flag_backup_state,
                               authenticator_aaguid        = excluded.authenticator_aaguid,
                               authenticator_sign_count    = excluded.authenticator_sign_count,
                               authenticator_clone_warning = excluded.authenticator_clone_warning,
                               authenticator_attachment    = excluded.authenticator_attachment
WHERE credentials.admin_id = excluded.admin_id`

// Create stores a newly registered admin together with its first credential.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin, credential *webauthn.Credential) error {
	row, err := newCredentialRow(admin.ID, credential)
	if err != nil {
		return err
	}
	err = r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err = tx.ExecContext(ctx, `INSERT INTO admins (id, display_name) VALUES (?, ?)`,
			admin.ID, admin.DisplayName); err != nil {
			return errors.Wrap(err, "insert admin")
		}
		if _, err = tx.NamedExecContext(ctx, upsertCredentialStmt, row); err != nil {
			return errors.Wrap(err, "insert credential")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "create admin", slog.String("admin_id", hex.EncodeToString(admin.ID)))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "admin registered", slog.String("admin_id", hex.EncodeToString(admin.ID)))
	return nil
}

// UpsertCredential stores the credential state after a login, most importantly the sign count.
func (r *AdminRepository) UpsertCredential(ctx context.Context, adminID []byte, credential *webauthn.Credential) error {
	row, err := newCredentialRow(adminID, credential)
	if err != nil {
		return err
	}
	if _, err = r.db.ReadWrite.NamedExecContext(ctx, upsertCredentialStmt, row); err != nil {
		return errors.Wrap(err, "db upsert credential",
			slog.String("admin_id", hex.EncodeToString(adminID)),
			slog.String("credential_id", hex.EncodeToString(credential.ID)),
		)
	}
	return nil
}

// Get returns the admin with all its credentials.
func (r *AdminRepository) Get(ctx context.Context, id []byte) (*models.Admin, error) {
	admin := models.Admin{ID: nil, DisplayName: "", Credentials: []webauthn.Credential{}}
	err := r.db.ReadOnly.QueryRowxContext(ctx, `SELECT id, display_name FROM admins WHERE id = ?`, id).
		Scan(&admin.ID, &admin.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(models.ErrNotFound, "admin", slog.String("admin_id", hex.EncodeToString(id)))
	}
	if err != nil {
		return nil, errors.Wrap(err, "read admin")
	}

	var rows []credentialRow
	if err = r.db.ReadOnly.SelectContext(ctx, &rows, `SELECT id,
       admin_id,
       public_key,
       attestation_type,
       transport,
       flag_user_present,
       flag_user_verified,
       flag_backup_eligible,
       flag_backup_state,
       authenticator_aaguid,
       authenticator_sign_count,
       authenticator_clone_warning,
       authenticator_attachment
FROM credentials
WHERE admin_id = ?`, id); err != nil {
		return nil, errors.Wrap(err, "query credentials")
	}
	for _, row := range rows {
		credential, convErr := row.toCredential()
		if convErr != nil {
			return nil, convErr
		}
		admin.Credentials = append(admin.Credentials, credential)
	}
	return &admin, nil
}

func (r *AdminRepository) Exists(ctx context.Context, id []byte) (bool, error) {
	var exists bool
	if err := r.db.ReadOnly.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM admins WHERE id = ?)`, id); err != nil {
		return false, errors.Wrap(err, "query admin exists")
	}
	return exists, nil
}
