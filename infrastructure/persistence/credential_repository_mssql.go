package persistence

import (
	"context"
	"database/sql"
	"errors"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
)

type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) repository.ICredential {
	return &CredentialRepositoryMSSQL{db: db}
}

func (r *CredentialRepositoryMSSQL) GetByUser(ctx context.Context, userID string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM dbo.[linkedin_credentials] WHERE user_id = @p1`, userID)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return c, err
}

func (r *CredentialRepositoryMSSQL) Upsert(ctx context.Context, c *model.Credential) error {
	prepareCredential(c)
	raw, err := encodeProfile(c.Profile)
	if err != nil {
		return err
	}
	var profile sql.NullString
	if raw != nil {
		profile = sql.NullString{String: string(raw), Valid: true}
	}
	// MERGE upsert by user_id
	q := `MERGE dbo.[linkedin_credentials] AS target
USING (VALUES (@p2)) AS src(user_id)
ON target.user_id = src.user_id
WHEN MATCHED THEN UPDATE SET
    access_token=@p3,
    refresh_token=@p4,
    expires_at=@p5,
    profile=@p6,
    updated_at=@p8
WHEN NOT MATCHED THEN
    INSERT (id, user_id, access_token, refresh_token, expires_at, profile, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8);`
	_, err = r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.AccessToken,
		sql.NullString{String: c.RefreshToken, Valid: c.RefreshToken != ""},
		c.ExpiresAt, profile, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CredentialRepositoryMSSQL) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dbo.[linkedin_credentials] WHERE user_id = @p1`, userID)
	return err
}
