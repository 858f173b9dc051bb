package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"

	"github.com/google/uuid"
)

type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) repository.ICredential { return &CredentialRepository{db: db} }

const credentialColumns = `id, user_id, access_token, refresh_token, expires_at, profile, created_at, updated_at`

func prepareCredential(c *model.Credential) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.ExpiresAt = c.ExpiresAt.UTC()
}

func encodeProfile(p *model.LinkedInProfile) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func scanCredential(s rowScanner) (*model.Credential, error) {
	c := &model.Credential{}
	var refresh sql.NullString
	var profile []byte
	if err := s.Scan(&c.ID, &c.UserID, &c.AccessToken, &refresh, &c.ExpiresAt, &profile, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.RefreshToken = refresh.String
	c.ExpiresAt = c.ExpiresAt.UTC()
	if len(profile) > 0 {
		c.Profile = &model.LinkedInProfile{}
		if err := json.Unmarshal(profile, c.Profile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *CredentialRepository) GetByUser(ctx context.Context, userID string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM linkedin_credentials WHERE user_id = $1`, userID)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return c, err
}

func (r *CredentialRepository) Upsert(ctx context.Context, c *model.Credential) error {
	prepareCredential(c)
	profile, err := encodeProfile(c.Profile)
	if err != nil {
		return err
	}
	q := `INSERT INTO linkedin_credentials (` + credentialColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		  ON CONFLICT (user_id) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			profile=EXCLUDED.profile,
			updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, c.ID, c.UserID, c.AccessToken,
		sql.NullString{String: c.RefreshToken, Valid: c.RefreshToken != ""},
		c.ExpiresAt, profile, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CredentialRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM linkedin_credentials WHERE user_id = $1`, userID)
	return err
}
