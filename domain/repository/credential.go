package repository

import (
	"context"

	"linkedpost/domain/model"
)

// ICredential keeps one LinkedIn credential per user.
type ICredential interface {
	// GetByUser returns model.ErrNotFound when the user never connected or disconnected.
	GetByUser(ctx context.Context, userID string) (*model.Credential, error)
	Upsert(ctx context.Context, credential *model.Credential) error
	DeleteByUser(ctx context.Context, userID string) error
}
