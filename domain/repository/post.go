package repository

import (
	"context"
	"time"

	"linkedpost/domain/model"
)

// IPost is the post record store.
type IPost interface {
	// FindDue returns scheduled, unpublished posts whose scheduledFor <= now.
	FindDue(ctx context.Context, now time.Time) ([]*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	ListByUser(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error)
	// MarkPublished applies outcome only while the post is still unpublished and
	// reports whether the record changed.
	MarkPublished(ctx context.Context, id string, outcome model.PublishOutcome) (bool, error)
	// RecordFailure stores the last publish error on an unpublished post.
	RecordFailure(ctx context.Context, id string, message string) error
	Delete(ctx context.Context, id string) error
}
