package repository

import (
	"context"

	"linkedpost/domain/model"
)

type PostContent struct {
	Text      string
	Image     []byte
	ImageType string
}

// ILinkedIn is the external publish client.
type ILinkedIn interface {
	GetUserInfo(ctx context.Context, accessToken string) (*model.LinkedInProfile, error)
	CreatePost(ctx context.Context, accessToken string, content PostContent) (string, error)
}

// IOAuth performs the LinkedIn authorization-code flow.
type IOAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*model.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
}

// IPostEvents receives settled post outcomes for downstream consumers.
type IPostEvents interface {
	Publish(ctx context.Context, event model.PostEvent) error
}
