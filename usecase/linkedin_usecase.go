package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"
)

const oauthStateTTL = 10 * time.Minute

// profileForgetter is implemented by the Redis profile cache.
type profileForgetter interface {
	Forget(ctx context.Context, accessToken string)
}

type ILinkedInUsecase interface {
	AuthURL(ctx context.Context, userID string) (string, error)
	// Callback completes the authorization-code flow and returns the user it
	// was started for.
	Callback(ctx context.Context, code, state, denied string) (string, error)
	Status(ctx context.Context, userID string) (*dto.LinkedInStatusResponse, error)
	Disconnect(ctx context.Context, userID string) error
}

type linkedInUsecase struct {
	oauth       repository.IOAuth
	client      repository.ILinkedIn
	credentials repository.ICredential
	states      repository.IOAuthState
	profiles    profileForgetter
}

// NewLinkedInUsecase wires the connect flow. profiles may be nil.
func NewLinkedInUsecase(oauth repository.IOAuth, client repository.ILinkedIn, credentials repository.ICredential, states repository.IOAuthState, profiles profileForgetter) ILinkedInUsecase {
	return &linkedInUsecase{
		oauth:       oauth,
		client:      client,
		credentials: credentials,
		states:      states,
		profiles:    profiles,
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (u *linkedInUsecase) AuthURL(ctx context.Context, userID string) (string, error) {
	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := u.states.Put(ctx, state, userID, oauthStateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return u.oauth.AuthURL(state), nil
}

func (u *linkedInUsecase) Callback(ctx context.Context, code, state, denied string) (string, error) {
	if denied != "" {
		return "", model.ErrAuthorizationDenied
	}
	if state == "" {
		return "", model.ErrInvalidState
	}
	userID, err := u.states.Take(ctx, state)
	if errors.Is(err, model.ErrNotFound) {
		return "", model.ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	if code == "" {
		return "", model.ErrMissingCode
	}

	log := logger.GetLogger().WithField("user_id", userID)
	grant, err := u.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	now := time.Now().UTC()
	credential := &model.Credential{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		UpdatedAt:    now,
	}
	if profile, err := u.client.GetUserInfo(ctx, grant.AccessToken); err != nil {
		log.WithField("error", err).Warn("Error while fetching LinkedIn profile, saving token without it")
	} else {
		credential.Profile = profile
	}
	if err := u.credentials.Upsert(ctx, credential); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}
	log.WithField("expires_at", grant.ExpiresAt.Format(time.RFC3339)).Info("LinkedIn connected")
	return userID, nil
}

func (u *linkedInUsecase) Status(ctx context.Context, userID string) (*dto.LinkedInStatusResponse, error) {
	credential, err := u.credentials.GetByUser(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return &dto.LinkedInStatusResponse{IsConnected: false}, nil
	}
	if err != nil {
		return nil, err
	}
	expired := credential.IsExpired(time.Now().UTC())
	return &dto.LinkedInStatusResponse{
		IsConnected: true,
		IsExpired:   &expired,
		Profile:     credential.Profile,
	}, nil
}

func (u *linkedInUsecase) Disconnect(ctx context.Context, userID string) error {
	credential, err := u.credentials.GetByUser(ctx, userID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if err := u.credentials.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if credential.Usable() && u.profiles != nil {
		u.profiles.Forget(ctx, credential.AccessToken)
	}
	logger.GetLogger().WithFields(logrus.Fields{"user_id": userID}).Info("LinkedIn disconnected")
	return nil
}
