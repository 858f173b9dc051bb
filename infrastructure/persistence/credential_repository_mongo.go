package persistence

import (
	"context"
	"errors"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const credentialsCollection = "linkedin_tokens"

type CredentialRepositoryMongo struct {
	tokens *mongo.Collection
}

func NewCredentialRepositoryMongo(db *mongo.Database) repository.ICredential {
	return &CredentialRepositoryMongo{tokens: db.Collection(credentialsCollection)}
}

// EnsureCredentialIndexesMongo enforces one credential per user.
func EnsureCredentialIndexesMongo(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(credentialsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *CredentialRepositoryMongo) GetByUser(ctx context.Context, userID string) (*model.Credential, error) {
	c := &model.Credential{}
	err := r.tokens.FindOne(ctx, bson.D{{Key: "userId", Value: userID}}).Decode(c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	return c, nil
}

func (r *CredentialRepositoryMongo) Upsert(ctx context.Context, c *model.Credential) error {
	prepareCredential(c)
	set := bson.D{
		{Key: "accessToken", Value: c.AccessToken},
		{Key: "refreshToken", Value: c.RefreshToken},
		{Key: "expiresAt", Value: c.ExpiresAt},
		{Key: "profile", Value: c.Profile},
		{Key: "updatedAt", Value: c.UpdatedAt},
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: c.ID},
			{Key: "createdAt", Value: c.CreatedAt},
		}},
	}
	_, err := r.tokens.UpdateOne(ctx, bson.D{{Key: "userId", Value: c.UserID}}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *CredentialRepositoryMongo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.tokens.DeleteOne(ctx, bson.D{{Key: "userId", Value: userID}})
	return err
}
