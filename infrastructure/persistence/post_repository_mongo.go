package persistence

import (
	"context"
	"errors"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const postsCollection = "posts"

type PostRepositoryMongo struct {
	posts *mongo.Collection
}

func NewPostRepositoryMongo(db *mongo.Database) repository.IPost {
	return &PostRepositoryMongo{posts: db.Collection(postsCollection)}
}

// EnsurePostIndexesMongo creates the indexes used by the sweep and the post list.
func EnsurePostIndexesMongo(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isScheduled", Value: 1}, {Key: "isPublished", Value: 1}, {Key: "scheduledFor", Value: 1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func dueFilter(now time.Time) bson.D {
	return bson.D{
		{Key: "isScheduled", Value: true},
		{Key: "isPublished", Value: false},
		{Key: "scheduledFor", Value: bson.D{{Key: "$lte", Value: now.UTC()}}},
	}
}

func listFilter(userID string, f model.PostFilter) (bson.D, bson.D) {
	filter := bson.D{{Key: "user", Value: userID}}
	if f.ScheduledOnly {
		filter = append(filter,
			bson.E{Key: "isScheduled", Value: true},
			bson.E{Key: "scheduledFor", Value: bson.D{{Key: "$gt", Value: f.Now.UTC()}}})
		return filter, bson.D{{Key: "scheduledFor", Value: 1}}
	}
	return filter, bson.D{{Key: "createdAt", Value: -1}}
}

func (r *PostRepositoryMongo) FindDue(ctx context.Context, now time.Time) ([]*model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledFor", Value: 1}})
	cursor, err := r.posts.Find(ctx, dueFilter(now), opts)
	if err != nil {
		return nil, err
	}
	return decodePosts(ctx, cursor)
}

func decodePosts(ctx context.Context, cursor *mongo.Cursor) ([]*model.Post, error) {
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}()
	var posts []*model.Post
	for cursor.Next(ctx) {
		p := &model.Post{}
		if err := cursor.Decode(p); err != nil {
			return nil, err
		}
		normalizePostTimes(p)
		posts = append(posts, p)
	}
	return posts, cursor.Err()
}

// Mongo hands back local-zone times; keep everything in UTC.
func normalizePostTimes(p *model.Post) {
	p.CreatedAt = p.CreatedAt.UTC()
	if p.ScheduledFor != nil {
		t := p.ScheduledFor.UTC()
		p.ScheduledFor = &t
	}
	if p.PublishedAt != nil {
		t := p.PublishedAt.UTC()
		p.PublishedAt = &t
	}
}

func (r *PostRepositoryMongo) Create(ctx context.Context, p *model.Post) error {
	preparePost(p)
	_, err := r.posts.InsertOne(ctx, p)
	return err
}

func (r *PostRepositoryMongo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	p := &model.Post{}
	err := r.posts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	normalizePostTimes(p)
	return p, nil
}

func (r *PostRepositoryMongo) ListByUser(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error) {
	f := filter.Normalize()
	query, sort := listFilter(userID, f)
	total, err := r.posts.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(sort).SetSkip(f.Skip()).SetLimit(int64(f.Limit))
	cursor, err := r.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	posts, err := decodePosts(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// unpublishedFilter matches the post only while it is unpublished, so two
// overlapping sweeps cannot both apply a write-back.
func unpublishedFilter(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "isPublished", Value: false}}
}

func markPublishedUpdate(outcome model.PublishOutcome) bson.D {
	set := bson.D{
		{Key: "isPublished", Value: true},
		{Key: "publishedAt", Value: outcome.PublishedAt.UTC()},
		{Key: "linkedinPostId", Value: outcome.LinkedInPostID},
	}
	if outcome.Status != "" {
		set = append(set, bson.E{Key: "status", Value: outcome.Status})
	}
	return bson.D{{Key: "$set", Value: set}, {Key: "$unset", Value: bson.D{{Key: "error", Value: ""}}}}
}

func (r *PostRepositoryMongo) MarkPublished(ctx context.Context, id string, outcome model.PublishOutcome) (bool, error) {
	res, err := r.posts.UpdateOne(ctx, unpublishedFilter(id), markPublishedUpdate(outcome))
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *PostRepositoryMongo) RecordFailure(ctx context.Context, id string, message string) error {
	_, err := r.posts.UpdateOne(ctx,
		unpublishedFilter(id),
		bson.D{{Key: "$set", Value: bson.D{{Key: "error", Value: message}}}})
	return err
}

func (r *PostRepositoryMongo) Delete(ctx context.Context, id string) error {
	res, err := r.posts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}
