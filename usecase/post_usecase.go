package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"
)

const (
	directShareTopic    = "Direct Share"
	scheduledPostTopic  = "Scheduled Post"
	shareEventTimeout   = 5 * time.Second
	defaultPostsPerPage = 20
)

// localLayouts are accepted for scheduledFor values that carry no UTC offset.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

type SharePostInput struct {
	Content      string
	Topic        string
	Tone         string
	Keywords     []string
	IsScheduled  bool
	ScheduledFor string
	Timezone     string
	Image        []byte
	ImageType    string
}

type ShareOutcome struct {
	Post           *model.Post
	LinkedInPostID string
	Duplicate      bool
	Scheduled      bool
	ScheduledUTC   time.Time
	ScheduledLocal time.Time
}

type IPostUsecase interface {
	Share(ctx context.Context, userID string, in SharePostInput) (*ShareOutcome, error)
	List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error)
	Delete(ctx context.Context, userID, postID string) error
}

type postUsecase struct {
	posts       repository.IPost
	credentials repository.ICredential
	client      repository.ILinkedIn
	events      repository.IPostEvents
	now         func() time.Time
}

func NewPostUsecase(posts repository.IPost, credentials repository.ICredential, client repository.ILinkedIn, events repository.IPostEvents) IPostUsecase {
	return &postUsecase{
		posts:       posts,
		credentials: credentials,
		client:      client,
		events:      events,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ParseScheduledTime interprets value in the IANA zone timezone unless it
// already carries an offset, and returns the instant in UTC together with the
// wall-clock time in that zone.
func ParseScheduledTime(value, timezone string) (time.Time, time.Time, error) {
	if strings.TrimSpace(timezone) == "" {
		return time.Time{}, time.Time{}, model.ErrTimezoneRequired
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", model.ErrInvalidTimezone, timezone)
	}
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), t, nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", model.ErrScheduleInvalid, value)
}

func (u *postUsecase) Share(ctx context.Context, userID string, in SharePostInput) (*ShareOutcome, error) {
	log := logger.GetLogger().WithField("user_id", userID)
	now := u.now()

	credential, err := u.credentials.GetByUser(ctx, userID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if !credential.Usable() {
		return nil, model.ErrNotConnected
	}
	if credential.IsExpired(now) {
		return nil, model.ErrTokenExpired
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, model.ErrContentRequired
	}
	if _, err := u.client.GetUserInfo(ctx, credential.AccessToken); err != nil {
		log.WithField("error", err).Warn("LinkedIn token validation failed")
		return nil, model.ErrLinkedInAuth
	}

	if in.IsScheduled && strings.TrimSpace(in.ScheduledFor) != "" {
		return u.schedule(ctx, userID, in, now, log)
	}
	return u.publishNow(ctx, userID, credential.AccessToken, in, now, log)
}

func (u *postUsecase) schedule(ctx context.Context, userID string, in SharePostInput, now time.Time, log *logrus.Entry) (*ShareOutcome, error) {
	utc, local, err := ParseScheduledTime(in.ScheduledFor, in.Timezone)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateSchedule(utc, now); err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:       userID,
		Content:      in.Content,
		Topic:        firstNonEmpty(in.Topic, scheduledPostTopic),
		Tone:         model.Tone(in.Tone),
		Keywords:     in.Keywords,
		IsScheduled:  true,
		ScheduledFor: &utc,
		Timezone:     in.Timezone,
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	if err := u.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create scheduled post: %w", err)
	}
	log.WithFields(logrus.Fields{
		"post_id":       post.ID,
		"scheduled_utc": utc.Format(time.RFC3339),
		"timezone":      in.Timezone,
	}).Info("Created scheduled post")
	return &ShareOutcome{Post: post, Scheduled: true, ScheduledUTC: utc, ScheduledLocal: local}, nil
}

func (u *postUsecase) publishNow(ctx context.Context, userID, accessToken string, in SharePostInput, now time.Time, log *logrus.Entry) (*ShareOutcome, error) {
	post := &model.Post{
		UserID:   userID,
		Content:  in.Content,
		Topic:    directShareTopic,
		Tone:     model.ToneProfessional,
		Keywords: in.Keywords,
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}

	content := repository.PostContent{Text: in.Content}
	if len(in.Image) > 0 && in.ImageType != "" {
		content.Image = in.Image
		content.ImageType = in.ImageType
	}
	remoteID, err := u.client.CreatePost(ctx, accessToken, content)
	outcome := &ShareOutcome{Post: post}
	publishedAt := now
	post.IsPublished = true
	post.PublishedAt = &publishedAt

	switch dupID, dup := ReconcileDuplicate(err); {
	case err == nil:
		post.LinkedInPostID = &remoteID
		outcome.LinkedInPostID = remoteID
	case dup:
		stored := duplicateRemoteID(dupID)
		status := model.PostStatusDuplicate
		post.LinkedInPostID = &stored
		post.Status = &status
		outcome.LinkedInPostID = dupID
		outcome.Duplicate = true
		log.WithField("linkedin_post_id", dupID).Info("Duplicate post detected")
	default:
		log.WithField("error", err).Error("Error while sharing post")
		return nil, err
	}

	if err := u.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("save shared post: %w", err)
	}
	log.WithFields(logrus.Fields{"post_id": post.ID, "linkedin_post_id": *post.LinkedInPostID}).Info("Shared post")
	u.notify(ctx, post, log)
	return outcome, nil
}

func (u *postUsecase) notify(ctx context.Context, post *model.Post, log *logrus.Entry) {
	if u.events == nil {
		return
	}
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shareEventTimeout)
	defer cancel()
	event := model.PostEvent{
		Type:           model.PostEventPublished,
		PostID:         post.ID,
		UserID:         post.UserID,
		LinkedInPostID: *post.LinkedInPostID,
		Status:         string(model.SweepStatusSuccess),
		OccurredAt:     *post.PublishedAt,
	}
	if err := u.events.Publish(ectx, event); err != nil {
		log.WithField("error", err).Warn("Error while publishing post event")
	}
}

func (u *postUsecase) List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error) {
	if filter.Limit < 1 {
		filter.Limit = defaultPostsPerPage
	}
	if filter.Now.IsZero() {
		filter.Now = u.now()
	}
	posts, total, err := u.posts.ListByUser(ctx, userID, filter.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, total, nil
}

func (u *postUsecase) Delete(ctx context.Context, userID, postID string) error {
	post, err := u.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return model.ErrForbidden
	}
	if err := u.posts.Delete(ctx, postID); err != nil {
		return err
	}
	logger.GetLogger().WithFields(logrus.Fields{"post_id": postID, "user_id": userID}).Info("Deleted post")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
