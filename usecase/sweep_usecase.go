package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"
	"linkedpost/infrastructure/metrics"
)

const (
	defaultSweepConcurrency = 4
	defaultPostTimeout      = 45 * time.Second
	defaultFindDueTimeout   = 30 * time.Second
	writeBackTimeout        = 10 * time.Second
	eventTimeout            = 5 * time.Second

	alreadySharedMessage = "Post was already shared"
)

type ISweepUsecase interface {
	RunSweep(ctx context.Context, now time.Time, source model.SweepSource) (*model.SweepSummary, error)
}

type SweepConfig struct {
	Concurrency int
	// PostTimeout bounds the credential lookup, any token refresh and the
	// publish call of one post. Write-backs get their own deadline.
	PostTimeout    time.Duration
	FindDueTimeout time.Duration
	RefreshExpired bool
}

type sweepUsecase struct {
	posts       repository.IPost
	credentials repository.ICredential
	publisher   repository.ILinkedIn
	oauth       repository.IOAuth
	events      repository.IPostEvents
	cfg         SweepConfig
}

// NewSweepUsecase wires the sweep. oauth may be nil, in which case expired
// credentials are always skipped; events may be nil.
func NewSweepUsecase(posts repository.IPost, credentials repository.ICredential, publisher repository.ILinkedIn, oauth repository.IOAuth, events repository.IPostEvents, cfg SweepConfig) ISweepUsecase {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = defaultPostTimeout
	}
	if cfg.FindDueTimeout <= 0 {
		cfg.FindDueTimeout = defaultFindDueTimeout
	}
	return &sweepUsecase{
		posts:       posts,
		credentials: credentials,
		publisher:   publisher,
		oauth:       oauth,
		events:      events,
		cfg:         cfg,
	}
}

// attempt is the settled state of one due post.
type attempt struct {
	result  *model.SweepResult
	outcome string
	event   *model.PostEvent
}

func (u *sweepUsecase) RunSweep(ctx context.Context, now time.Time, source model.SweepSource) (*model.SweepSummary, error) {
	now = now.UTC()
	started := time.Now()
	summary := &model.SweepSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: now,
		Results:   []model.SweepResult{},
	}
	log := logger.GetLogger().WithFields(logrus.Fields{"run_id": summary.RunID, "source": source})

	fctx, fcancel := context.WithTimeout(ctx, u.cfg.FindDueTimeout)
	due, err := u.posts.FindDue(fctx, now)
	fcancel()
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(string(source), "error").Inc()
		log.WithField("error", err).Error("Error while finding due posts")
		return nil, fmt.Errorf("find due posts: %w", err)
	}

	attempts := make([]attempt, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)
	for i, post := range due {
		i, post := i, post
		g.Go(func() error {
			attempts[i] = u.process(gctx, post, now, summary.RunID, log)
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range attempts {
		metrics.SweepPostsTotal.WithLabelValues(a.outcome).Inc()
		if a.result == nil {
			summary.Skipped = append(summary.Skipped, due[i].ID)
			continue
		}
		summary.Results = append(summary.Results, *a.result)
		if a.event != nil {
			u.emit(ctx, *a.event, log)
		}
	}
	summary.ProcessedCount = len(due)

	metrics.SweepRunsTotal.WithLabelValues(string(source), "ok").Inc()
	metrics.SweepDuration.WithLabelValues(string(source)).Observe(time.Since(started).Seconds())
	log.WithFields(logrus.Fields{
		"due":       len(due),
		"processed": summary.ProcessedCount,
		"succeeded": summary.Count(model.SweepStatusSuccess),
		"failed":    summary.Count(model.SweepStatusError),
		"skipped":   len(summary.Skipped),
	}).Info("Scheduled post sweep finished")
	return summary, nil
}

func (u *sweepUsecase) process(ctx context.Context, post *model.Post, now time.Time, runID string, log *logrus.Entry) attempt {
	log = log.WithFields(logrus.Fields{"post_id": post.ID, "user_id": post.UserID})
	if !post.IsDue(now) {
		log.Warn("Store returned a post that is not due, skipping")
		return attempt{outcome: metrics.OutcomeSkipped}
	}

	pctx, cancel := context.WithTimeout(ctx, u.cfg.PostTimeout)
	defer cancel()

	credential, err := u.credentialFor(pctx, post.UserID, now, log)
	if err != nil {
		log.WithField("error", err).Error("Error while loading LinkedIn credential")
		return attempt{
			outcome: metrics.OutcomeFailed,
			result:  &model.SweepResult{PostID: post.ID, Status: model.SweepStatusError, Error: err.Error()},
		}
	}
	if credential == nil {
		return attempt{outcome: metrics.OutcomeSkipped}
	}

	start := time.Now()
	remoteID, err := u.publisher.CreatePost(pctx, credential.AccessToken, repository.PostContent{Text: post.Content})
	metrics.PublishDuration.Observe(time.Since(start).Seconds())

	// Write-backs must not inherit an exhausted publish deadline or a caller
	// that went away.
	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer wcancel()

	if err == nil {
		return u.settle(wctx, post, now, runID, remoteID, "", metrics.OutcomePublished, log)
	}

	if dupID, dup := ReconcileDuplicate(err); dup {
		log.WithField("error", err).Info("LinkedIn reports the content as already shared")
		return u.settle(wctx, post, now, runID, duplicateRemoteID(dupID), model.PostStatusDuplicate, metrics.OutcomeDuplicate, log)
	}

	log.WithField("error", err).Error("Error while publishing scheduled post")
	if rerr := u.posts.RecordFailure(wctx, post.ID, err.Error()); rerr != nil {
		log.WithField("error", rerr).Warn("Error while recording publish failure")
	}
	return attempt{
		outcome: metrics.OutcomeFailed,
		result:  &model.SweepResult{PostID: post.ID, Status: model.SweepStatusError, Error: err.Error()},
		event: &model.PostEvent{
			Type:       model.PostEventFailed,
			RunID:      runID,
			PostID:     post.ID,
			UserID:     post.UserID,
			Status:     string(model.SweepStatusError),
			Error:      err.Error(),
			OccurredAt: now,
		},
	}
}

// credentialFor returns the credential to publish with. A nil credential and
// nil error mean the post is left for a later sweep.
func (u *sweepUsecase) credentialFor(ctx context.Context, userID string, now time.Time, log *logrus.Entry) (*model.Credential, error) {
	credential, err := u.credentials.GetByUser(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		log.Info("No LinkedIn credential, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if !credential.Usable() {
		log.Info("LinkedIn credential has no access token, skipping")
		return nil, nil
	}
	if !credential.IsExpired(now) {
		return credential, nil
	}
	if !u.cfg.RefreshExpired || u.oauth == nil || credential.RefreshToken == "" {
		log.Info("LinkedIn credential expired, skipping")
		return nil, nil
	}

	grant, err := u.oauth.Refresh(ctx, credential.RefreshToken)
	if err != nil {
		log.WithField("error", err).Warn("Error while refreshing LinkedIn token, skipping")
		return nil, nil
	}
	refreshed := *credential
	refreshed.AccessToken = grant.AccessToken
	refreshed.RefreshToken = grant.RefreshToken
	refreshed.ExpiresAt = grant.ExpiresAt
	refreshed.UpdatedAt = now
	if err := u.credentials.Upsert(ctx, &refreshed); err != nil {
		log.WithField("error", err).Warn("Error while saving refreshed LinkedIn token")
	}
	if !refreshed.Usable() || refreshed.IsExpired(now) {
		return nil, nil
	}
	return &refreshed, nil
}

func (u *sweepUsecase) settle(ctx context.Context, post *model.Post, now time.Time, runID, remoteID, status, outcome string, log *logrus.Entry) attempt {
	changed, err := u.posts.MarkPublished(ctx, post.ID, model.PublishOutcome{
		LinkedInPostID: remoteID,
		PublishedAt:    now,
		Status:         status,
	})
	if err != nil {
		log.WithField("error", err).Error("Error while marking post published")
		msg := fmt.Sprintf("post published on LinkedIn as %s but saving failed: %v", remoteID, err)
		return attempt{
			outcome: metrics.OutcomeFailed,
			result:  &model.SweepResult{PostID: post.ID, Status: model.SweepStatusError, LinkedInPostID: remoteID, Error: msg},
		}
	}
	if !changed {
		// Another sweep settled the post first; its id is the one on record
		// and it already emitted the event.
		stored := u.storedRemoteID(ctx, post.ID, log)
		log.WithField("linkedin_post_id", stored).Info("Post was already marked published by another sweep")
		result := &model.SweepResult{PostID: post.ID, Status: model.SweepStatusSuccess, LinkedInPostID: stored}
		if status == model.PostStatusDuplicate {
			result.Message = alreadySharedMessage
		}
		return attempt{outcome: outcome, result: result}
	}

	result := &model.SweepResult{PostID: post.ID, Status: model.SweepStatusSuccess, LinkedInPostID: remoteID}
	if status == model.PostStatusDuplicate {
		result.Message = alreadySharedMessage
	}
	log.WithFields(logrus.Fields{"status": result.Status, "linkedin_post_id": remoteID}).Info("Scheduled post published")
	return attempt{
		outcome: outcome,
		result:  result,
		event: &model.PostEvent{
			Type:           model.PostEventPublished,
			RunID:          runID,
			PostID:         post.ID,
			UserID:         post.UserID,
			LinkedInPostID: remoteID,
			Status:         string(model.SweepStatusSuccess),
			OccurredAt:     now,
		},
	}
}

// storedRemoteID returns the LinkedIn id persisted for the post, or "" when it
// cannot be read.
func (u *sweepUsecase) storedRemoteID(ctx context.Context, postID string, log *logrus.Entry) string {
	stored, err := u.posts.GetByID(ctx, postID)
	if err != nil {
		log.WithField("error", err).Warn("Error while reading back published post")
		return ""
	}
	if stored.LinkedInPostID == nil {
		return ""
	}
	return *stored.LinkedInPostID
}

func (u *sweepUsecase) emit(ctx context.Context, event model.PostEvent, log *logrus.Entry) {
	if u.events == nil {
		return
	}
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := u.events.Publish(ectx, event); err != nil {
		log.WithFields(logrus.Fields{"error": err, "post_id": event.PostID}).Warn("Error while publishing post event")
	}
}
