package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/clients/linkedin"
	"linkedpost/usecase"
)

var sweepNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func text(p *model.Post) repository.PostContent {
	return repository.PostContent{Text: p.Content}
}

func TestRunSweep_PublishesDuePost(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).Return("999", nil).Once()
	events := new(MockPostEvents)
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e model.PostEvent) bool {
		return e.Type == model.PostEventPublished && e.PostID == "p1" && e.LinkedInPostID == "999"
	})).Return(nil).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, events, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepResult{PostID: "p1", Status: model.SweepStatusSuccess, LinkedInPostID: "999"}, summary.Results[0])

	got := posts.get("p1")
	assert.True(t, got.IsPublished)
	require.NotNil(t, got.LinkedInPostID)
	assert.Equal(t, "999", *got.LinkedInPostID)
	require.NotNil(t, got.PublishedAt)
	assert.WithinDuration(t, sweepNow, *got.PublishedAt, time.Second)
	client.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestRunSweep_DuplicateWithShareURN(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).
		Return("", errors.New("duplicate content, see urn:li:share:555")).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourcePoll)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.Equal(t, model.SweepStatusSuccess, res.Status)
	assert.Equal(t, "555", res.LinkedInPostID)
	assert.Contains(t, res.Message, "already shared")

	got := posts.get("p1")
	assert.True(t, got.IsPublished)
	assert.Equal(t, "555", *got.LinkedInPostID)
	require.NotNil(t, got.Status)
	assert.Equal(t, model.PostStatusDuplicate, *got.Status)
}

func TestRunSweep_DuplicateWithoutURNStoresSentinel(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).
		Return("", &linkedin.DuplicateContentError{Message: "Content is a duplicate"}).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusSuccess, summary.Results[0].Status)
	assert.Equal(t, model.DuplicatePostSentinel, *posts.get("p1").LinkedInPostID)
}

func TestRunSweep_FuturePostIsNotTouched(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(time.Hour))
	posts := newMemPosts(post)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Empty(t, summary.Results)
	assert.False(t, posts.get("p1").IsPublished)
	client.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSweep_SkipsWithoutUsableCredential(t *testing.T) {
	cases := map[string]*memCredentials{
		"no credential": newMemCredentials(),
		"empty token": newMemCredentials(&model.Credential{
			UserID: "u1", ExpiresAt: sweepNow.Add(time.Hour),
		}),
		"expired token": newMemCredentials(&model.Credential{
			UserID: "u1", AccessToken: "old", ExpiresAt: sweepNow.Add(-time.Minute),
		}),
		"expires exactly now": newMemCredentials(&model.Credential{
			UserID: "u1", AccessToken: "old", ExpiresAt: sweepNow,
		}),
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
			client := new(MockLinkedIn)

			uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
			summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

			require.NoError(t, err)
			assert.Empty(t, summary.Results)
			assert.Equal(t, []string{"p1"}, summary.Skipped)
			assert.Equal(t, 0, posts.mutations)
			got := posts.get("p1")
			assert.False(t, got.IsPublished)
			assert.Nil(t, got.Error)
			client.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunSweep_PartialFailureIsIsolated(t *testing.T) {
	due := sweepNow.Add(-time.Minute)
	p1 := scheduledPost("p1", "u1", due)
	p2 := scheduledPost("p2", "u1", due)
	p3 := scheduledPost("p3", "u1", due)
	posts := newMemPosts(p1, p2, p3)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(p1)).Return("101", nil).Once()
	client.On("CreatePost", mock.Anything, "token-u1", text(p2)).
		Return("", &linkedin.APIError{Status: 422, Message: "Content is malformed"}).Once()
	client.On("CreatePost", mock.Anything, "token-u1", text(p3)).Return("103", nil).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{Concurrency: 3})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.ProcessedCount)
	require.Len(t, summary.Results, 3)
	byID := map[string]model.SweepResult{}
	for _, r := range summary.Results {
		byID[r.PostID] = r
	}
	assert.Equal(t, model.SweepStatusSuccess, byID["p1"].Status)
	assert.Equal(t, model.SweepStatusError, byID["p2"].Status)
	assert.Equal(t, "Failed to create post: Content is malformed", byID["p2"].Error)
	assert.Equal(t, model.SweepStatusSuccess, byID["p3"].Status)

	assert.True(t, posts.get("p1").IsPublished)
	assert.True(t, posts.get("p3").IsPublished)
	failed := posts.get("p2")
	assert.False(t, failed.IsPublished)
	assert.Nil(t, failed.LinkedInPostID)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "malformed")
	client.AssertExpectations(t)
}

// racePublisher holds the first publish until a second one arrives, which then
// gets LinkedIn's duplicate rejection.
type racePublisher struct {
	calls   int32
	release chan struct{}
}

func (r *racePublisher) GetUserInfo(context.Context, string) (*model.LinkedInProfile, error) {
	return &model.LinkedInProfile{Sub: "abc"}, nil
}

func (r *racePublisher) CreatePost(ctx context.Context, _ string, _ repository.PostContent) (string, error) {
	if atomic.AddInt32(&r.calls, 1) == 1 {
		select {
		case <-r.release:
		case <-time.After(5 * time.Second):
		}
		return "777", nil
	}
	close(r.release)
	return "", &linkedin.DuplicateContentError{RemoteID: "777", Message: "Duplicate post detected: urn:li:share:777"}
}

func TestRunSweep_ConcurrentSweepsConverge(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
	creds := newMemCredentials(validCredential("u1", sweepNow))
	publisher := &racePublisher{release: make(chan struct{})}
	uc := usecase.NewSweepUsecase(posts, creds, publisher, nil, nil, usecase.SweepConfig{})

	var wg sync.WaitGroup
	summaries := make([]*model.SweepSummary, 2)
	errs := make([]error, 2)
	for i := range summaries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)
		}(i)
	}
	wg.Wait()

	for i := range summaries {
		require.NoError(t, errs[i])
		for _, r := range summaries[i].Results {
			assert.Equal(t, model.SweepStatusSuccess, r.Status)
			assert.Equal(t, "777", r.LinkedInPostID)
		}
	}
	got := posts.get("p1")
	assert.True(t, got.IsPublished)
	assert.Equal(t, "777", *got.LinkedInPostID)
	assert.Nil(t, got.Error)
}

func TestRunSweep_FindDueFailureIsFatal(t *testing.T) {
	posts := newMemPosts()
	posts.findErr = errors.New("connection refused")
	client := new(MockLinkedIn)

	uc := usecase.NewSweepUsecase(posts, newMemCredentials(), client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	assert.Nil(t, summary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunSweep_CredentialLookupErrorIsPerPost(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
	creds := newMemCredentials()
	creds.getErr = errors.New("timeout")
	client := new(MockLinkedIn)

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusError, summary.Results[0].Status)
	assert.False(t, posts.get("p1").IsPublished)
}

func runSweepWithin(t *testing.T, uc usecase.ISweepUsecase, limit time.Duration) (*model.SweepSummary, error) {
	t.Helper()
	type outcome struct {
		summary *model.SweepSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)
		done <- outcome{summary, err}
	}()
	select {
	case o := <-done:
		return o.summary, o.err
	case <-time.After(limit):
		t.Fatalf("sweep did not return within %s", limit)
		return nil, nil
	}
}

func TestRunSweep_HungCredentialLookupIsBounded(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
	creds := newMemCredentials(validCredential("u1", sweepNow))
	creds.blockGet = true
	client := new(MockLinkedIn)

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{PostTimeout: 50 * time.Millisecond})
	summary, err := runSweepWithin(t, uc, 2*time.Second)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusError, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, context.DeadlineExceeded.Error())
	assert.False(t, posts.get("p1").IsPublished)
	client.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSweep_HungFindDueIsBounded(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
	posts.blockFind = true

	uc := usecase.NewSweepUsecase(posts, newMemCredentials(), new(MockLinkedIn), nil, nil, usecase.SweepConfig{FindDueTimeout: 50 * time.Millisecond})
	summary, err := runSweepWithin(t, uc, 2*time.Second)

	assert.Nil(t, summary)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunSweep_LosingSweepReportsStoredID(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	snapshot := *post
	stored := "duplicate-post"
	published := *post
	published.IsPublished = true
	published.LinkedInPostID = &stored
	status := model.PostStatusDuplicate
	published.Status = &status

	posts := newMemPosts(&published)
	posts.stale = []*model.Post{&snapshot}
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).Return("999", nil).Once()
	events := new(MockPostEvents)

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, events, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusSuccess, summary.Results[0].Status)
	assert.Equal(t, stored, summary.Results[0].LinkedInPostID)
	assert.Equal(t, stored, *posts.get("p1").LinkedInPostID)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRunSweep_WriteBackFailureIsPerPost(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	posts.markErr = errors.New("write conflict")
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).Return("999", nil).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, nil, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusError, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, "write conflict")
	assert.False(t, posts.get("p1").IsPublished)
}

func TestRunSweep_RefreshesExpiredCredentialWhenEnabled(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	creds := newMemCredentials(&model.Credential{
		UserID: "u1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: sweepNow.Add(-time.Hour),
	})
	oauth := new(MockOAuth)
	oauth.On("Refresh", mock.Anything, "r1").Return(&model.TokenGrant{
		AccessToken: "new", RefreshToken: "r2", ExpiresAt: sweepNow.Add(time.Hour),
	}, nil).Once()
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "new", text(post)).Return("42", nil).Once()

	uc := usecase.NewSweepUsecase(posts, creds, client, oauth, nil, usecase.SweepConfig{RefreshExpired: true})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "42", summary.Results[0].LinkedInPostID)
	stored, err := creds.GetByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.AccessToken)
	assert.Equal(t, "r2", stored.RefreshToken)
	oauth.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestRunSweep_RefreshFailureSkips(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", sweepNow.Add(-time.Minute)))
	creds := newMemCredentials(&model.Credential{
		UserID: "u1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: sweepNow.Add(-time.Hour),
	})
	oauth := new(MockOAuth)
	oauth.On("Refresh", mock.Anything, "r1").Return(nil, errors.New("invalid_grant")).Once()
	client := new(MockLinkedIn)

	uc := usecase.NewSweepUsecase(posts, creds, client, oauth, nil, usecase.SweepConfig{RefreshExpired: true})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Equal(t, []string{"p1"}, summary.Skipped)
	client.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSweep_EventFailureDoesNotChangeOutcome(t *testing.T) {
	post := scheduledPost("p1", "u1", sweepNow.Add(-time.Minute))
	posts := newMemPosts(post)
	creds := newMemCredentials(validCredential("u1", sweepNow))
	client := new(MockLinkedIn)
	client.On("CreatePost", mock.Anything, "token-u1", text(post)).Return("999", nil).Once()
	events := new(MockPostEvents)
	events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("topic not found"))

	uc := usecase.NewSweepUsecase(posts, creds, client, nil, events, usecase.SweepConfig{})
	summary, err := uc.RunSweep(context.Background(), sweepNow, model.SweepSourceCron)

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, model.SweepStatusSuccess, summary.Results[0].Status)
	assert.True(t, posts.get("p1").IsPublished)
}

func TestReconcileDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantID string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"plain failure", errors.New("Failed to create post: boom"), "", false},
		{"urn without duplicate wording", errors.New("... urn:li:share:123456789 ..."), "", false},
		{"duplicate with urn", errors.New("Duplicate content urn:li:share:123456789"), "123456789", true},
		{"duplicate without urn", errors.New("Failed to create post: duplicate"), "", true},
		{"typed with id", &linkedin.DuplicateContentError{RemoteID: "42"}, "42", true},
		{"typed id in message", &linkedin.DuplicateContentError{Message: "see urn:li:share:7"}, "7", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := usecase.ReconcileDuplicate(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}
