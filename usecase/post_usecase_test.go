package usecase_test

import (
	"context"
	"errors"
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

func newShareFixture(t *testing.T) (*memPosts, *memCredentials, *MockLinkedIn) {
	t.Helper()
	now := time.Now().UTC()
	return newMemPosts(), newMemCredentials(validCredential("u1", now)), new(MockLinkedIn)
}

func TestParseScheduledTime(t *testing.T) {
	utc, local, err := usecase.ParseScheduledTime("2030-01-15T09:30", "Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 15, 4, 0, 0, 0, time.UTC), utc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, "Asia/Kolkata", local.Location().String())

	utc, _, err = usecase.ParseScheduledTime("2030-01-15T09:30:00Z", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 15, 9, 30, 0, 0, time.UTC), utc)

	_, _, err = usecase.ParseScheduledTime("2030-01-15T09:30", "")
	assert.ErrorIs(t, err, model.ErrTimezoneRequired)

	_, _, err = usecase.ParseScheduledTime("2030-01-15T09:30", "Mars/Olympus")
	assert.ErrorIs(t, err, model.ErrInvalidTimezone)

	_, _, err = usecase.ParseScheduledTime("next tuesday", "UTC")
	assert.ErrorIs(t, err, model.ErrScheduleInvalid)
}

func TestShare_NotConnected(t *testing.T) {
	posts, _, client := newShareFixture(t)
	uc := usecase.NewPostUsecase(posts, newMemCredentials(), client, nil)

	_, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "hi"})
	assert.ErrorIs(t, err, model.ErrNotConnected)
}

func TestShare_ExpiredToken(t *testing.T) {
	posts, _, client := newShareFixture(t)
	creds := newMemCredentials(&model.Credential{
		UserID: "u1", AccessToken: "t", ExpiresAt: time.Now().Add(-time.Minute),
	})
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	_, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "hi"})
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestShare_EmptyContent(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	_, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "   "})
	assert.ErrorIs(t, err, model.ErrContentRequired)
	client.AssertNotCalled(t, "GetUserInfo", mock.Anything, mock.Anything)
}

func TestShare_TokenRejectedByLinkedIn(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	client.On("GetUserInfo", mock.Anything, "token-u1").
		Return(nil, &linkedin.AuthError{Status: 401, Message: "Failed to get user info"}).Once()
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	_, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "hi"})
	assert.ErrorIs(t, err, model.ErrLinkedInAuth)
	assert.Empty(t, posts.posts)
}

func TestShare_Scheduled(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	client.On("GetUserInfo", mock.Anything, "token-u1").Return(&model.LinkedInProfile{Sub: "abc"}, nil)
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	at := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)
	out, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{
		Content:      "launch day",
		IsScheduled:  true,
		ScheduledFor: at.Format(time.RFC3339),
		Timezone:     "Europe/Berlin",
		Keywords:     []string{"go"},
	})

	require.NoError(t, err)
	assert.True(t, out.Scheduled)
	assert.Equal(t, at, out.ScheduledUTC)
	require.NotEmpty(t, out.Post.ID)
	stored := posts.get(out.Post.ID)
	assert.True(t, stored.IsScheduled)
	assert.False(t, stored.IsPublished)
	assert.Equal(t, at, *stored.ScheduledFor)
	assert.Equal(t, "Scheduled Post", stored.Topic)
	assert.Equal(t, model.ToneProfessional, stored.Tone)
	assert.Equal(t, "Europe/Berlin", stored.Timezone)
	client.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
}

func TestShare_ScheduleValidation(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		in   usecase.SharePostInput
		want error
	}{
		{
			name: "missing timezone",
			in:   usecase.SharePostInput{Content: "x", IsScheduled: true, ScheduledFor: now.Add(time.Hour).Format(time.RFC3339)},
			want: model.ErrTimezoneRequired,
		},
		{
			name: "in the past",
			in:   usecase.SharePostInput{Content: "x", IsScheduled: true, ScheduledFor: now.Add(-time.Hour).Format(time.RFC3339), Timezone: "UTC"},
			want: model.ErrScheduleInPast,
		},
		{
			name: "less than five minutes ahead",
			in:   usecase.SharePostInput{Content: "x", IsScheduled: true, ScheduledFor: now.Add(2 * time.Minute).Format(time.RFC3339), Timezone: "UTC"},
			want: model.ErrScheduleTooSoon,
		},
		{
			name: "unknown tone",
			in:   usecase.SharePostInput{Content: "x", Tone: "angry", IsScheduled: true, ScheduledFor: now.Add(time.Hour).Format(time.RFC3339), Timezone: "UTC"},
			want: model.ErrInvalidTone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, creds, client := newShareFixture(t)
			client.On("GetUserInfo", mock.Anything, "token-u1").Return(&model.LinkedInProfile{Sub: "abc"}, nil)
			uc := usecase.NewPostUsecase(posts, creds, client, nil)

			_, err := uc.Share(context.Background(), "u1", tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, posts.posts)
		})
	}
}

func TestShare_Immediate(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	client.On("GetUserInfo", mock.Anything, "token-u1").Return(&model.LinkedInProfile{Sub: "abc"}, nil)
	client.On("CreatePost", mock.Anything, "token-u1", repository.PostContent{
		Text: "hello", Image: []byte{1, 2}, ImageType: "image/png",
	}).Return("urn:li:share:1", nil).Once()
	events := new(MockPostEvents)
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e model.PostEvent) bool {
		return e.UserID == "u1" && e.LinkedInPostID == "urn:li:share:1"
	})).Return(nil).Once()
	uc := usecase.NewPostUsecase(posts, creds, client, events)

	out, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{
		Content: "hello", Image: []byte{1, 2}, ImageType: "image/png",
	})

	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, "urn:li:share:1", out.LinkedInPostID)
	stored := posts.get(out.Post.ID)
	assert.True(t, stored.IsPublished)
	assert.Equal(t, "Direct Share", stored.Topic)
	assert.Equal(t, "urn:li:share:1", *stored.LinkedInPostID)
	client.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestShare_ImmediateDuplicate(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	client.On("GetUserInfo", mock.Anything, "token-u1").Return(&model.LinkedInProfile{Sub: "abc"}, nil)
	client.On("CreatePost", mock.Anything, "token-u1", repository.PostContent{Text: "again"}).
		Return("", &linkedin.DuplicateContentError{RemoteID: "321", Message: "duplicate urn:li:share:321"}).Once()
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	out, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "again"})

	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Equal(t, "321", out.LinkedInPostID)
	stored := posts.get(out.Post.ID)
	assert.True(t, stored.IsPublished)
	require.NotNil(t, stored.Status)
	assert.Equal(t, model.PostStatusDuplicate, *stored.Status)
}

func TestShare_ImmediateFailure(t *testing.T) {
	posts, creds, client := newShareFixture(t)
	client.On("GetUserInfo", mock.Anything, "token-u1").Return(&model.LinkedInProfile{Sub: "abc"}, nil)
	client.On("CreatePost", mock.Anything, "token-u1", repository.PostContent{Text: "boom"}).
		Return("", &linkedin.APIError{Status: 500, Message: "Internal error"}).Once()
	uc := usecase.NewPostUsecase(posts, creds, client, nil)

	_, err := uc.Share(context.Background(), "u1", usecase.SharePostInput{Content: "boom"})

	var apiErr *linkedin.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, posts.posts)
}

func TestListPosts(t *testing.T) {
	now := time.Now().UTC()
	posts := newMemPosts(
		scheduledPost("later", "u1", now.Add(2*time.Hour)),
		scheduledPost("sooner", "u1", now.Add(time.Hour)),
		scheduledPost("past", "u1", now.Add(-time.Hour)),
		scheduledPost("other", "u2", now.Add(time.Hour)),
	)
	uc := usecase.NewPostUsecase(posts, newMemCredentials(), new(MockLinkedIn), nil)

	got, total, err := uc.List(context.Background(), "u1", model.PostFilter{ScheduledOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "sooner", got[0].ID)
	assert.Equal(t, "later", got[1].ID)

	got, total, err = uc.List(context.Background(), "u1", model.PostFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, got, 1)
}

func TestDeletePost(t *testing.T) {
	posts := newMemPosts(scheduledPost("p1", "u1", time.Now().Add(time.Hour)))
	uc := usecase.NewPostUsecase(posts, newMemCredentials(), new(MockLinkedIn), nil)
	ctx := context.Background()

	assert.ErrorIs(t, uc.Delete(ctx, "u2", "p1"), model.ErrForbidden)
	assert.ErrorIs(t, uc.Delete(ctx, "u1", "missing"), model.ErrNotFound)
	require.NoError(t, uc.Delete(ctx, "u1", "p1"))
	_, err := posts.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
