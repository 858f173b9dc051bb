package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
)

// memPosts is an in-memory IPost with the same conditional publish semantics
// as the real stores.
type memPosts struct {
	mu        sync.Mutex
	posts     map[string]*model.Post
	findErr   error
	markErr   error
	mutations int
	// blockFind makes FindDue wait for its context.
	blockFind bool
	// stale, when set, is what FindDue returns instead of the live rows,
	// like a read that raced another sweep's write-back.
	stale []*model.Post
}

func newMemPosts(posts ...*model.Post) *memPosts {
	m := &memPosts{posts: map[string]*model.Post{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memPosts) get(id string) model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.posts[id]
}

func (m *memPosts) FindDue(ctx context.Context, now time.Time) ([]*model.Post, error) {
	if m.blockFind {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.stale != nil {
		return m.stale, nil
	}
	var out []*model.Post
	for _, p := range m.posts {
		if p.IsDue(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPosts) Create(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	cp := *post
	m.posts[post.ID] = &cp
	m.mutations++
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) ListByUser(_ context.Context, userID string, f model.PostFilter) ([]*model.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f = f.Normalize()
	var all []*model.Post
	for _, p := range m.posts {
		if p.UserID != userID {
			continue
		}
		if f.ScheduledOnly && (!p.IsScheduled || p.ScheduledFor == nil || !p.ScheduledFor.After(f.Now)) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if f.ScheduledOnly {
			return all[i].ScheduledFor.Before(*all[j].ScheduledFor)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	start := int(f.Skip())
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memPosts) MarkPublished(_ context.Context, id string, outcome model.PublishOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	p, ok := m.posts[id]
	if !ok || p.IsPublished {
		return false, nil
	}
	at := outcome.PublishedAt
	remoteID := outcome.LinkedInPostID
	p.IsPublished = true
	p.PublishedAt = &at
	p.LinkedInPostID = &remoteID
	if outcome.Status != "" {
		status := outcome.Status
		p.Status = &status
	}
	p.Error = nil
	m.mutations++
	return true, nil
}

func (m *memPosts) RecordFailure(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.IsPublished {
		return nil
	}
	p.Error = &message
	m.mutations++
	return nil
}

func (m *memPosts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

type memCredentials struct {
	mu      sync.Mutex
	byUser  map[string]*model.Credential
	getErr  error
	upserts int
	// blockGet makes GetByUser wait for its context.
	blockGet bool
}

func newMemCredentials(creds ...*model.Credential) *memCredentials {
	m := &memCredentials{byUser: map[string]*model.Credential{}}
	for _, c := range creds {
		m.byUser[c.UserID] = c
	}
	return m
}

func (m *memCredentials) GetByUser(ctx context.Context, userID string) (*model.Credential, error) {
	if m.blockGet {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.byUser[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCredentials) Upsert(_ context.Context, credential *model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *credential
	m.byUser[credential.UserID] = &cp
	m.upserts++
	return nil
}

func (m *memCredentials) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

// MockLinkedIn is a testify mock of the publish client.
type MockLinkedIn struct {
	mock.Mock
}

func (m *MockLinkedIn) GetUserInfo(ctx context.Context, accessToken string) (*model.LinkedInProfile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkedInProfile), args.Error(1)
}

func (m *MockLinkedIn) CreatePost(ctx context.Context, accessToken string, content repository.PostContent) (string, error) {
	args := m.Called(ctx, accessToken, content)
	return args.String(0), args.Error(1)
}

type MockOAuth struct {
	mock.Mock
}

func (m *MockOAuth) AuthURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockOAuth) Exchange(ctx context.Context, code string) (*model.TokenGrant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenGrant), args.Error(1)
}

func (m *MockOAuth) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenGrant), args.Error(1)
}

type MockPostEvents struct {
	mock.Mock
}

func (m *MockPostEvents) Publish(ctx context.Context, event model.PostEvent) error {
	return m.Called(ctx, event).Error(0)
}

func scheduledPost(id, userID string, at time.Time) *model.Post {
	return &model.Post{
		ID:           id,
		UserID:       userID,
		Content:      "content of " + id,
		Tone:         model.ToneProfessional,
		IsScheduled:  true,
		ScheduledFor: &at,
		CreatedAt:    at.Add(-time.Hour),
	}
}

func validCredential(userID string, now time.Time) *model.Credential {
	return &model.Credential{
		ID:           "cred-" + userID,
		UserID:       userID,
		AccessToken:  "token-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    now.Add(time.Hour),
	}
}
