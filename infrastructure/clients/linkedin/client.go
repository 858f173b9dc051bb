package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"
)

const (
	DefaultAPIBaseURL = "https://api.linkedin.com/v2"

	imageRecipe         = "urn:li:digitalmediaRecipe:feedshare-image"
	uploadMechanismKey  = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
	shareContentKey     = "com.linkedin.ugc.ShareContent"
	memberVisibilityKey = "com.linkedin.ugc.MemberNetworkVisibility"
)

// ProfileCache remembers the author profile behind an access token between publishes.
type ProfileCache interface {
	Get(ctx context.Context, accessToken string) (*model.LinkedInProfile, bool)
	Set(ctx context.Context, accessToken string, profile *model.LinkedInProfile)
}

// Client talks to the LinkedIn REST API on behalf of a member access token.
type Client struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	exec     executors
	profiles ProfileCache
}

type Option func(*Client)

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 15 * time.Second,
		exec:    newExecutors(DefaultRetryConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithRequestTimeout bounds every single HTTP attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.exec = newExecutors(cfg) }
}

func WithProfileCache(cache ProfileCache) Option {
	return func(c *Client) { c.profiles = cache }
}

var _ repository.ILinkedIn = (*Client)(nil)

// GetUserInfo calls the OIDC userinfo endpoint; it doubles as token validation.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*model.LinkedInProfile, error) {
	resp, err := run(ctx, c.exec.idempotent, func() (*response, error) {
		return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)
			return req, nil
		})
	})
	if err != nil {
		if status := statusOf(err); status != 0 {
			return nil, &AuthError{Status: status, Message: "Failed to get user info"}
		}
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	profile := &model.LinkedInProfile{}
	if err := json.Unmarshal(resp.body, profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Sub == "" {
		return nil, &AuthError{Status: resp.status, Message: "Failed to get user info"}
	}
	return profile, nil
}

func (c *Client) author(ctx context.Context, accessToken string) (*model.LinkedInProfile, error) {
	if c.profiles != nil {
		if p, ok := c.profiles.Get(ctx, accessToken); ok {
			return p, nil
		}
	}
	p, err := c.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if c.profiles != nil {
		c.profiles.Set(ctx, accessToken, p)
	}
	return p, nil
}

// CreatePost publishes content as the member behind accessToken and returns
// the id from the x-restli-id header.
func (c *Client) CreatePost(ctx context.Context, accessToken string, content repository.PostContent) (string, error) {
	profile, err := c.author(ctx, accessToken)
	if err != nil {
		return "", &APIError{Status: statusOf(err), Message: "Failed to get user info"}
	}
	authorURN := "urn:li:person:" + profile.Sub

	var asset string
	if len(content.Image) > 0 && content.ImageType != "" {
		asset, err = c.uploadImage(ctx, accessToken, authorURN, content.Image, content.ImageType)
		if err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(newUGCPost(authorURN, content.Text, asset))
	if err != nil {
		return "", &APIError{Message: err.Error()}
	}

	resp, err := run(ctx, c.exec.publish, func() (*response, error) {
		return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ugcPosts", bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)
			req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
	})
	if err != nil {
		return "", publishError(err)
	}

	postID := resp.header.Get("x-restli-id")
	logger.GetLogger().WithField("linkedin_post_id", postID).Debug("LinkedIn post created")
	return postID, nil
}

// publishError classifies a failed ugcPosts call.
func publishError(err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return &APIError{Message: err.Error()}
	}
	message := upstreamMessage(se.body)
	if model.MentionsDuplicate(message) {
		remoteID, _ := model.ExtractSharedPostID(message)
		return &DuplicateContentError{RemoteID: remoteID, Message: message}
	}
	return &APIError{Status: se.status, Message: message}
}

type errorBody struct {
	Message          string `json:"message"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Status           int    `json:"status"`
}

func upstreamMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return "Failed to create post"
}

type registerUploadRequest struct {
	RegisterUploadRequest registerUpload `json:"registerUploadRequest"`
}

type registerUpload struct {
	Recipes              []string              `json:"recipes"`
	Owner                string                `json:"owner"`
	ServiceRelationships []serviceRelationship `json:"serviceRelationships"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

func (c *Client) uploadImage(ctx context.Context, accessToken, ownerURN string, image []byte, imageType string) (string, error) {
	reqBody, err := json.Marshal(registerUploadRequest{RegisterUploadRequest: registerUpload{
		Recipes: []string{imageRecipe},
		Owner:   ownerURN,
		ServiceRelationships: []serviceRelationship{
			{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
		},
	}})
	if err != nil {
		return "", &APIError{Message: err.Error()}
	}

	resp, err := run(ctx, c.exec.idempotent, func() (*response, error) {
		return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets?action=registerUpload", bytes.NewReader(reqBody))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
	})
	if err != nil {
		return "", &APIError{Status: statusOf(err), Message: "Failed to register image upload"}
	}

	var registered registerUploadResponse
	if err := json.Unmarshal(resp.body, &registered); err != nil {
		return "", &APIError{Message: "Failed to register image upload"}
	}
	mechanism, ok := registered.Value.UploadMechanism[uploadMechanismKey]
	if !ok || mechanism.UploadURL == "" || registered.Value.Asset == "" {
		return "", &APIError{Message: "Failed to register image upload"}
	}

	_, err = run(ctx, c.exec.idempotent, func() (*response, error) {
		return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, mechanism.UploadURL, bytes.NewReader(image))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)
			req.Header.Set("Content-Type", imageType)
			return req, nil
		})
	})
	if err != nil {
		return "", &APIError{Status: statusOf(err), Message: "Failed to upload image"}
	}
	return registered.Value.Asset, nil
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type shareContent struct {
	ShareCommentary    textValue    `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type shareMedia struct {
	Status      string    `json:"status"`
	Description textValue `json:"description"`
	Media       string    `json:"media"`
}

type textValue struct {
	Text string `json:"text"`
}

func newUGCPost(authorURN, text, asset string) ugcPost {
	content := shareContent{
		ShareCommentary:    textValue{Text: text},
		ShareMediaCategory: "NONE",
	}
	if asset != "" {
		content.ShareMediaCategory = "IMAGE"
		content.Media = []shareMedia{{
			Status:      "READY",
			Description: textValue{Text: "Image shared with post"},
			Media:       asset,
		}}
	}
	return ugcPost{
		Author:          authorURN,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]shareContent{shareContentKey: content},
		Visibility:      map[string]string{memberVisibilityKey: "PUBLIC"},
	}
}
