package dto

import "linkedpost/domain/model"

// SharePostRequest is the body of POST /api/linkedin/post. It binds from either
// multipart form fields or JSON.
type SharePostRequest struct {
	Content      string   `form:"content"      json:"content"`
	Topic        string   `form:"topic"        json:"topic"`
	Tone         string   `form:"tone"         json:"tone"`
	Keywords     []string `form:"keywords"     json:"keywords"`
	IsScheduled  bool     `form:"isScheduled"  json:"isScheduled"`
	ScheduledFor string   `form:"scheduledFor" json:"scheduledFor"`
	Timezone     string   `form:"timezone"     json:"timezone"`
}

type ScheduledTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type SharePostResponse struct {
	Message        string         `json:"message"`
	Post           *model.Post    `json:"post"`
	LinkedInPostID string         `json:"linkedinPostId,omitempty"`
	Status         string         `json:"status,omitempty"`
	ScheduledTime  *ScheduledTime `json:"scheduledTime,omitempty"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalPosts  int64 `json:"totalPosts"`
	HasMore     bool  `json:"hasMore"`
}

type PostListResponse struct {
	Posts      []*model.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

type LinkedInStatusResponse struct {
	IsConnected bool                   `json:"isConnected"`
	IsExpired   *bool                  `json:"isExpired"`
	Profile     *model.LinkedInProfile `json:"profile,omitempty"`
}
