package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Tone string

const (
	ToneProfessional      Tone = "professional"
	ToneCasual            Tone = "casual"
	ToneThoughtLeadership Tone = "thought-leadership"
	ToneStorytelling      Tone = "storytelling"
)

// Valid reports whether t is one of the supported tones.
func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneCasual, ToneThoughtLeadership, ToneStorytelling:
		return true
	}
	return false
}

const (
	MaxContentLength = 3000
	MinScheduleLead  = 5 * time.Minute

	PostStatusDuplicate   = "duplicate"
	DuplicatePostSentinel = "duplicate-post"
)

type PostMetrics struct {
	Likes    int `json:"likes"    bson:"likes"`
	Comments int `json:"comments" bson:"comments"`
	Shares   int `json:"shares"   bson:"shares"`
}

// Post is a unit of content a user intends to publish on LinkedIn.
// ScheduledFor and PublishedAt are always stored in UTC; Timezone is only used
// to interpret user input.
type Post struct {
	ID             string      `json:"id"                       bson:"_id"`
	UserID         string      `json:"user"                     bson:"user"`
	Content        string      `json:"content"                  bson:"content"`
	Topic          string      `json:"topic"                    bson:"topic"`
	Tone           Tone        `json:"tone"                     bson:"tone"`
	Keywords       []string    `json:"keywords"                 bson:"keywords"`
	CreatedAt      time.Time   `json:"createdAt"                bson:"createdAt"`
	IsScheduled    bool        `json:"isScheduled"              bson:"isScheduled"`
	ScheduledFor   *time.Time  `json:"scheduledFor,omitempty"   bson:"scheduledFor,omitempty"`
	Timezone       string      `json:"timezone,omitempty"       bson:"timezone,omitempty"`
	IsPublished    bool        `json:"isPublished"              bson:"isPublished"`
	PublishedAt    *time.Time  `json:"publishedAt,omitempty"    bson:"publishedAt,omitempty"`
	LinkedInPostID *string     `json:"linkedinPostId,omitempty" bson:"linkedinPostId,omitempty"`
	Status         *string     `json:"status,omitempty"         bson:"status,omitempty"`
	Error          *string     `json:"error,omitempty"          bson:"error,omitempty"`
	Metrics        PostMetrics `json:"metrics"                  bson:"metrics"`
}

// IsDue reports whether the sweep should attempt p at now.
func (p *Post) IsDue(now time.Time) bool {
	if p == nil || !p.IsScheduled || p.IsPublished || p.ScheduledFor == nil {
		return false
	}
	return !p.ScheduledFor.After(now)
}

// Validate checks the content and tone constraints shared by every creation path.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Content) == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(p.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if p.Tone == "" {
		p.Tone = ToneProfessional
	}
	if !p.Tone.Valid() {
		return ErrInvalidTone
	}
	return nil
}

// ValidateSchedule enforces the minimum lead time for a post scheduled at the
// creation instant now. It is not re-checked by the sweep.
func ValidateSchedule(scheduledFor, now time.Time) error {
	if !scheduledFor.After(now) {
		return ErrScheduleInPast
	}
	if scheduledFor.Before(now.Add(MinScheduleLead)) {
		return ErrScheduleTooSoon
	}
	return nil
}

// PublishOutcome is the write-back applied to a post once LinkedIn accepted
// (or already had) its content.
type PublishOutcome struct {
	LinkedInPostID string
	PublishedAt    time.Time
	Status         string
}

type PostFilter struct {
	Page          int
	Limit         int
	ScheduledOnly bool
	Now           time.Time
}

// Normalize applies paging defaults.
func (f PostFilter) Normalize() PostFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return f
}

func (f PostFilter) Skip() int64 { return int64((f.Page - 1) * f.Limit) }
