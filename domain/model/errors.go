package model

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrContentRequired  = errors.New("Content is required and cannot be empty")
	ErrContentTooLong   = errors.New("Post cannot be more than 3000 characters")
	ErrInvalidTone      = errors.New("unsupported tone")
	ErrTimezoneRequired = errors.New("Timezone is required for scheduling")
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrScheduleInvalid  = errors.New("invalid scheduledFor")
	ErrScheduleInPast   = errors.New("Scheduled date must be in the future")
	ErrScheduleTooSoon  = errors.New("Please schedule at least 5 minutes in advance to ensure proper processing")
	ErrNotConnected     = errors.New("LinkedIn not connected")
	ErrTokenExpired     = errors.New("LinkedIn token has expired. Please reconnect your account.")
	ErrLinkedInAuth     = errors.New("LinkedIn authentication failed. Please reconnect your LinkedIn account.")

	ErrAuthorizationDenied = errors.New("Authorization denied")
	ErrInvalidState        = errors.New("Invalid state parameter")
	ErrMissingCode         = errors.New("No authorization code received")
)
