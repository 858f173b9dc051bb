package usecase

import (
	"errors"

	"linkedpost/domain/model"
	"linkedpost/infrastructure/clients/linkedin"
)

// ReconcileDuplicate reports whether err is LinkedIn refusing content it
// already holds, together with the share id the rejection points at ("" when
// the message carries none).
func ReconcileDuplicate(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dup *linkedin.DuplicateContentError
	if errors.As(err, &dup) {
		if dup.RemoteID != "" {
			return dup.RemoteID, true
		}
		id, _ := model.ExtractSharedPostID(dup.Message)
		return id, true
	}
	msg := err.Error()
	if !model.MentionsDuplicate(msg) {
		return "", false
	}
	id, _ := model.ExtractSharedPostID(msg)
	return id, true
}

// duplicateRemoteID is the linkedinPostId stored for a duplicate rejection.
func duplicateRemoteID(remoteID string) string {
	if remoteID == "" {
		return model.DuplicatePostSentinel
	}
	return remoteID
}
