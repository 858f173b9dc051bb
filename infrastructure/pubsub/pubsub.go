package pubsub

import (
	"context"
	"errors"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewPubSub creates a Pub/Sub client; credentialsFile is optional and falls
// back to application default credentials.
func NewPubSub(ctx context.Context, projectID, credentialsFile string, opts ...option.ClientOption) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id is empty")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return pubsub.NewClient(ctx, projectID, opts...)
}
