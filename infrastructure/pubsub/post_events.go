package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// PostEvents publishes settled post outcomes to a Pub/Sub topic.
type PostEvents struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

var _ repository.IPostEvents = (*PostEvents)(nil)

// NewPostEvents resolves topicID, creating the topic if it does not exist yet.
func NewPostEvents(ctx context.Context, client *pubsub.Client, topicID string) (*PostEvents, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", topicID).Info("Topic doesn't exist - creating it")
		if topic, err = client.CreateTopic(ctx, topicID); err != nil {
			return nil, err
		}
	}
	return &PostEvents{client: client, topic: topic}, nil
}

func (p *PostEvents) Publish(ctx context.Context, event model.PostEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":    event.Type,
			"post_id": event.PostID,
			"user_id": event.UserID,
		},
	}
	serverID, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	logger.GetLogger().WithField("server_id", serverID).WithField("post_id", event.PostID).Debug("Post event published")
	return nil
}

// Close flushes pending messages.
func (p *PostEvents) Close() {
	p.topic.Stop()
}
