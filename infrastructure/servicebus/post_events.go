package servicebus

import (
	"context"
	"encoding/json"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// PostEvents sends settled post outcomes to a Service Bus queue.
type PostEvents struct {
	sender messageSender
}

var _ repository.IPostEvents = (*PostEvents)(nil)

func NewPostEvents(client *azservicebus.Client, queue string) (*PostEvents, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &PostEvents{sender: sender}, nil
}

func newMessage(event model.PostEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	// the post id doubles as message id so duplicate detection on the queue
	// drops a repeated outcome for the same post and type
	messageID := event.PostID + ":" + event.Type
	subject := event.Type
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		MessageID:   &messageID,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"user_id": event.UserID,
		},
	}, nil
}

func (p *PostEvents) Publish(ctx context.Context, event model.PostEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

func (p *PostEvents) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}
