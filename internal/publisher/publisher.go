// Package publisher provides in-process publish/subscribe for follow-on
// domain events. Handlers must be idempotent: delivery is at-least-once
// from the subscriber's perspective because commands may retry.
package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/types"
)

// Event topics published by the membership core.
const (
	TopicSubscriptionCreated  = "subscription.created"
	TopicSubscriptionRenewed  = "subscription.renewed"
	TopicSubscriptionCanceled = "subscription.canceled"
	TopicSubscriptionReplaced = "subscription.replaced"
	TopicPaymentIssueOpened   = "paymentissue.opened"
	TopicPaymentIssueResolved = "paymentissue.resolved"

	TopicEntitlementSubstitution = "entitlement.substitution_required"
)

// SubscriptionEvent is the payload for subscription lifecycle topics.
type SubscriptionEvent struct {
	SubscriptionID string `json:"subscription_id"`
	PatientID      string `json:"patient_id"`
	PracticeID     string `json:"practice_id"`
}

// PaymentIssueEvent is the payload for payment issue topics.
type PaymentIssueEvent struct {
	PaymentIssueID string              `json:"payment_issue_id"`
	ExternalID     string              `json:"external_id"`
	Vendor         types.PaymentVendor `json:"vendor"`
}

// Publisher publishes follow-on events after a command commits.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

type channelPublisher struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

// NewPublisher creates an in-process publisher backed by a buffered
// gochannel pub/sub.
func NewPublisher(log *logger.Logger) Publisher {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NopLogger{},
	)
	return &channelPublisher{pubsub: pubsub, logger: log}
}

func (p *channelPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event payload").
			Mark(ierr.ErrInternal)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("request_id", types.GetRequestID(ctx))

	if err := p.pubsub.Publish(topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish event").
			WithReportableDetails(map[string]interface{}{
				"topic": topic,
			}).
			Mark(ierr.ErrInternal)
	}

	p.logger.Debugw("published event", "topic", topic)
	return nil
}

func (p *channelPublisher) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := p.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to subscribe to topic").
			WithReportableDetails(map[string]interface{}{
				"topic": topic,
			}).
			Mark(ierr.ErrInternal)
	}
	return ch, nil
}

func (p *channelPublisher) Close() error {
	return p.pubsub.Close()
}
