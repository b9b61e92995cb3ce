package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessagePublisher is satisfied by aws.SNSClient.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

// SNSLeadNotifier alerts sales when a prospect is shown the trial CTA.
type SNSLeadNotifier struct {
	publisher MessagePublisher
	topicARN  string
}

func NewSNSLeadNotifier(publisher MessagePublisher, topicARN string) *SNSLeadNotifier {
	return &SNSLeadNotifier{publisher: publisher, topicARN: topicARN}
}

func (n *SNSLeadNotifier) NotifyTrialCTA(ctx context.Context, alert LeadAlert) error {
	body, err := json.Marshal(map[string]string{
		"type":           "trial_cta_shown",
		"demoId":         alert.DemoID,
		"demoName":       alert.DemoName,
		"conversationId": alert.ConversationID,
		"requestId":      alert.RequestID,
	})
	if err != nil {
		return err
	}

	subject := "Trial CTA shown"
	if alert.DemoName != "" {
		subject = fmt.Sprintf("Trial CTA shown: %s", alert.DemoName)
	}
	_, err = n.publisher.PublishMessage(ctx, n.topicARN, subject, string(body), map[string]string{
		"event": "trial_cta_shown",
	})
	return err
}
