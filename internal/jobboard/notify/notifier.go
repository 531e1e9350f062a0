// Package notify delivers application events: every event to an SNS topic,
// and accept/reject decisions to the applicant by SES email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"job-board/internal/common/logger"
	"job-board/internal/common/metrics"
	"job-board/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	channelEmail  = "email"
	channelEvents = "events"

	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeSkipped  = "skipped"
	eventTypeHeader = "eventType"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	config    *Config
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
	inflight  sync.WaitGroup
}

// NewNotifier builds the notifier. A nil client disables its channel.
func NewNotifier(cfg *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// Notify sends evt on every enabled channel in the background and returns
// at once. Delivery keeps the caller's values but not its cancellation, is
// bounded by the configured timeout, and never reports an error back.
func (n *Notifier) Notify(ctx context.Context, evt models.ApplicationEvent) {
	ctx = context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		n.deliver(ctx, evt)
	}()
}

// Wait blocks until every started delivery has finished.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

func (n *Notifier) deliver(ctx context.Context, evt models.ApplicationEvent) {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	fields := map[string]interface{}{
		"eventType":     string(evt.Type),
		"applicationId": evt.ApplicationID,
		"jobId":         evt.JobID,
	}

	if n.config.EventsEnabled && n.snsClient != nil {
		if err := n.publish(ctx, evt); err != nil {
			metrics.NotificationsSent.WithLabelValues(channelEvents, outcomeFailed).Inc()
			n.logger.WithError(err).Error("event publish failed", fields)
		} else {
			metrics.NotificationsSent.WithLabelValues(channelEvents, outcomeSent).Inc()
		}
	}

	if !n.config.EmailEnabled || n.sesClient == nil {
		return
	}
	tmpl, ok := emailTemplates[evt.To]
	if !ok || evt.Type != models.EventApplicationStatusChanged {
		return
	}
	if evt.ApplicantMail == "" {
		metrics.NotificationsSent.WithLabelValues(channelEmail, outcomeSkipped).Inc()
		n.logger.Warn("applicant has no email address", fields)
		return
	}
	if err := n.sendEmail(ctx, evt, tmpl); err != nil {
		metrics.NotificationsSent.WithLabelValues(channelEmail, outcomeFailed).Inc()
		n.logger.WithError(err).Error("email send failed", fields)
		return
	}
	metrics.NotificationsSent.WithLabelValues(channelEmail, outcomeSent).Inc()
	n.logger.Info("decision email sent", fields)
}

func (n *Notifier) publish(ctx context.Context, evt models.ApplicationEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			eventTypeHeader: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.Type)),
			},
		},
	})
	return err
}

func (n *Notifier) sendEmail(ctx context.Context, evt models.ApplicationEvent, tmpl emailTemplate) error {
	subject, body, err := render(tmpl, evt)
	if err != nil {
		return err
	}
	_, err = n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{evt.ApplicantMail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}
