// internal/notify/notify.go

// Package notify tells the asker that their consultation reached a terminal
// status. Like archival, notification is best-effort: a failed send is
// logged and counted, never propagated into the consultation outcome.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/config"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// SESService is the SES surface used by the notifier, extracted for mocking.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SNSService is the SNS surface used by the notifier, extracted for mocking.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Contact is where the asker can be reached. Empty fields skip the channel.
type Contact struct {
	Email string
	Phone string
}

// Notifier sends terminal-status notifications over the enabled channels.
type Notifier struct {
	config config.NotificationConfig
	email  SESService
	sms    SNSService
	logger logger.Logger
}

// NewNotifier wires the notifier. Clients for disabled channels may be nil.
func NewNotifier(cfg config.NotificationConfig, email SESService, sms SNSService, log logger.Logger) *Notifier {
	return &Notifier{config: cfg, email: email, sms: sms, logger: log}
}

var statusLines = map[models.ConsultationStatus]string{
	models.StatusDone:    "Your consultation is complete. The full report is ready.",
	models.StatusPartial: "Your consultation finished with partial results. A report is available.",
	models.StatusFailed:  "Your consultation could not gather any answers. You may want to try again later.",
}

// NotifyDone sends the terminal-status message to the asker. Non-terminal
// statuses are ignored.
func (n *Notifier) NotifyDone(ctx context.Context, contact Contact, c *models.Consultation) {
	line, ok := statusLines[c.Status]
	if !ok {
		return
	}
	subject := fmt.Sprintf("Consultation %s: %s", c.ID, c.Status)
	body := fmt.Sprintf("%s\n\nQuestion: %s\nAgents consulted: %d\n", line, c.Question, c.TotalAgentsQueried)

	if n.config.Email.Enabled && n.email != nil && contact.Email != "" {
		if err := n.sendEmail(ctx, contact.Email, subject, body); err != nil {
			n.logger.WithError(errors.NewNotificationSendFailedError("email", err)).Error(
				"email notification failed", map[string]interface{}{"consultationId": c.ID})
		}
	}

	if n.config.SMS.Enabled && n.sms != nil && contact.Phone != "" {
		if err := n.sendSMS(ctx, contact.Phone, line); err != nil {
			n.logger.WithError(errors.NewNotificationSendFailedError("sms", err)).Error(
				"sms notification failed", map[string]interface{}{"consultationId": c.ID})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
