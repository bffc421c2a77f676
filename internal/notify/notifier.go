// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"dealerdesk/internal/common/config"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

const sendTimeout = 10 * time.Second

// EmailSender is the slice of the SES API the notifier needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the slice of the SNS API the notifier needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier tells the sales team about qualified leads and new bookings
// over email and SMS. Sends run on their own goroutine with a bounded
// timeout; a notification failure is logged and dropped, never
// surfaced to the customer.
type Notifier struct {
	email EmailSender
	sms   SMSSender
	cfg   config.NotificationConfig
	log   logger.Logger
}

func New(email EmailSender, sms SMSSender, cfg config.NotificationConfig, log logger.Logger) *Notifier {
	return &Notifier{email: email, sms: sms, cfg: cfg, log: log}
}

// LeadQualified implements the orchestrator's lead sink.
func (n *Notifier) LeadQualified(_ context.Context, sessionID string, lead models.Lead) {
	subject := "New qualified lead"
	body := formatLead(sessionID, lead)
	go n.send(subject, body)
}

// TestDriveBooked announces a new test drive booking.
func (n *Notifier) TestDriveBooked(td models.TestDrive) {
	subject := "New test drive booking"
	body := fmt.Sprintf("Test drive booked:\nCustomer: %s\nPhone: %s\nCar: %s\nWhen: %s %s",
		td.CustomerName, td.Phone, td.CarModel, td.PreferredDate, td.PreferredTime)
	go n.send(subject, body)
}

// ServiceRequested announces a new workshop request.
func (n *Notifier) ServiceRequested(sr models.ServiceRequest) {
	subject := "New service request"
	body := fmt.Sprintf("Service request:\nCustomer: %s\nPhone: %s\nCar: %s\nService: %s\n%s",
		sr.CustomerName, sr.Phone, sr.CarModel, sr.ServiceType, sr.Description)
	go n.send(subject, body)
}

func (n *Notifier) send(subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if n.cfg.Email.Enabled && n.email != nil {
		n.sendEmail(ctx, subject, body)
	}
	if n.cfg.SMS.Enabled && n.sms != nil {
		n.sendSMS(ctx, subject+": "+firstLine(body))
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.Email.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	if err != nil {
		n.log.WithError(err).Warn("email notification failed", map[string]interface{}{
			"subject": subject,
		})
		return
	}
	n.log.Info("email notification sent", map[string]interface{}{"subject": subject})
}

func (n *Notifier) sendSMS(ctx context.Context, message string) {
	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(n.cfg.SMS.ToNumber),
		Message:     awssdk.String(message),
	}
	if n.cfg.SMS.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(n.cfg.SMS.SenderID),
			},
		}
	}
	if _, err := n.sms.Publish(ctx, input); err != nil {
		n.log.WithError(err).Warn("sms notification failed", nil)
		return
	}
	n.log.Info("sms notification sent", nil)
}

func formatLead(sessionID string, lead models.Lead) string {
	var b strings.Builder
	b.WriteString("A chat visitor just became a qualified lead.\n")
	fmt.Fprintf(&b, "Session: %s\n", sessionID)
	if lead.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", lead.Phone)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	}
	if lead.Budget != nil {
		if lead.Budget.IsRange() {
			fmt.Fprintf(&b, "Budget: PKR %.0f to %.0f\n", lead.Budget.Min, lead.Budget.Max)
		} else {
			fmt.Fprintf(&b, "Budget: PKR %.0f\n", lead.Budget.Max)
		}
	}
	if len(lead.Interest) > 0 {
		fmt.Fprintf(&b, "Interested in: %s\n", strings.Join(lead.Interest, ", "))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
