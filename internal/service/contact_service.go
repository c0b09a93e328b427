package service

import (
	"context"
	"fmt"

	"storefront/pkg/mailer"
	"storefront/prometheus"
)

// ContactMessage is a validated contact form submission
type ContactMessage struct {
	SenderName  string
	SenderEmail string
	Message     string
}

type ContactService struct {
	mailer    mailer.Mailer
	from      string
	recipient string
}

func NewContactService(m mailer.Mailer, from, recipient string) *ContactService {
	return &ContactService{mailer: m, from: from, recipient: recipient}
}

// Send forwards the message to the shop owner. Delivery errors are returned
// to the caller, not swallowed.
func (s *ContactService) Send(ctx context.Context, msg ContactMessage) error {
	err := s.mailer.Send(ctx, mailer.Message{
		From:    s.from,
		To:      []string{s.recipient},
		ReplyTo: msg.SenderEmail,
		Subject: fmt.Sprintf("New Message from %s %s", msg.SenderName, msg.SenderEmail),
		Body:    msg.Message,
	})
	if err != nil {
		prometheus.RecordContactMessage("failed")
		return fmt.Errorf("contact message from %s: %w", msg.SenderEmail, err)
	}
	prometheus.RecordContactMessage("sent")
	return nil
}
