package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/ports"
)

// Mailer hands verification emails to the delivery service over NATS instead
// of talking SMTP in-process.
type Mailer struct {
	queue   *Queue
	subject string
}

func NewMailer(queue *Queue, subject string) *Mailer {
	return &Mailer{queue: queue, subject: subject}
}

var _ ports.VerificationMailer = (*Mailer)(nil)

type verificationMessage struct {
	Email       string    `json:"email"`
	Template    string    `json:"template"`
	RequestedAt time.Time `json:"requested_at"`
}

func (m *Mailer) SendVerification(ctx context.Context, email string) error {
	payload, err := json.Marshal(verificationMessage{
		Email:       email,
		Template:    "account_verification",
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode verification message: %w", err)
	}
	return m.queue.publish(ctx, m.subject, payload)
}
