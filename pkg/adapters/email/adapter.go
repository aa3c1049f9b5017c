// Package email provides the send_email adapter. Delivery goes through a
// Sender collaborator; test mode never hands a message to the sender.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/autoflowhq/autoflow/pkg/condition"
	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/protocol"
)

var ErrMissingRecipient = errors.New("missing 'to' or 'to_path' in configuration")

// Message is one outbound email handed to the Sender.
type Message struct {
	TenantID string
	To       string
	Subject  string
	Body     string
}

// Sender delivers messages. The production implementation lives with the
// platform's mail gateway; the engine only depends on the interface.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records sends in the log without delivering anything. Used in
// local development and as the default when no gateway is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "Email send (log sender)", "to", msg.To, "subject", msg.Subject)

	return nil
}

type Adapter struct {
	sender  Sender
	to      string
	toPath  string
	subject string
	body    string
}

func NewAdapter(sender Sender, config map[string]any) (*Adapter, error) {
	to, _ := config["to"].(string)
	toPath, _ := config["to_path"].(string)

	if to == "" && toPath == "" {
		return nil, ErrMissingRecipient
	}

	subject, _ := config["subject"].(string)
	body, _ := config["body"].(string)

	return &Adapter{
		sender:  sender,
		to:      to,
		toPath:  toPath,
		subject: subject,
		body:    body,
	}, nil
}

func (a *Adapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "send_email_adapter")

	to := a.to
	if to == "" {
		if value := condition.Lookup(req.Context, a.toPath); condition.IsDefined(value) {
			to, _ = value.(string)
		}
	}

	if to == "" {
		return nil, fmt.Errorf("%w: path %q resolved empty", ErrMissingRecipient, a.toPath)
	}

	if req.Mode == models.ModeTest {
		logger.InfoContext(ctx, "Simulating email send", "to", to)

		return map[string]any{
			"email_to":  to,
			"simulated": true,
		}, nil
	}

	msg := Message{
		TenantID: req.TenantID,
		To:       to,
		Subject:  a.subject,
		Body:     a.body,
	}

	if err := a.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	logger.InfoContext(ctx, "Sent email", "to", to)

	return map[string]any{"email_to": to}, nil
}
