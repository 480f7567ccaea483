package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/case-workflow/internal/application/port"
	"go.uber.org/zap"
)

// MessageSender is the part of the Lark IM API the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier implements port.CaseNotifier with a Lark text message
// addressed by email.
type Notifier struct {
	sender    MessageSender
	recipient string
	logger    *zap.Logger
}

// NewNotifier creates a new-case notifier for a single recipient email
func NewNotifier(sender MessageSender, recipient string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		recipient: recipient,
		logger:    logger,
	}
}

// NotifyNewCase sends the new-case message
func (n *Notifier) NotifyNewCase(ctx context.Context, notice port.NewCaseNotice) error {
	if n.recipient == "" {
		return fmt.Errorf("notification recipient is not configured")
	}
	if notice.Case == nil {
		return fmt.Errorf("notice has no case")
	}

	content, err := json.Marshal(map[string]string{"text": FormatNewCase(notice)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "email", n.recipient, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to send new case notification: %w", err)
	}

	n.logger.Info("New case notification sent",
		zap.Int64("case_id", notice.Case.ID),
		zap.String("message_id", messageID))
	return nil
}

// FormatNewCase renders the message body
func FormatNewCase(notice port.NewCaseNotice) string {
	c := notice.Case

	var b strings.Builder
	b.WriteString(notice.Subject)
	b.WriteString("\n\nUm novo caso foi registrado no sistema.\n\n")
	fmt.Fprintf(&b, "- Número: %d\n", c.ID)
	fmt.Fprintf(&b, "- Título: %s\n", c.Title)
	fmt.Fprintf(&b, "- Cliente: %s\n", notice.ClientName)
	fmt.Fprintf(&b, "- Produto: %s\n", notice.ProductName)
	fmt.Fprintf(&b, "- Data de Entrada: %s\n", c.EntryDate.Format("02/01/2006"))
	if notice.Link != "" {
		fmt.Fprintf(&b, "\nAcesse: %s\n", notice.Link)
	}
	return b.String()
}

var _ port.CaseNotifier = (*Notifier)(nil)
