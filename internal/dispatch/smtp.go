package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// SMTPConfig configures the outbound email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// MessagesPerSecond caps outbound throughput across all workers sharing
	// this courier. Zero disables the limiter.
	MessagesPerSecond float64
}

// SMTPCourier delivers notifications as email with the document attached.
type SMTPCourier struct {
	client  *mail.Client
	from    string
	limiter *rate.Limiter
}

// NewSMTPCourier connects the courier configuration to a go-mail client.
func NewSMTPCourier(cfg SMTPConfig) (*SMTPCourier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), 1)
	}

	return &SMTPCourier{client: client, from: cfg.From, limiter: limiter}, nil
}

// Send composes and delivers one email. The limiter wait counts against the
// caller's per-send timeout.
func (c *SMTPCourier) Send(ctx context.Context, n Notification) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	msg := mail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	if n.AttachmentPath != "" {
		msg.AttachFile(n.AttachmentPath, mail.WithFileName(n.AttachmentName))
	}

	if err := c.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", n.To, err)
	}

	return nil
}
