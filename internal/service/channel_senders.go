package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
)

// ChannelSender delivers one notification to one recipient over a concrete
// channel (push, email, SMS).
type ChannelSender interface {
	Name() string
	Send(ctx context.Context, user *models.User, n *models.Notification) error
}

// SMTPConfig holds the email channel settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// EmailSender delivers notifications over SMTP with implicit TLS.
type EmailSender struct {
	config SMTPConfig
}

// NewEmailSender constructs the email channel.
func NewEmailSender(config SMTPConfig) *EmailSender {
	return &EmailSender{config: config}
}

// Name implements ChannelSender.
func (e *EmailSender) Name() string { return "email" }

// Send implements ChannelSender.
func (e *EmailSender) Send(_ context.Context, user *models.User, n *models.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", e.config.From) +
			fmt.Sprintf("To: %s\r\n", user.Email) +
			fmt.Sprintf("Subject: %s\r\n", n.Title) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			n.Body,
	)

	serverAddr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)

	// Implicit TLS for port 465
	tlsConfig := &tls.Config{ServerName: e.config.Host}
	conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		return fmt.Errorf("open smtp client: %w", err)
	}
	defer client.Quit() //nolint:errcheck

	if e.config.User != "" {
		auth := smtp.PlainAuth("", e.config.User, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(e.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(user.Email); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

// PushSender simulates a mobile push gateway. Deliveries are logged; a real
// FCM integration would plug in behind the same interface.
type PushSender struct {
	logger *zap.Logger
}

// NewPushSender constructs the push channel.
func NewPushSender(logger *zap.Logger) *PushSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushSender{logger: logger}
}

// Name implements ChannelSender.
func (p *PushSender) Name() string { return "push" }

// Send implements ChannelSender.
func (p *PushSender) Send(_ context.Context, user *models.User, n *models.Notification) error {
	if user.PushToken == "" {
		return fmt.Errorf("user %s has no registered device token", user.ID)
	}
	p.logger.Info("push notification delivered",
		zap.String("user_id", user.ID),
		zap.String("notification_id", n.ID),
		zap.String("title", n.Title))
	return nil
}

// SMSSender simulates an SMS gateway. Deliveries are logged.
type SMSSender struct {
	logger *zap.Logger
}

// NewSMSSender constructs the SMS channel.
func NewSMSSender(logger *zap.Logger) *SMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMSSender{logger: logger}
}

// Name implements ChannelSender.
func (s *SMSSender) Name() string { return "sms" }

// Send implements ChannelSender.
func (s *SMSSender) Send(_ context.Context, user *models.User, n *models.Notification) error {
	if user.Phone == "" {
		return fmt.Errorf("user %s has no phone number", user.ID)
	}
	s.logger.Info("sms notification delivered",
		zap.String("user_id", user.ID),
		zap.String("notification_id", n.ID),
		zap.String("phone", user.Phone))
	return nil
}
