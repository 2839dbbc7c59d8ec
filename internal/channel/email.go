package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/unclebandit/shopnotify-backend/internal/config"
)

// Mailer abstracts the SMTP dial so tests can capture outgoing mail.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends email through a mailer guarded by a circuit breaker.
type SMTPSender struct {
	mailer   Mailer
	from     string
	fromName string
	domain   string
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewSMTPSender(cfg config.EmailConfig, logger *zap.Logger) *SMTPSender {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return NewSMTPSenderWithMailer(d, cfg, logger)
}

func NewSMTPSenderWithMailer(m Mailer, cfg config.EmailConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	domain := "localhost"
	if at := strings.LastIndex(cfg.FromAddress, "@"); at >= 0 && at < len(cfg.FromAddress)-1 {
		domain = cfg.FromAddress[at+1:]
	}
	return &SMTPSender{
		mailer:   m,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		domain:   domain,
		breaker:  newBreaker("smtp", logger),
		logger:   logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     1 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain)
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.Name != "" {
		m.SetAddressHeader("To", msg.Recipient, msg.Name)
	} else {
		m.SetHeader("To", msg.Recipient)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", msg.Content)

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.mailer.DialAndSend(m)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("smtp unavailable: %w", err)
		}
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

// LogSender is the disposable transport used when no SMTP credentials are
// configured outside production. It delivers nothing.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	s.logger.Info("email captured by log transport",
		zap.String("message_id", id),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.Int("content_length", len(msg.Content)))
	return id, nil
}

// NewEmailSender picks the SMTP transport when credentials exist and the log
// transport otherwise. Config validation already refuses production without
// credentials.
func NewEmailSender(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if cfg.HasCredentials() {
		return NewSMTPSender(cfg, logger)
	}
	if logger != nil {
		logger.Warn("SMTP credentials missing, using log email transport")
	}
	return NewLogSender(logger)
}
