package channel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gopkg.in/gomail.v2"

	"github.com/unclebandit/shopnotify-backend/internal/config"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

type captureMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *captureMailer) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

var testEmail = config.EmailConfig{FromAddress: "shop@example.com", FromName: "Shop"}

func TestDispatchEmailSuccess(t *testing.T) {
	mailer := &captureMailer{}
	d := NewDispatcher(nil)
	d.Register(model.ChannelEmail, NewSMTPSenderWithMailer(mailer, testEmail, nil))

	res := d.Dispatch(context.Background(), Message{
		Channel: model.ChannelEmail, Recipient: "ana@example.com", Subject: "Hi", Content: "<p>Hello</p>",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.HasSuffix(res.MessageID, "@example.com>") {
		t.Fatalf("unexpected message id %q", res.MessageID)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(mailer.sent))
	}
	if got := mailer.sent[0].GetHeader("Subject"); len(got) != 1 || got[0] != "Hi" {
		t.Fatalf("unexpected subject header %v", got)
	}
}

func TestDispatchEmailFailureIsChannelError(t *testing.T) {
	mailer := &captureMailer{err: errors.New("connection refused")}
	d := NewDispatcher(nil)
	d.Register(model.ChannelEmail, NewSMTPSenderWithMailer(mailer, testEmail, nil))

	_, err := d.Send(context.Background(), Message{Channel: model.ChannelEmail, Recipient: "ana@example.com"})
	if !appErrors.IsChannel(err) {
		t.Fatalf("expected ChannelError, got %v", err)
	}
	res := d.Dispatch(context.Background(), Message{Channel: model.ChannelEmail, Recipient: "ana@example.com"})
	if res.Success || res.Error == "" {
		t.Fatalf("expected failed result, got %+v", res)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	mailer := &captureMailer{err: errors.New("timeout")}
	s := NewSMTPSenderWithMailer(mailer, testEmail, nil)

	for i := 0; i < 3; i++ {
		_, _ = s.Send(context.Background(), Message{Channel: model.ChannelEmail, Recipient: "a@example.com"})
	}
	_, err := s.Send(context.Background(), Message{Channel: model.ChannelEmail, Recipient: "a@example.com"})
	if err == nil || !strings.Contains(err.Error(), "smtp unavailable") {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestUnsupportedChannels(t *testing.T) {
	d := NewDispatcher(nil)
	for _, ch := range []model.Channel{model.ChannelSMS, model.ChannelPush} {
		_, err := d.Send(context.Background(), Message{Channel: ch, Recipient: "+15550100"})
		if !IsUnsupported(err) {
			t.Fatalf("%s: expected unsupported, got %v", ch, err)
		}
		res := d.Dispatch(context.Background(), Message{Channel: ch, Recipient: "+15550100"})
		if res.Success {
			t.Fatalf("%s: expected failure result", ch)
		}
	}
}

func TestEmptyRecipientRejected(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(model.ChannelEmail, NewLogSender(nil))
	if _, err := d.Send(context.Background(), Message{Channel: model.ChannelEmail}); !appErrors.IsChannel(err) {
		t.Fatalf("expected ChannelError, got %v", err)
	}
}

func TestNewEmailSenderFallsBackToLog(t *testing.T) {
	if _, ok := NewEmailSender(testEmail, nil).(*LogSender); !ok {
		t.Fatal("expected log transport without credentials")
	}
	withCreds := testEmail
	withCreds.SMTPHost, withCreds.SMTPUser, withCreds.SMTPPass = "smtp.example.com", "u", "p"
	if _, ok := NewEmailSender(withCreds, nil).(*SMTPSender); !ok {
		t.Fatal("expected SMTP transport with credentials")
	}
}
