// Package channel delivers one rendered message over one medium.
package channel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

// ErrUnsupported is returned by channels without a transport yet.
var ErrUnsupported = errors.New("channel transport not implemented")

// Message is one addressed, rendered notification.
type Message struct {
	Channel   model.Channel
	Recipient string
	Name      string
	Subject   string
	Content   string
}

// Sender delivers a message and returns the transport's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Result mirrors what callers persist on the notification row.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher routes messages to the sender registered for their channel.
type Dispatcher struct {
	senders map[model.Channel]Sender
	logger  *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		senders: map[model.Channel]Sender{
			model.ChannelSMS:  UnsupportedSender{Channel: model.ChannelSMS},
			model.ChannelPush: UnsupportedSender{Channel: model.ChannelPush},
		},
		logger: logger,
	}
}

// Register installs or replaces the sender for ch.
func (d *Dispatcher) Register(ch model.Channel, s Sender) {
	d.senders[ch] = s
}

// Send never panics on an unknown channel; every failure comes back as a
// ChannelError so the caller can record it and continue.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (string, error) {
	s, ok := d.senders[msg.Channel]
	if !ok {
		return "", appErrors.NewChannelError(msg.Channel.String(), fmt.Errorf("no sender for channel %q", msg.Channel))
	}
	if msg.Recipient == "" {
		return "", appErrors.NewChannelError(msg.Channel.String(), errors.New("empty recipient"))
	}
	id, err := s.Send(ctx, msg)
	if err != nil {
		d.logger.Warn("dispatch failed",
			zap.String("channel", msg.Channel.String()),
			zap.String("recipient", msg.Recipient),
			zap.Error(err))
		return "", appErrors.NewChannelError(msg.Channel.String(), err)
	}
	return id, nil
}

// Dispatch is Send folded into a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	id, err := d.Send(ctx, msg)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, MessageID: id}
}

// IsUnsupported reports whether err came from a channel with no transport.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// UnsupportedSender is the contract stub for SMS and push.
type UnsupportedSender struct {
	Channel model.Channel
}

func (s UnsupportedSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", fmt.Errorf("%s: %w", s.Channel, ErrUnsupported)
}
