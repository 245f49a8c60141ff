// Package notify defines the outbound notification boundary. The real-time
// delivery channel is external; workflow operations hand records to a Sink
// and carry on.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification is a message addressed to a single user.
type Notification struct {
	RecipientID uuid.UUID  `json:"recipient_id"`
	Message     string     `json:"message"`
	Type        string     `json:"type,omitempty"`
	Link        string     `json:"link,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Notify(ctx context.Context, n *Notification) error
}

// LogSink writes notifications to the structured log. Stands in for the
// delivery channel in deployments without one.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, n *Notification) error {
	s.logger.Info("notification",
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("type", n.Type),
		zap.String("message", n.Message),
	)
	return nil
}
