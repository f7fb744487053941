package notifications

import (
	"context"
	"sync"
	"time"

	"hostly/internal/shared/metrics"
	"hostly/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Sender delivers one rendered message over some channel
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier accepts messages for asynchronous delivery. Dispatch never
// blocks on delivery and never reports delivery failures to the caller.
type Notifier interface {
	Dispatch(ctx context.Context, msgs ...Message)
}

// Dispatcher is the fire and forget Notifier used by the services
type Dispatcher struct {
	sender  Sender
	log     *logger.Logger
	clock   clockwork.Clock
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, log *logger.Logger, clock clockwork.Clock, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		log:     log.WithComponent("notifications"),
		clock:   clock,
		timeout: timeout,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...Message) {
	// Delivery outlives the request that triggered it
	base := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		if msg.IsExpired(d.clock.Now()) {
			metrics.NotificationsSent.WithLabelValues(string(msg.Type), "expired").Inc()
			continue
		}
		d.wg.Add(1)
		go func(msg Message) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if err := d.sender.Send(sendCtx, msg); err != nil {
				metrics.NotificationsSent.WithLabelValues(string(msg.Type), "failed").Inc()
				d.log.ErrorWithContext(sendCtx, "Notification delivery failed", err, map[string]interface{}{
					"notification_id": msg.ID.String(),
					"type":            string(msg.Type),
					"recipient":       msg.RecipientEmail,
				})
				return
			}
			metrics.NotificationsSent.WithLabelValues(string(msg.Type), "sent").Inc()
		}(msg)
	}
}

// Wait blocks until every in flight delivery has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSender writes messages to the structured log instead of delivering them
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("notifications")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "Notification",
		"notification_id", msg.ID.String(),
		"type", string(msg.Type),
		"recipient", msg.RecipientEmail,
		"subject", msg.Subject,
	)
	return nil
}

// RecordingSender keeps every message it is given
type RecordingSender struct {
	mu       sync.Mutex
	messages []Message
}

func (s *RecordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return nil
}

func (s *RecordingSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// OfType returns the recorded messages of one type
func (s *RecordingSender) OfType(notType NotificationType) []Message {
	var out []Message
	for _, m := range s.Messages() {
		if m.Type == notType {
			out = append(out, m)
		}
	}
	return out
}
