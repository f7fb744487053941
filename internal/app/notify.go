package app

import (
	"fmt"

	"hostly/internal/notifications"
	"hostly/internal/shared/config"
	"hostly/pkg/logger"
)

const (
	NotifyKafka = "kafka"
	NotifySMTP  = "smtp"
	NotifyLog   = "log"
)

// NewSender picks the outbound channel for notifications. The returned
// close func is never nil.
func NewSender(cfg *config.Config, log *logger.Logger) (notifications.Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.NotifyDriver {
	case NotifyKafka:
		sender, err := notifications.NewKafkaSender(notifications.DefaultKafkaProducerConfig(cfg.Kafka), log)
		if err != nil {
			return nil, noop, err
		}
		return sender, sender.Close, nil

	case NotifySMTP:
		sender, err := notifications.NewMailSender(cfg.Email)
		if err != nil {
			return nil, noop, err
		}
		return sender, noop, nil

	case NotifyLog, "":
		return notifications.NewLogSender(log), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown NOTIFY_DRIVER %q", cfg.NotifyDriver)
	}
}

// DeliverySender is what the Kafka consumer hands messages to: SMTP when
// configured, the log otherwise
func DeliverySender(cfg *config.Config, log *logger.Logger) notifications.Sender {
	if cfg.Email.SMTPHost != "" {
		sender, err := notifications.NewMailSender(cfg.Email)
		if err == nil {
			return sender
		}
		log.Warn("SMTP unavailable, consumer will log notifications", "error", err)
	}
	return notifications.NewLogSender(log)
}
