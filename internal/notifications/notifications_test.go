package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hostly/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func buildOffer(t *testing.T) Message {
	t.Helper()
	msg, err := NewNotificationBuilder().
		WithType(NotificationTypeWaitlistSpotAvailable).
		WithRecipient("guest@example.com", "Guest").
		WithWaitlistContext(uuid.New()).
		WithTemplateData(map[string]interface{}{
			"event_title": "Rooftop Jazz",
			"seat_count":  2,
			"expires_at":  "2026-01-01T12:00:00Z",
			"offer_url":   "http://localhost/waitlist/x/redeem?token=abc",
		}).
		Build()
	require.NoError(t, err)
	return msg
}

func TestRender_AllTypesRegistered(t *testing.T) {
	for notType := range templateSources {
		subject, _, err := Render(notType, map[string]interface{}{"event_title": "Show"})
		require.NoError(t, err, notType)
		assert.NotEmpty(t, subject, notType)
	}

	_, _, err := Render(NotificationType("UNKNOWN"), nil)
	assert.Error(t, err)
}

func TestBuilder_RendersOfferTemplate(t *testing.T) {
	msg := buildOffer(t)

	assert.Equal(t, "Seats available for Rooftop Jazz", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Guest,")
	assert.Contains(t, msg.Body, "2 seat(s)")
	assert.Contains(t, msg.Body, "redeem?token=abc")
	assert.Equal(t, NotificationPriorityHigh, msg.Priority)
	assert.NotNil(t, msg.WaitlistEntryID)
}

func TestBuilder_RequiresRecipient(t *testing.T) {
	_, err := NewNotificationBuilder().WithType(NotificationTypeBookingPending).Build()
	assert.Error(t, err)
}

func TestOutbox_FlushOnlyByOwner(t *testing.T) {
	sender := &RecordingSender{}
	d := NewDispatcher(sender, logger.Discard(), clockwork.NewRealClock(), time.Second)

	ctx, outer := WithOutbox(context.Background())
	innerCtx, inner := WithOutbox(ctx)
	assert.True(t, Enqueue(innerCtx, buildOffer(t)))

	inner.Flush(innerCtx, d)
	d.Wait()
	assert.Empty(t, sender.Messages())
	assert.Len(t, outer.Pending(), 1)

	outer.Flush(ctx, d)
	d.Wait()
	assert.Len(t, sender.Messages(), 1)
	assert.Empty(t, outer.Pending())
}

func TestOutbox_DiscardDropsMessages(t *testing.T) {
	sender := &RecordingSender{}
	d := NewDispatcher(sender, logger.Discard(), clockwork.NewRealClock(), time.Second)

	ctx, ob := WithOutbox(context.Background())
	Enqueue(ctx, buildOffer(t))
	ob.Discard()
	ob.Flush(ctx, d)
	d.Wait()

	assert.Empty(t, sender.Messages())
}

func TestEnqueue_WithoutOutbox(t *testing.T) {
	assert.False(t, Enqueue(context.Background(), buildOffer(t)))
}

type failingSender struct{}

func (failingSender) Send(context.Context, Message) error { return errors.New("smtp down") }

func TestDispatcher_FailuresDoNotPropagate(t *testing.T) {
	d := NewDispatcher(failingSender{}, logger.Discard(), clockwork.NewRealClock(), time.Second)
	d.Dispatch(context.Background(), buildOffer(t), buildOffer(t))
	d.Wait()
}

func TestDispatcher_SkipsExpiredMessages(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sender := &RecordingSender{}
	d := NewDispatcher(sender, logger.Discard(), clock, time.Second)

	msg := buildOffer(t)
	past := clock.Now().Add(-time.Minute)
	msg.ExpiresAt = &past

	d.Dispatch(context.Background(), msg)
	d.Wait()
	assert.Empty(t, sender.Messages())
}

func TestDispatcher_SurvivesCancelledCaller(t *testing.T) {
	sender := &RecordingSender{}
	d := NewDispatcher(sender, logger.Discard(), clockwork.NewRealClock(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, buildOffer(t))
	d.Wait()
	assert.Len(t, sender.Messages(), 1)
}

func TestKafkaSender_PublishesJSONKeyedByRecipient(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded Message
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded.RecipientEmail != "guest@example.com" {
			return errors.New("unexpected recipient " + decoded.RecipientEmail)
		}
		return nil
	})

	sender := NewKafkaSenderWithProducer(producer, "hostly-notifications", logger.Discard())
	require.NoError(t, sender.Send(context.Background(), buildOffer(t)))
	require.NoError(t, sender.Close())
}

func TestKafkaSender_PropagatesBrokerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sender := NewKafkaSenderWithProducer(producer, "hostly-notifications", logger.Discard())
	err := sender.Send(context.Background(), buildOffer(t))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sender.Close())
}

func TestKafkaProducerConfig_Idempotent(t *testing.T) {
	cfg := &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "t",
		RetryMax:         3,
		Timeout:          time.Second,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
	sc := cfg.SaramaConfig()
	assert.Equal(t, 1, sc.Net.MaxOpenRequests)
	assert.True(t, sc.Producer.Return.Successes)
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakySender) Send(context.Context, Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary")
	}
	return nil
}

func TestConsumerProcessMessage_RetriesThenSucceeds(t *testing.T) {
	sender := &flakySender{failures: 2}
	h := NewConsumerGroupHandler(sender, clockwork.NewRealClock(), 3, time.Millisecond, logger.Discard())

	payload, err := json.Marshal(buildOffer(t))
	require.NoError(t, err)

	err = h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: payload})
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
}

func TestConsumerProcessMessage_GivesUp(t *testing.T) {
	sender := &flakySender{failures: 10}
	h := NewConsumerGroupHandler(sender, clockwork.NewRealClock(), 2, time.Millisecond, logger.Discard())

	payload, err := json.Marshal(buildOffer(t))
	require.NoError(t, err)

	err = h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: payload})
	assert.Error(t, err)
	assert.Equal(t, 3, sender.calls)
}

func TestConsumerProcessMessage_SkipsExpiredAndGarbage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sender := &flakySender{}
	h := NewConsumerGroupHandler(sender, clock, 3, time.Millisecond, logger.Discard())

	msg := buildOffer(t)
	past := clock.Now().Add(-time.Hour)
	msg.ExpiresAt = &past
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	require.NoError(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: payload}))
	assert.Equal(t, 0, sender.calls)

	assert.Error(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
}

type captureMailClient struct {
	sent []*mail.Msg
	err  error
}

func (c *captureMailClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	c.sent = append(c.sent, messages...)
	return c.err
}

func TestMailSender_BuildsPlainTextMessage(t *testing.T) {
	client := &captureMailClient{}
	sender := newMailSender(client, "noreply@hostly.app", "Hostly")

	require.NoError(t, sender.Send(context.Background(), buildOffer(t)))
	require.Len(t, client.sent, 1)

	subject := client.sent[0].GetGenHeader(mail.HeaderSubject)
	require.Len(t, subject, 1)
	assert.Equal(t, "Seats available for Rooftop Jazz", subject[0])

	to, err := client.sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"guest@example.com"}, to)
}

func TestMailSender_WrapsDeliveryError(t *testing.T) {
	client := &captureMailClient{err: errors.New("connection refused")}
	sender := newMailSender(client, "noreply@hostly.app", "Hostly")

	err := sender.Send(context.Background(), buildOffer(t))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "guest@example.com"))
}
