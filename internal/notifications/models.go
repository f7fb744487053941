package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeBookingRequested      NotificationType = "BOOKING_REQUESTED"
	NotificationTypeBookingPending        NotificationType = "BOOKING_PENDING"
	NotificationTypeBookingConfirmed      NotificationType = "BOOKING_CONFIRMED"
	NotificationTypeBookingDeclined       NotificationType = "BOOKING_DECLINED"
	NotificationTypeBookingCancelled      NotificationType = "BOOKING_CANCELLED"
	NotificationTypeBookingCompleted      NotificationType = "BOOKING_COMPLETED"
	NotificationTypeWaitlistJoined        NotificationType = "WAITLIST_JOINED"
	NotificationTypeWaitlistSpotAvailable NotificationType = "WAITLIST_SPOT_AVAILABLE"
	NotificationTypeWaitlistOfferExpired  NotificationType = "WAITLIST_OFFER_EXPIRED"
	NotificationTypeWaitlistCancelled     NotificationType = "WAITLIST_CANCELLED"
	NotificationTypeEventReminder         NotificationType = "EVENT_REMINDER"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// Message is a fully rendered notification ready for delivery
type Message struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name,omitempty"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	EventID         *uuid.UUID `json:"event_id,omitempty"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	WaitlistEntryID *uuid.UUID `json:"waitlist_entry_id,omitempty"`

	// Delivery is pointless after this instant (e.g. an offer that lapsed)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationBuilder assembles a Message and renders its template
type NotificationBuilder struct {
	message Message
	data    map[string]interface{}
}

func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		message: Message{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
		},
		data: make(map[string]interface{}),
	}
}

func (nb *NotificationBuilder) WithType(notType NotificationType) *NotificationBuilder {
	nb.message.Type = notType
	nb.message.Priority = GetDefaultPriority(notType)
	return nb
}

func (nb *NotificationBuilder) WithRecipient(email, name string) *NotificationBuilder {
	nb.message.RecipientEmail = email
	nb.message.RecipientName = name
	return nb
}

func (nb *NotificationBuilder) WithData(key string, value interface{}) *NotificationBuilder {
	nb.data[key] = value
	return nb
}

func (nb *NotificationBuilder) WithTemplateData(data map[string]interface{}) *NotificationBuilder {
	for k, v := range data {
		nb.data[k] = v
	}
	return nb
}

func (nb *NotificationBuilder) WithEventContext(eventID uuid.UUID) *NotificationBuilder {
	nb.message.EventID = &eventID
	return nb
}

func (nb *NotificationBuilder) WithBookingContext(bookingID uuid.UUID) *NotificationBuilder {
	nb.message.BookingID = &bookingID
	return nb
}

func (nb *NotificationBuilder) WithWaitlistContext(waitlistEntryID uuid.UUID) *NotificationBuilder {
	nb.message.WaitlistEntryID = &waitlistEntryID
	return nb
}

func (nb *NotificationBuilder) WithExpiration(expiresAt time.Time) *NotificationBuilder {
	nb.message.ExpiresAt = &expiresAt
	return nb
}

func (nb *NotificationBuilder) WithCreatedAt(at time.Time) *NotificationBuilder {
	nb.message.CreatedAt = at.UTC()
	return nb
}

// Build renders subject and body from the template registered for the type
func (nb *NotificationBuilder) Build() (Message, error) {
	if nb.message.RecipientEmail == "" {
		return Message{}, fmt.Errorf("notification %s has no recipient", nb.message.Type)
	}
	if nb.message.RecipientName != "" {
		nb.data["recipient_name"] = nb.message.RecipientName
	}
	subject, body, err := Render(nb.message.Type, nb.data)
	if err != nil {
		return Message{}, err
	}
	nb.message.Subject = subject
	nb.message.Body = body
	return nb.message, nil
}

func GetDefaultPriority(notType NotificationType) NotificationPriority {
	switch notType {
	case NotificationTypeWaitlistSpotAvailable, NotificationTypeEventReminder:
		return NotificationPriorityHigh
	case NotificationTypeWaitlistJoined, NotificationTypeBookingCompleted:
		return NotificationPriorityLow
	default:
		return NotificationPriorityMedium
	}
}

// GetPartitionKey keeps all messages for one recipient on one partition
func (m *Message) GetPartitionKey() string {
	return m.RecipientEmail
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Message) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}
