package notifications

import (
	"bytes"
	"fmt"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templateSources = map[NotificationType][2]string{
	NotificationTypeBookingRequested: {
		"New booking request for {{.event_title}}",
		"{{.requester_email}} requested {{.seat_count}} seat(s) for {{.event_title}}.\n" +
			"Review the request to approve or decline it.\n\nBooking: {{.booking_id}}",
	},
	NotificationTypeBookingPending: {
		"Your request for {{.event_title}} is pending",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"We sent your request for {{.seat_count}} seat(s) at {{.event_title}} to the host.\n" +
			"You will hear from us as soon as they respond.\n\nBooking: {{.booking_id}}",
	},
	NotificationTypeBookingConfirmed: {
		"Booking confirmed: {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"Your booking for {{.seat_count}} seat(s) at {{.event_title}} is confirmed.\n" +
			"{{with .starts_at}}The event starts at {{.}}.\n{{end}}" +
			"{{with .total_amount}}Amount charged: {{.}} {{$.currency}}\n{{end}}" +
			"\nBooking: {{.booking_id}}",
	},
	NotificationTypeBookingDeclined: {
		"Booking declined: {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"The host declined your request for {{.event_title}}.\n" +
			"{{with .reason}}Reason: {{.}}\n{{end}}" +
			"\nBooking: {{.booking_id}}",
	},
	NotificationTypeBookingCancelled: {
		"Booking cancelled: {{.event_title}}",
		"The booking for {{.seat_count}} seat(s) at {{.event_title}} was cancelled by the {{.cancelled_by}}.\n" +
			"{{with .reason}}Reason: {{.}}\n{{end}}" +
			"{{with .refund_amount}}Refund issued: {{.}} {{$.currency}}\n{{end}}" +
			"\nBooking: {{.booking_id}}",
	},
	NotificationTypeBookingCompleted: {
		"Thanks for attending {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"Your booking for {{.event_title}} has been marked as completed.\n\nBooking: {{.booking_id}}",
	},
	NotificationTypeWaitlistJoined: {
		"You're on the waitlist for {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"You joined the waitlist for {{.event_title}} at position {{.position}} for {{.seat_count}} seat(s).\n" +
			"We will email you when seats open up.\n\nEntry: {{.entry_id}}",
	},
	NotificationTypeWaitlistSpotAvailable: {
		"Seats available for {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"{{.seat_count}} seat(s) are being held for you at {{.event_title}}.\n" +
			"Claim them before {{.expires_at}}:\n\n{{.offer_url}}\n\n" +
			"The link can be used once. If you do not claim the seats they go to the next guest.",
	},
	NotificationTypeWaitlistOfferExpired: {
		"Your offer for {{.event_title}} expired",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"The seats we held for you at {{.event_title}} were not claimed in time and were released.\n\nEntry: {{.entry_id}}",
	},
	NotificationTypeWaitlistCancelled: {
		"You left the waitlist for {{.event_title}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"Your waitlist entry for {{.event_title}} was cancelled.\n\nEntry: {{.entry_id}}",
	},
	NotificationTypeEventReminder: {
		"Reminder: {{.event_title}} starts in {{.lead_time}}",
		"Hi{{with .recipient_name}} {{.}}{{end}},\n\n" +
			"{{.event_title}} starts at {{.starts_at}}.\n" +
			"You have {{.seat_count}} seat(s) booked.\n\nBooking: {{.booking_id}}",
	},
}

var templates = mustParseTemplates()

func mustParseTemplates() map[NotificationType]messageTemplate {
	parsed := make(map[NotificationType]messageTemplate, len(templateSources))
	for notType, src := range templateSources {
		name := string(notType)
		parsed[notType] = messageTemplate{
			subject: template.Must(template.New(name + ".subject").Parse(src[0])),
			body:    template.Must(template.New(name + ".body").Parse(src[1])),
		}
	}
	return parsed
}

// Render produces the subject and body for a notification type
func Render(notType NotificationType, data map[string]interface{}) (string, string, error) {
	tmpl, ok := templates[notType]
	if !ok {
		return "", "", fmt.Errorf("no template registered for notification type %q", notType)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", notType, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", notType, err)
	}
	return subject.String(), body.String(), nil
}
