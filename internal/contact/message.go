package contact

import (
	"strings"
	"time"

	"github.com/JakeFAU/consulting-site/internal/mailer"
)

// isoMillis matches the millisecond-precision UTC form used in notifications.
const isoMillis = "2006-01-02T15:04:05.000Z"

// ComposeMessage renders the notification for a validated submission.
// Replies go straight to the submitter.
func ComposeMessage(sub Submission, clientIP string, at time.Time) mailer.Message {
	subject := "Website inquiry: " + sub.Name
	if sub.Subject != "" {
		subject = "Website inquiry: " + sub.Subject + " — " + sub.Name
	}

	subjectLine := sub.Subject
	if subjectLine == "" {
		subjectLine = "-"
	}
	body := strings.Join([]string{
		"New website inquiry",
		"-------------------",
		"Subject: " + subjectLine,
		"Name: " + sub.Name,
		"Email: " + sub.Email,
		"",
		"Message:",
		sub.Message,
		"",
		"IP: " + clientIP,
		"Time: " + at.UTC().Format(isoMillis),
	}, "\n")

	return mailer.Message{
		Subject: subject,
		Text:    body,
		ReplyTo: sub.Email,
	}
}
