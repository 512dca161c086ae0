// Package notify delivers push notifications about import outcomes to a
// user's registered devices.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Notification is a device-agnostic push payload.
type Notification struct {
	Title    string
	Body     string
	Data     map[string]string
	Badge    *int
	Sound    string
	Category string
}

// Notifier sends a notification to every device registered for a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, string, Notification) error { return nil }

// ImportCompleted builds the notification for a finished import scan.
// Countries are the candidate country names in ranked order.
func ImportCompleted(count int, countries []string) Notification {
	var body string
	switch {
	case count == 0:
		body = "No new countries found in your emails and calendar."
	case count == 1:
		body = fmt.Sprintf("Found 1 new country: %s. Tap to review.", countries[0])
	default:
		preview := strings.Join(countries[:min(3, len(countries))], ", ")
		if len(countries) > 3 {
			preview += fmt.Sprintf(" and %d more", len(countries)-3)
		}
		body = fmt.Sprintf("Found %d countries: %s. Tap to review.", count, preview)
	}

	return Notification{
		Title:    "Import Complete",
		Body:     body,
		Category: "IMPORT_REVIEW",
		Data:     map[string]string{"action": "review_import"},
	}
}

// ImportFailed builds the notification for a failed import scan.
func ImportFailed(reason string) Notification {
	return Notification{
		Title:    "Import Failed",
		Body:     fmt.Sprintf("Could not scan your emails: %s", reason),
		Category: "IMPORT_ERROR",
	}
}
