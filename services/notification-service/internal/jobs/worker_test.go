package jobs

import (
	"strings"
	"testing"
	"time"
)

func TestComposeReminderUsesSalonNameAndTimezone(t *testing.T) {
	w := &Worker{}
	job := Job{
		Kind:      "reminder",
		StartTime: time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC),
		TemplateData: map[string]any{
			"salon_name": "Shear Bliss",
			"timezone":   "America/New_York",
		},
	}
	subject, body := w.compose(job)
	if subject != "Appointment reminder" {
		t.Fatalf("subject = %q", subject)
	}
	if !strings.HasPrefix(body, "[Shear Bliss]") {
		t.Fatalf("body missing salon prefix: %q", body)
	}
	// 17:00 UTC is 13:00 in New York in March (EDT).
	if !strings.Contains(body, "13:00") {
		t.Fatalf("body not localized: %q", body)
	}
}

func TestComposeCancellationOmitsTime(t *testing.T) {
	w := &Worker{}
	subject, body := w.compose(Job{Kind: "cancellation", StartTime: time.Now()})
	if subject != "Appointment cancelled" {
		t.Fatalf("subject = %q", subject)
	}
	if body != "Your appointment has been cancelled." {
		t.Fatalf("body = %q", body)
	}
}

func TestComposeConfirmation(t *testing.T) {
	w := &Worker{}
	subject, body := w.compose(Job{
		Kind:      "confirmation",
		StartTime: time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC),
	})
	if subject != "Appointment confirmed" {
		t.Fatalf("subject = %q", subject)
	}
	if !strings.Contains(body, "confirmed") {
		t.Fatalf("body = %q", body)
	}
}
