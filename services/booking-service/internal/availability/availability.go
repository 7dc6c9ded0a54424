// Package availability decides whether a stylist can take an appointment
// at a given moment. The decision is computed over a pre-fetched day
// context so the core logic stays pure and trivially testable.
package availability

import (
	"fmt"
	"time"
)

// DefaultDurationMinutes is assumed for any booking without a recorded
// duration.
const DefaultDurationMinutes = 60

// WeeklyRule is one recurring weekday entry of a stylist's schedule.
// Minutes are offsets since local midnight.
type WeeklyRule struct {
	Weekday     int // 0 = Sunday .. 6 = Saturday
	IsWorking   bool
	StartMinute int
	EndMinute   int
}

// Exception overrides the weekly rule for a single calendar date. When
// IsOff is false and both minute overrides are set, they replace the
// weekly hours for that date.
type Exception struct {
	ID          string
	Date        time.Time
	IsOff       bool
	StartMinute *int
	EndMinute   *int
	Reason      string
}

// Booking is an active appointment occupying time on the day under
// evaluation. StartMinute is the offset since local midnight; a nil
// duration means DefaultDurationMinutes.
type Booking struct {
	StartMinute     int
	DurationMinutes *int
}

// Day bundles everything CheckSlot needs to decide about one calendar
// date: the exception for that date (if any), the weekly rule for its
// weekday (if any), and the stylist's active bookings on it.
type Day struct {
	Exception *Exception
	Rule      *WeeklyRule
	Bookings  []Booking
}

// ReasonCode classifies why a slot was rejected.
type ReasonCode string

const (
	ReasonNone         ReasonCode = ""
	ReasonOffException ReasonCode = "off_exception"
	ReasonOffWeekly    ReasonCode = "off_weekly_schedule"
	ReasonOutsideHours ReasonCode = "outside_working_hours"
	ReasonOverlap      ReasonCode = "slot_overlap"
)

// Decision is the outcome of a slot check. Reason is a human-readable
// message suitable for the API response; it is empty when Available.
type Decision struct {
	Available bool       `json:"available"`
	Code      ReasonCode `json:"reason_code,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// CheckSlot reports whether a slot starting at start and lasting
// durationMinutes fits into day. start must already be expressed in the
// stylist's local time; seconds are ignored.
//
// Rejections are checked in strict order: a full-day exception wins over
// everything, then the effective working hours (exception override or
// weekly rule), then overlap with existing bookings. The first failing
// check decides the outcome.
func CheckSlot(start time.Time, durationMinutes int, day Day) Decision {
	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + durationMinutes

	openMin, closeMin, off := effectiveHours(day)
	if off != nil {
		return *off
	}

	if startMin < openMin || endMin > closeMin {
		return Decision{
			Code:   ReasonOutsideHours,
			Reason: fmt.Sprintf("Outside working hours (%s - %s)", FormatClock(openMin), FormatClock(closeMin)),
		}
	}

	for _, b := range day.Bookings {
		bStart := b.StartMinute
		bEnd := bStart + bookingDuration(b)
		// Half-open intervals: [a,b) overlaps [c,d) iff a < d && b > c.
		if startMin < bEnd && endMin > bStart {
			return Decision{Code: ReasonOverlap, Reason: "Slot overlap with existing booking"}
		}
	}

	return Decision{Available: true}
}

// effectiveHours resolves the working window for day. A non-nil Decision
// means the stylist is off for the whole date.
func effectiveHours(day Day) (openMin, closeMin int, off *Decision) {
	if ex := day.Exception; ex != nil {
		if ex.IsOff {
			return 0, 0, &Decision{Code: ReasonOffException, Reason: "Stylist is off (Exception)"}
		}
		if ex.StartMinute != nil && ex.EndMinute != nil {
			return *ex.StartMinute, *ex.EndMinute, nil
		}
	}
	rule := day.Rule
	if rule == nil || !rule.IsWorking {
		return 0, 0, &Decision{Code: ReasonOffWeekly, Reason: "Stylist is off (Weekly Schedule)"}
	}
	return rule.StartMinute, rule.EndMinute, nil
}

func bookingDuration(b Booking) int {
	if b.DurationMinutes != nil && *b.DurationMinutes > 0 {
		return *b.DurationMinutes
	}
	return DefaultDurationMinutes
}
