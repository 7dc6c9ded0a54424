package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/glowbook/glowbook/services/booking-service/internal/model"
)

// ScheduleStore loads a stylist's recurring schedule and date overrides.
// Both lookups return nil (no error) when nothing is recorded.
type ScheduleStore interface {
	WeeklyRuleFor(ctx context.Context, stylistID string, weekday int) (*WeeklyRule, error)
	ExceptionFor(ctx context.Context, stylistID string, date time.Time) (*Exception, error)
}

// BookingStore loads the stylist's appointments starting within
// [from, to), cancelled ones included. The resolver drops cancelled
// rows itself; a cancelled appointment never blocks a slot.
type BookingStore interface {
	ActiveBookingsBetween(ctx context.Context, stylistID string, from, to time.Time) ([]TimedBooking, error)
}

// LocationStore resolves the stylist's IANA timezone. Implementations
// fall back to UTC when the stylist has not declared one.
type LocationStore interface {
	StylistLocation(ctx context.Context, stylistID string) (*time.Location, error)
}

// TimedBooking is an appointment with its absolute start time, before
// conversion into the stylist's local day.
type TimedBooking struct {
	Start           time.Time
	DurationMinutes *int
	Status          string
}

// Resolver assembles the day context for a stylist and date, then
// delegates the decision to CheckSlot. Storage failures are returned as
// errors and never reported as "unavailable".
type Resolver struct {
	schedule ScheduleStore
	bookings BookingStore
	location LocationStore
}

func NewResolver(schedule ScheduleStore, bookings BookingStore, location LocationStore) *Resolver {
	return &Resolver{schedule: schedule, bookings: bookings, location: location}
}

// Check decides whether the stylist can take an appointment starting at
// start (any timezone) lasting durationMinutes.
func (r *Resolver) Check(ctx context.Context, stylistID string, start time.Time, durationMinutes int) (Decision, error) {
	local, day, err := r.LoadDay(ctx, stylistID, start)
	if err != nil {
		return Decision{}, err
	}
	return CheckSlot(local, durationMinutes, day), nil
}

// LoadDay converts start into the stylist's local time and fetches the
// exception, weekly rule and active bookings for that local calendar
// date.
func (r *Resolver) LoadDay(ctx context.Context, stylistID string, start time.Time) (time.Time, Day, error) {
	loc, err := r.location.StylistLocation(ctx, stylistID)
	if err != nil {
		return time.Time{}, Day{}, fmt.Errorf("resolve stylist timezone: %w", err)
	}
	local := start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	ex, err := r.schedule.ExceptionFor(ctx, stylistID, dayStart)
	if err != nil {
		return time.Time{}, Day{}, fmt.Errorf("load schedule exception: %w", err)
	}
	rule, err := r.schedule.WeeklyRuleFor(ctx, stylistID, int(dayStart.Weekday()))
	if err != nil {
		return time.Time{}, Day{}, fmt.Errorf("load weekly rule: %w", err)
	}
	timed, err := r.bookings.ActiveBookingsBetween(ctx, stylistID, dayStart, dayEnd)
	if err != nil {
		return time.Time{}, Day{}, fmt.Errorf("load bookings: %w", err)
	}

	day := Day{Exception: ex, Rule: rule, Bookings: make([]Booking, 0, len(timed))}
	for _, b := range timed {
		if model.IsCancelled(b.Status) {
			continue
		}
		bl := b.Start.In(loc)
		day.Bookings = append(day.Bookings, Booking{
			StartMinute:     bl.Hour()*60 + bl.Minute(),
			DurationMinutes: b.DurationMinutes,
		})
	}
	return local, day, nil
}
