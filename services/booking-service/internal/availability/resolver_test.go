package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glowbook/glowbook/services/booking-service/internal/model"
)

type fakeScheduleStore struct {
	rules      map[int]*WeeklyRule
	exceptions map[string]*Exception
	ruleErr    error
	excErr     error
}

func (f *fakeScheduleStore) WeeklyRuleFor(_ context.Context, _ string, weekday int) (*WeeklyRule, error) {
	if f.ruleErr != nil {
		return nil, f.ruleErr
	}
	return f.rules[weekday], nil
}

func (f *fakeScheduleStore) ExceptionFor(_ context.Context, _ string, date time.Time) (*Exception, error) {
	if f.excErr != nil {
		return nil, f.excErr
	}
	return f.exceptions[date.Format("2006-01-02")], nil
}

type fakeBookingStore struct {
	bookings []TimedBooking
	err      error
	gotFrom  time.Time
	gotTo    time.Time
}

func (f *fakeBookingStore) ActiveBookingsBetween(_ context.Context, _ string, from, to time.Time) ([]TimedBooking, error) {
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.bookings, nil
}

type fakeLocationStore struct {
	loc *time.Location
	err error
}

func (f *fakeLocationStore) StylistLocation(context.Context, string) (*time.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.loc == nil {
		return time.UTC, nil
	}
	return f.loc, nil
}

func TestResolverChecksInStylistTimezone(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatal(err)
	}

	// 18:00 UTC on Monday is 00:00 Tuesday in Dhaka (UTC+6): the
	// resolver must evaluate Tuesday's rule, not Monday's.
	sched := &fakeScheduleStore{rules: map[int]*WeeklyRule{
		1: {Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
		2: {Weekday: 2, IsWorking: false},
	}}
	r := NewResolver(sched, &fakeBookingStore{}, &fakeLocationStore{loc: dhaka})

	start := time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)
	got, err := r.Check(context.Background(), "stylist-1", start, 60)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != ReasonOffWeekly {
		t.Fatalf("expected Tuesday off decision, got %+v", got)
	}
}

func TestResolverQueriesLocalDayWindow(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatal(err)
	}
	bookings := &fakeBookingStore{}
	sched := &fakeScheduleStore{rules: map[int]*WeeklyRule{
		2: {Weekday: 2, IsWorking: true, StartMinute: 0, EndMinute: 24 * 60},
	}}
	r := NewResolver(sched, bookings, &fakeLocationStore{loc: dhaka})

	start := time.Date(2026, time.March, 2, 20, 0, 0, 0, time.UTC) // 02:00 Tue in Dhaka
	if _, err := r.Check(context.Background(), "stylist-1", start, 60); err != nil {
		t.Fatal(err)
	}

	wantFrom := time.Date(2026, time.March, 3, 0, 0, 0, 0, dhaka)
	if !bookings.gotFrom.Equal(wantFrom) {
		t.Fatalf("day window start = %v, want %v", bookings.gotFrom, wantFrom)
	}
	if !bookings.gotTo.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Fatalf("day window end = %v", bookings.gotTo)
	}
}

func TestResolverConvertsBookingsToLocalMinutes(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatal(err)
	}
	// 04:00 UTC is 10:00 in Dhaka; a 60 minute booking there must
	// block the 10:30 local slot.
	bookings := &fakeBookingStore{bookings: []TimedBooking{
		{Start: time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC)},
	}}
	sched := &fakeScheduleStore{rules: map[int]*WeeklyRule{
		1: {Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}}
	r := NewResolver(sched, bookings, &fakeLocationStore{loc: dhaka})

	start := time.Date(2026, time.March, 2, 10, 30, 0, 0, dhaka)
	got, err := r.Check(context.Background(), "stylist-1", start, 30)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != ReasonOverlap {
		t.Fatalf("expected overlap, got %+v", got)
	}
}

func TestResolverIgnoresCancelledBookings(t *testing.T) {
	// A cancelled appointment releases its slot no matter which side
	// cancelled, while a live one at the same time keeps blocking.
	sched := &fakeScheduleStore{rules: map[int]*WeeklyRule{
		1: {Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}}
	slot := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	for _, status := range model.CancelledStatuses {
		t.Run(status, func(t *testing.T) {
			bookings := &fakeBookingStore{bookings: []TimedBooking{
				{Start: slot, Status: status},
			}}
			r := NewResolver(sched, bookings, &fakeLocationStore{})
			got, err := r.Check(context.Background(), "stylist-1", slot, 60)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Available {
				t.Fatalf("cancelled booking must not block the slot, got %+v", got)
			}
		})
	}

	t.Run("active still blocks", func(t *testing.T) {
		bookings := &fakeBookingStore{bookings: []TimedBooking{
			{Start: slot, Status: model.StatusApproved},
		}}
		r := NewResolver(sched, bookings, &fakeLocationStore{})
		got, err := r.Check(context.Background(), "stylist-1", slot, 60)
		if err != nil {
			t.Fatal(err)
		}
		if got.Code != ReasonOverlap {
			t.Fatalf("expected overlap, got %+v", got)
		}
	})
}

func TestResolverPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection refused")
	base := func() (*fakeScheduleStore, *fakeBookingStore, *fakeLocationStore) {
		sched := &fakeScheduleStore{rules: map[int]*WeeklyRule{
			1: {Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
		}}
		return sched, &fakeBookingStore{}, &fakeLocationStore{}
	}
	start := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		wound func(*fakeScheduleStore, *fakeBookingStore, *fakeLocationStore)
	}{
		{"location error", func(_ *fakeScheduleStore, _ *fakeBookingStore, l *fakeLocationStore) { l.err = boom }},
		{"exception error", func(s *fakeScheduleStore, _ *fakeBookingStore, _ *fakeLocationStore) { s.excErr = boom }},
		{"rule error", func(s *fakeScheduleStore, _ *fakeBookingStore, _ *fakeLocationStore) { s.ruleErr = boom }},
		{"bookings error", func(_ *fakeScheduleStore, b *fakeBookingStore, _ *fakeLocationStore) { b.err = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, book, loc := base()
			tt.wound(sched, book, loc)
			r := NewResolver(sched, book, loc)
			got, err := r.Check(context.Background(), "stylist-1", start, 60)
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped storage error, got %v", err)
			}
			if got.Available {
				t.Fatal("a failed check must never report available")
			}
			if got.Code != ReasonNone {
				t.Fatalf("a failed check must not carry a rejection reason, got %+v", got)
			}
		})
	}
}
