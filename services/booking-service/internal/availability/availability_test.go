package availability

import (
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC) // a Monday
}

func workingDay(startMin, endMin int) Day {
	return Day{Rule: &WeeklyRule{Weekday: 1, IsWorking: true, StartMinute: startMin, EndMinute: endMin}}
}

func TestCheckSlotPrecedence(t *testing.T) {
	nineToFive := workingDay(9*60, 17*60)

	tests := []struct {
		name     string
		start    time.Time
		duration int
		day      Day
		want     Decision
	}{
		{
			name:     "exception off wins over working rule",
			start:    at(10, 0),
			duration: 60,
			day: Day{
				Exception: &Exception{IsOff: true},
				Rule:      nineToFive.Rule,
			},
			want: Decision{Code: ReasonOffException, Reason: "Stylist is off (Exception)"},
		},
		{
			name:     "exception off wins even with no bookings and no rule",
			start:    at(10, 0),
			duration: 60,
			day:      Day{Exception: &Exception{IsOff: true}},
			want:     Decision{Code: ReasonOffException, Reason: "Stylist is off (Exception)"},
		},
		{
			name:     "custom hours exception replaces weekly hours",
			start:    at(9, 0),
			duration: 60,
			day: Day{
				Exception: &Exception{StartMinute: intp(12 * 60), EndMinute: intp(15 * 60)},
				Rule:      nineToFive.Rule,
			},
			want: Decision{Code: ReasonOutsideHours, Reason: "Outside working hours (12:00 - 15:00)"},
		},
		{
			name:     "custom hours exception admits slot outside weekly hours",
			start:    at(18, 0),
			duration: 60,
			day: Day{
				Exception: &Exception{StartMinute: intp(17 * 60), EndMinute: intp(20 * 60)},
				Rule:      nineToFive.Rule,
			},
			want: Decision{Available: true},
		},
		{
			name:     "exception without overrides falls through to weekly rule",
			start:    at(10, 0),
			duration: 60,
			day: Day{
				Exception: &Exception{Reason: "note only"},
				Rule:      nineToFive.Rule,
			},
			want: Decision{Available: true},
		},
		{
			name:     "no weekly rule means off",
			start:    at(10, 0),
			duration: 60,
			day:      Day{},
			want:     Decision{Code: ReasonOffWeekly, Reason: "Stylist is off (Weekly Schedule)"},
		},
		{
			name:     "non-working weekday means off",
			start:    at(10, 0),
			duration: 60,
			day:      Day{Rule: &WeeklyRule{Weekday: 1, IsWorking: false}},
			want:     Decision{Code: ReasonOffWeekly, Reason: "Stylist is off (Weekly Schedule)"},
		},
		{
			name:     "within hours and no bookings is available",
			start:    at(10, 30),
			duration: 45,
			day:      nineToFive,
			want:     Decision{Available: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSlot(tt.start, tt.duration, tt.day)
			if got != tt.want {
				t.Fatalf("CheckSlot() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckSlotBoundaries(t *testing.T) {
	day := workingDay(9*60, 17*60)

	tests := []struct {
		name     string
		start    time.Time
		duration int
		wantOK   bool
	}{
		{"slot at opening time", at(9, 0), 60, true},
		{"slot ending exactly at close", at(16, 0), 60, true},
		{"slot filling the whole day", at(9, 0), 8 * 60, true},
		{"one minute before opening", at(8, 59), 60, false},
		{"slot ending one minute past close", at(16, 1), 60, false},
		{"slot starting at close", at(17, 0), 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSlot(tt.start, tt.duration, day)
			if got.Available != tt.wantOK {
				t.Fatalf("CheckSlot() available = %v, want %v (reason %q)", got.Available, tt.wantOK, got.Reason)
			}
			if !tt.wantOK {
				want := "Outside working hours (09:00 - 17:00)"
				if got.Reason != want {
					t.Fatalf("reason = %q, want %q", got.Reason, want)
				}
			}
		})
	}
}

func TestCheckSlotIgnoresSeconds(t *testing.T) {
	day := workingDay(9*60, 17*60)
	start := time.Date(2026, time.March, 2, 16, 0, 59, 0, time.UTC)
	if got := CheckSlot(start, 60, day); !got.Available {
		t.Fatalf("seconds must be truncated, got %+v", got)
	}
}

func TestCheckSlotOverlap(t *testing.T) {
	day := workingDay(9 * 60, 17 * 60)
	day.Bookings = []Booking{
		{StartMinute: 10 * 60, DurationMinutes: intp(90)}, // 10:00 - 11:30
		{StartMinute: 14 * 60},                            // no duration, occupies 60
	}

	tests := []struct {
		name     string
		start    time.Time
		duration int
		wantOK   bool
	}{
		{"identical slot", at(10, 0), 90, false},
		{"starts inside existing", at(11, 0), 30, false},
		{"ends inside existing", at(9, 30), 60, false},
		{"fully covers existing", at(9, 30), 150, false},
		{"back to back before", at(9, 0), 60, true},
		{"back to back after", at(11, 30), 60, true},
		{"default duration blocks 14:59", at(14, 59), 30, false},
		{"default duration frees 15:00", at(15, 0), 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSlot(tt.start, tt.duration, day)
			if got.Available != tt.wantOK {
				t.Fatalf("CheckSlot() available = %v, want %v (reason %q)", got.Available, tt.wantOK, got.Reason)
			}
			if !tt.wantOK && got.Reason != "Slot overlap with existing booking" {
				t.Fatalf("reason = %q", got.Reason)
			}
		})
	}
}

func TestCheckSlotAvailableHasNoReason(t *testing.T) {
	got := CheckSlot(at(10, 0), 60, workingDay(9*60, 17*60))
	if !got.Available || got.Reason != "" || got.Code != ReasonNone {
		t.Fatalf("got %+v", got)
	}
}

func TestCheckSlotIsPure(t *testing.T) {
	day := workingDay(9*60, 17*60)
	day.Bookings = []Booking{{StartMinute: 10 * 60, DurationMinutes: intp(30)}}
	first := CheckSlot(at(10, 0), 30, day)
	for i := 0; i < 5; i++ {
		if got := CheckSlot(at(10, 0), 30, day); got != first {
			t.Fatalf("decision changed on repeat call: %+v vs %+v", got, first)
		}
	}
	if day.Bookings[0].StartMinute != 10*60 || *day.Bookings[0].DurationMinutes != 30 {
		t.Fatal("CheckSlot mutated its input")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 9 * 60, false},
		{"00:00", 0, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 24 * 60, false},
		{" 17:30 ", 17*60 + 30, false},
		{"9:00", 0, true},
		{"24:01", 0, true},
		{"12:60", 0, true},
		{"ab:cd", 0, true},
		{"1200", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseClock(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(9 * 60); got != "09:00" {
		t.Fatalf("got %q", got)
	}
	if got := FormatClock(17*60 + 5); got != "17:05" {
		t.Fatalf("got %q", got)
	}
}
