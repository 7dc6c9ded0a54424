package availability

import (
	"reflect"
	"testing"
)

func TestDaySlots(t *testing.T) {
	nineToNoon := Day{Rule: &WeeklyRule{Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 12 * 60}}

	tests := []struct {
		name      string
		day       Day
		duration  int
		step      int
		notBefore int
		want      []int
	}{
		{
			name:     "full grid on empty day",
			day:      nineToNoon,
			duration: 60,
			step:     60,
			want:     []int{9 * 60, 10 * 60, 11 * 60},
		},
		{
			name: "booked hour removed",
			day: Day{
				Rule:     nineToNoon.Rule,
				Bookings: []Booking{{StartMinute: 10 * 60, DurationMinutes: intp(60)}},
			},
			duration: 60,
			step:     60,
			want:     []int{9 * 60, 11 * 60},
		},
		{
			name:      "past slots skipped for today",
			day:       nineToNoon,
			duration:  60,
			step:      60,
			notBefore: 10*60 + 15,
			want:      []int{11 * 60},
		},
		{
			name:     "last slot must end within hours",
			day:      nineToNoon,
			duration: 90,
			step:     60,
			want:     []int{9 * 60, 10 * 60},
		},
		{
			name:     "off day yields nothing",
			day:      Day{Exception: &Exception{IsOff: true}, Rule: nineToNoon.Rule},
			duration: 60,
			step:     60,
			want:     nil,
		},
		{
			name: "custom hours exception reshapes the grid",
			day: Day{
				Exception: &Exception{StartMinute: intp(13 * 60), EndMinute: intp(15 * 60)},
				Rule:      nineToNoon.Rule,
			},
			duration: 60,
			step:     60,
			want:     []int{13 * 60, 14 * 60},
		},
		{
			name:     "invalid step yields nothing",
			day:      nineToNoon,
			duration: 60,
			step:     0,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DaySlots(tt.day, tt.duration, tt.step, tt.notBefore)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("DaySlots() = %v, want %v", got, tt.want)
			}
		})
	}
}
