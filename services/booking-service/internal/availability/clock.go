package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadClock reports a wall-clock string that is not "HH:MM".
var ErrBadClock = errors.New("invalid time, expected HH:MM")

// ParseClock converts a 24-hour "HH:MM" string to minutes since
// midnight. "24:00" is accepted as an end-of-day closing time.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, ErrBadClock
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, ErrBadClock
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, ErrBadClock
	}
	if h == 24 && m == 0 {
		return 24 * 60, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, ErrBadClock
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
