package availability

// DaySlots enumerates candidate start minutes for a slot of
// durationMinutes, stepping through the day's effective working window
// on a stepMinutes grid. Slots overlapping an existing booking and
// slots starting before notBeforeMinute (pass 0 for future dates) are
// skipped. An off day yields nil.
func DaySlots(day Day, durationMinutes, stepMinutes, notBeforeMinute int) []int {
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	openMin, closeMin, off := effectiveHours(day)
	if off != nil {
		return nil
	}

	var slots []int
	for start := openMin; start+durationMinutes <= closeMin; start += stepMinutes {
		if start < notBeforeMinute {
			continue
		}
		end := start + durationMinutes
		free := true
		for _, b := range day.Bookings {
			bStart := b.StartMinute
			bEnd := bStart + bookingDuration(b)
			if start < bEnd && end > bStart {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, start)
		}
	}
	return slots
}
