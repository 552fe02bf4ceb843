// Package timeslot provides the canonical half-hour slot vocabulary used by
// availability blocks and bookings. All conflict checks compare the
// normalized "HH:MM - HH:MM" form; inputs may arrive unpadded ("9:00").
package timeslot

import (
	"fmt"
	"strings"
	"time"
)

const (
	dayStartHour = 8
	dayEndHour   = 20

	// Separator joins the two halves of a slot label.
	Separator = " - "
)

// Generate returns the fixed ordered sequence of 30-minute slot labels from
// 08:00 to 20:00 (24 slots), each "HH:MM - HH:MM".
func Generate() []string {
	slots := make([]string, 0, (dayEndHour-dayStartHour)*2)
	for hour := dayStartHour; hour < dayEndHour; hour++ {
		for _, minute := range []int{0, 30} {
			start := fmt.Sprintf("%02d:%02d", hour, minute)
			endHour, endMinute := hour, minute+30
			if endMinute >= 60 {
				endMinute = 0
				endHour++
			}
			end := fmt.Sprintf("%02d:%02d", endHour, endMinute)
			slots = append(slots, start+Separator+end)
		}
	}
	return slots
}

// NormalizeTime parses an "H:MM" or "HH:MM" time string and re-renders it
// zero-padded. Unparseable input is returned unchanged so the caller never
// fails on normalization alone.
func NormalizeTime(raw string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		// time.Parse rejects single-digit hours for "15:04".
		t, err = time.Parse("3:04", strings.TrimSpace(raw))
		if err != nil {
			return raw
		}
	}
	return t.Format("15:04")
}

// NormalizeSlot splits a "start - end" range on the separator and normalizes
// both halves. Input that does not split into exactly two parts is returned
// unchanged.
func NormalizeSlot(raw string) string {
	parts := strings.Split(raw, Separator)
	if len(parts) != 2 {
		return raw
	}
	start := NormalizeTime(strings.TrimSpace(parts[0]))
	end := NormalizeTime(strings.TrimSpace(parts[1]))
	return start + Separator + end
}

// Split returns the normalized start and end of a slot label. The boolean is
// false when the label is not a two-part range.
func Split(raw string) (start, end string, ok bool) {
	parts := strings.Split(raw, Separator)
	if len(parts) != 2 {
		return "", "", false
	}
	return NormalizeTime(strings.TrimSpace(parts[0])), NormalizeTime(strings.TrimSpace(parts[1])), true
}
