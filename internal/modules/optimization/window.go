package optimization

import (
	"fmt"
	"time"
)

// Window is an inclusive span of calendar years used for estimation.
type Window struct {
	StartYear int `json:"start_year"`
	EndYear   int `json:"end_year"`
}

// Label renders the window as "start:end".
func (w Window) Label() string {
	return fmt.Sprintf("%d:%d", w.StartYear, w.EndYear)
}

// From returns January 1 of the start year.
func (w Window) From() time.Time {
	return time.Date(w.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// To returns the last instant of December 31 of the end year.
func (w Window) To() time.Time {
	return time.Date(w.EndYear+1, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// Shift moves the window forward by steps years.
func (w Window) Shift(steps int) Window {
	return Window{StartYear: w.StartYear + steps, EndYear: w.EndYear + steps}
}

// ParseWindow parses a "start:end" label.
func ParseWindow(label string) (Window, error) {
	var w Window
	if _, err := fmt.Sscanf(label, "%d:%d", &w.StartYear, &w.EndYear); err != nil {
		return Window{}, fmt.Errorf("invalid window label %q: %w", label, err)
	}
	if w.EndYear < w.StartYear {
		return Window{}, fmt.Errorf("invalid window label %q: end before start", label)
	}
	return w, nil
}

// GenerateWindows returns windows (s, s+length) for every start year s with
// s+length ≤ lastYear, in ascending order.
func GenerateWindows(firstYear, lastYear, length int) []Window {
	if length < 0 {
		return nil
	}
	var windows []Window
	for s := firstYear; s+length <= lastYear; s++ {
		windows = append(windows, Window{StartYear: s, EndYear: s + length})
	}
	return windows
}
