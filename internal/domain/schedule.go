package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// canonicalDays is the iteration order used for schedules (Monday first).
var canonicalDays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// CanonicalDays returns the seven weekdays in schedule order, Monday first.
func CanonicalDays() []time.Weekday {
	days := make([]time.Weekday, len(canonicalDays))
	copy(days, canonicalDays)
	return days
}

// dayRank maps a weekday to its position in canonicalDays.
func dayRank(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseWeekday parses one of the seven English weekday names (case-insensitive).
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.TrimSpace(s)
	for _, d := range canonicalDays {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrMalformedSchedule, s)
}

// TimeOfDay is a wall-clock time with minute granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" or "H:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time format %q", ErrMalformedSchedule, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: invalid hour in %q", ErrMalformedSchedule, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: invalid minute in %q", ErrMalformedSchedule, s)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: time out of range %q", ErrMalformedSchedule, s)
	}
	return t, nil
}

// TimeOfDayOf truncates t to its hour and minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Window is the active interval for one weekday. Both ends are inclusive.
type Window struct {
	Day   time.Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether t falls on the window's weekday and inside [Start, End].
// Only weekday and time of day are compared; the date is ignored.
func (w Window) Contains(t time.Time) bool {
	if t.Weekday() != w.Day {
		return false
	}
	now := TimeOfDayOf(t).Minutes()
	return w.Start.Minutes() <= now && now <= w.End.Minutes()
}

func (w Window) String() string {
	return fmt.Sprintf("%s=%s-%s", w.Day, w.Start, w.End)
}

func (w Window) validate() error {
	if w.Day < time.Sunday || w.Day > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", ErrMalformedSchedule, int(w.Day))
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("%w: %s has a time out of range", ErrMalformedSchedule, w)
	}
	if w.End.Minutes() < w.Start.Minutes() {
		return fmt.Errorf("%w: %s ends before it starts (overnight windows are not supported)",
			ErrMalformedSchedule, w)
	}
	return nil
}

// DaySelection is one row of the weekly picker: a weekday, whether it is
// enabled, and its start/end times.
type DaySelection struct {
	Day     time.Weekday
	Enabled bool
	Start   TimeOfDay
	End     TimeOfDay
}

// Schedule is an immutable weekly set of active windows, at most one per weekday,
// kept in canonical order (Monday first). The zero value is an empty schedule
// that is never active.
type Schedule struct {
	windows []Window
}

// NewSchedule validates windows and returns them as a Schedule ordered
// Monday..Sunday. Any invalid window or repeated weekday fails with
// ErrMalformedSchedule.
func NewSchedule(windows ...Window) (Schedule, error) {
	seen := make(map[time.Weekday]bool, len(windows))
	sorted := make([]Window, 0, len(windows))

	for _, w := range windows {
		if err := w.validate(); err != nil {
			return Schedule{}, err
		}
		if seen[w.Day] {
			return Schedule{}, fmt.Errorf("%w: %s appears more than once", ErrMalformedSchedule, w.Day)
		}
		seen[w.Day] = true
		sorted = append(sorted, w)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return dayRank(sorted[i].Day) < dayRank(sorted[j].Day)
	})

	return Schedule{windows: sorted}, nil
}

// ScheduleFromSelections builds a Schedule from picker rows, keeping only the
// enabled ones.
func ScheduleFromSelections(selections []DaySelection) (Schedule, error) {
	windows := make([]Window, 0, len(selections))
	for _, s := range selections {
		if !s.Enabled {
			continue
		}
		windows = append(windows, Window{Day: s.Day, Start: s.Start, End: s.End})
	}
	return NewSchedule(windows...)
}

// IsActive reports whether blocking is in force at now.
func (s Schedule) IsActive(now time.Time) bool {
	for _, w := range s.windows {
		if w.Day == now.Weekday() {
			return w.Contains(now)
		}
	}
	return false
}

// WindowFor returns the window configured for day, if any.
func (s Schedule) WindowFor(day time.Weekday) (Window, bool) {
	for _, w := range s.windows {
		if w.Day == day {
			return w, true
		}
	}
	return Window{}, false
}

// Windows returns a copy of the configured windows in canonical order.
func (s Schedule) Windows() []Window {
	out := make([]Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// IsEmpty reports whether no weekday is configured.
func (s Schedule) IsEmpty() bool {
	return len(s.windows) == 0
}

func (s Schedule) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}
	parts := make([]string, len(s.windows))
	for i, w := range s.windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, " ")
}
