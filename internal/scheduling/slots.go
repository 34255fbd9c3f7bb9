package scheduling

import (
	"fmt"
	"sort"
	"time"

	"medibook-server/internal/models"
)

// Template is a business-hours slot layout: slots start every Step from Start,
// and the last slot ends no later than End.
type Template struct {
	Start time.Duration // offset from midnight
	End   time.Duration
	Step  time.Duration
}

// DefaultTemplate is 09:00 to 17:00 in 30 minute slots.
var DefaultTemplate = Template{
	Start: 9 * time.Hour,
	End:   17 * time.Hour,
	Step:  30 * time.Minute,
}

// ParseTemplate builds a Template from "HH:MM" bounds and a slot length in minutes.
func ParseTemplate(start, end string, minutes int) (Template, error) {
	s, err := parseClock(start)
	if err != nil {
		return Template{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Template{}, err
	}
	t := Template{Start: s, End: e, Step: time.Duration(minutes) * time.Minute}
	if t.Step <= 0 || t.Start+t.Step > t.End {
		return Template{}, fmt.Errorf("slot template %s-%s/%dm is empty", start, end, minutes)
	}
	return t, nil
}

// Slots lists the slot start times of the template as "HH:MM".
func (t Template) Slots() []string {
	var out []string
	if t.Step <= 0 {
		return out
	}
	for at := t.Start; at+t.Step <= t.End; at += t.Step {
		out = append(out, formatClock(at))
	}
	return out
}

func scheduleSlots(s models.DoctorSchedule) ([]string, error) {
	minutes := s.SlotMinutes
	if minutes <= 0 {
		minutes = int(DefaultTemplate.Step / time.Minute)
	}
	t, err := ParseTemplate(s.StartTime, s.EndTime, minutes)
	if err != nil {
		return nil, err
	}
	return t.Slots(), nil
}

// mergeSlots unions slot lists and sorts them. "HH:MM" sorts lexically in time order.
func mergeSlots(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
