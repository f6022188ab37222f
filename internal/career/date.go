package career

import (
	"fmt"
	"time"
)

// DateLayout is the layout used when writing attempt dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "2006.01.02"}

// ParseDate parses a campaign date in either YYYY-MM-DD or YYYY.MM.DD form.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is not in a recognized format (YYYY-MM-DD or YYYY.MM.DD)", s)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
