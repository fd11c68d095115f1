// Package dateutils parses and compares the dates found in bank statements.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date layouts used by statement exports.
const (
	DateLayoutISO       = "2006-01-02"
	DateLayoutBrazilian = "02/01/2006"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutFull      = "2006-01-02 15:04:05"
)

// CommonFormats lists the layouts tried by ParseDate, in order. Day-first layouts
// come before month-first ones because statements are issued in day-first locales.
var CommonFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	DateLayoutFull,
	DateLayoutISO,
	DateLayoutBrazilian,
	DateLayoutEuropean,
	"02-01-2006",
	"2/1/2006",
	"02/01/06",
	"2006/01/02",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

var multiSpace = regexp.MustCompile(`\s+`)

// CleanDateString trims and collapses whitespace.
func CleanDateString(dateStr string) string {
	return multiSpace.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseDate parses dateStr with the first matching layout in CommonFormats and
// returns the time together with the layout that matched.
func ParseDate(dateStr string) (time.Time, string, error) {
	clean := CleanDateString(dateStr)
	if clean == "" {
		return time.Time{}, "", fmt.Errorf("empty date")
	}
	for _, layout := range CommonFormats {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// LayoutHasClock reports whether layout includes a time of day.
func LayoutHasClock(layout string) bool {
	return strings.Contains(layout, "15:04")
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// CompareDates compares two dates by calendar day and returns:
//
//	-1 if date1 is before date2
//	 0 if date1 is equal to date2
//	 1 if date1 is after date2
func CompareDates(date1, date2 time.Time) int {
	date1 = time.Date(date1.Year(), date1.Month(), date1.Day(), 0, 0, 0, 0, time.UTC)
	date2 = time.Date(date2.Year(), date2.Month(), date2.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case date1.Before(date2):
		return -1
	case date1.After(date2):
		return 1
	default:
		return 0
	}
}

// IsAfterDay reports whether date falls on a later calendar day than ref,
// comparing each in its own location.
func IsAfterDay(date, ref time.Time) bool {
	return CompareDates(date, ref) > 0
}
