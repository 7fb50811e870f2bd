// Package domain holds small shared domain types used across modules.
package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Period identifies a reporting window for an indicator, formatted as one of:
//
//	"2024"      annual
//	"2024-S1"   semester (S1, S2)
//	"2024-Q3"   quarter  (Q1..Q4)
//	"2024-M07"  month    (M01..M12)
//
// The string form doubles as a stable cache and storage key component.
type Period string

var periodPattern = regexp.MustCompile(`^(\d{4})(?:-(S[12]|Q[1-4]|M(?:0[1-9]|1[0-2])))?$`)

// ParsePeriod validates the textual form and returns a Period.
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return "", fmt.Errorf("invalid period %q", s)
	}
	return Period(s), nil
}

// IsValid reports whether the period has a recognized textual form.
func (p Period) IsValid() bool {
	return periodPattern.MatchString(string(p))
}

// Year returns the calendar year the period belongs to.
func (p Period) Year() int {
	m := periodPattern.FindStringSubmatch(string(p))
	if m == nil {
		return 0
	}
	year, _ := strconv.Atoi(m[1])
	return year
}

// Bounds returns the inclusive start and exclusive end instants of the
// period in UTC. An invalid period yields two zero times.
func (p Period) Bounds() (start, end time.Time) {
	m := periodPattern.FindStringSubmatch(string(p))
	if m == nil {
		return time.Time{}, time.Time{}
	}
	year, _ := strconv.Atoi(m[1])
	sub := m[2]

	switch {
	case sub == "":
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	case sub[0] == 'S':
		n, _ := strconv.Atoi(sub[1:])
		start = time.Date(year, time.Month((n-1)*6+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 6, 0)
	case sub[0] == 'Q':
		n, _ := strconv.Atoi(sub[1:])
		start = time.Date(year, time.Month((n-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, 0)
	default: // M
		n, _ := strconv.Atoi(sub[1:])
		start = time.Date(year, time.Month(n), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	if start.IsZero() {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

func (p Period) String() string { return string(p) }
