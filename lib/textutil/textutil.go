package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// Normalize trims a string scraped from the portal: non-breaking
// spaces become regular ones, surrounding whitespace is dropped and
// inner runs are collapsed.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

var numberRegex = regexp.MustCompile(`-?\d(?:[\d ]*\d)?(?:[.,]\d+)?`)

// ParseFloat reads a number the way the portal renders them: comma or
// dot as the decimal separator, spaces as group separators, arbitrary
// text around the number ("руб.", labels). The first numeric token
// found is the value. A string without one parses as zero.
func ParseFloat(s string) (float64, error) {
	m := numberRegex.FindString(Normalize(s))
	if m == "" {
		return 0, nil
	}
	m = strings.ReplaceAll(m, " ", "")
	m = strings.ReplaceAll(m, ",", ".")
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v, nil
}

const (
	dateLayout      = "02.01.2006"
	shortDateLayout = "02.01.06"
)

var dateRegex = regexp.MustCompile(`\d{2}\.\d{2}\.(?:\d{4}|\d{2})`)

// ParseDate reads a day-precision portal date, dd.mm.yyyy or dd.mm.yy.
func ParseDate(s string) (time.Time, error) {
	s = Normalize(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(shortDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FindDate extracts the first date found anywhere in the string,
// including inside HTML attribute values.
func FindDate(s string) (time.Time, error) {
	m := dateRegex.FindString(s)
	if m == "" {
		return time.Time{}, fmt.Errorf("no date in %q", s)
	}
	return ParseDate(m)
}

// FormatDate renders a date the way the portal expects its query
// parameters, dd.mm.yyyy.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
