package ics

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is an RFC 5545 dur-value: ISO-8601 duration restricted to weeks,
// days, hours, minutes and seconds. Components are kept as written so that
// String re-emits "PT1H" as "PT1H" rather than a normalized form.
type Duration struct {
	Negative bool
	Weeks    int
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

var (
	errEmptyDuration     = errors.New("empty duration")
	errMalformedDuration = errors.New("expected [+-]P[nW][nD][T[nH][nM][nS]]")
)

// ParseDuration parses duration text such as "PT1H30M", "P3D" or "-P1DT2H".
// Designators are case-insensitive. field names the request parameter in
// the returned *ParseError.
func ParseDuration(field, s string) (Duration, error) {
	raw := s
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Duration{}, &ParseError{Field: field, Value: raw, Err: errEmptyDuration}
	}

	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return Duration{}, &ParseError{Field: field, Value: raw, Err: errMalformedDuration}
	}
	// "P", "PT" and "P1DT" match the pattern but carry no (time) component.
	if strings.HasSuffix(s, "P") || strings.HasSuffix(s, "T") {
		return Duration{}, &ParseError{Field: field, Value: raw, Err: errMalformedDuration}
	}

	var d Duration
	d.Negative = m[1] == "-"
	targets := []*int{&d.Weeks, &d.Days, &d.Hours, &d.Minutes, &d.Seconds}
	for i, target := range targets {
		v := m[i+2]
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Duration{}, &ParseError{Field: field, Value: raw, Err: err}
		}
		*target = n
	}
	return d, nil
}

// String formats d back into dur-value text. An all-zero duration is "P0D".
func (d Duration) String() string {
	var b strings.Builder
	if d.Negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')

	writeComponent := func(n int, designator byte) {
		if n != 0 {
			b.WriteString(strconv.Itoa(n))
			b.WriteByte(designator)
		}
	}
	writeComponent(d.Weeks, 'W')
	writeComponent(d.Days, 'D')
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteByte('T')
		writeComponent(d.Hours, 'H')
		writeComponent(d.Minutes, 'M')
		writeComponent(d.Seconds, 'S')
	}

	if b.Len() == 1 || (d.Negative && b.Len() == 2) {
		return "P0D"
	}
	return b.String()
}

// IsZero reports whether every component is zero.
func (d Duration) IsZero() bool {
	return d.Weeks == 0 && d.Days == 0 && d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}

// Std converts d into a time.Duration, counting a day as 24 hours.
func (d Duration) Std() time.Duration {
	total := time.Duration(d.Weeks)*7*24*time.Hour +
		time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second
	if d.Negative {
		return -total
	}
	return total
}
