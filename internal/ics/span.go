package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	"icsgen/internal/model"
)

// Mode names the resolved shape of an event's time span.
type Mode string

const (
	ModeTimedEnd      Mode = "timed_end"
	ModeTimedDuration Mode = "timed_duration"
	ModeAllDaySpan    Mode = "all_day_span"
	ModeAllDaySingle  Mode = "all_day_single"
)

// span is the closed set of start/end representations. It is resolved once
// per build, so DTEND and DURATION can never both be written.
type span interface {
	mode() Mode
	apply(ev *ical.VEvent)
}

type timedWithEnd struct {
	start, end time.Time
}

type timedWithDuration struct {
	start time.Time
	dur   Duration
}

// allDaySpan ends either on an exclusive end date (left) or after a
// duration (right).
type allDaySpan struct {
	start time.Time
	until mo.Either[time.Time, Duration]
}

type allDaySingle struct {
	start time.Time
}

func (timedWithEnd) mode() Mode      { return ModeTimedEnd }
func (timedWithDuration) mode() Mode { return ModeTimedDuration }
func (allDaySpan) mode() Mode        { return ModeAllDaySpan }
func (allDaySingle) mode() Mode      { return ModeAllDaySingle }

func (s timedWithEnd) apply(ev *ical.VEvent) {
	ev.SetStartAt(s.start)
	ev.SetEndAt(s.end)
}

func (s timedWithDuration) apply(ev *ical.VEvent) {
	ev.SetStartAt(s.start)
	ev.SetProperty(ical.ComponentPropertyDuration, s.dur.String())
}

func (s allDaySpan) apply(ev *ical.VEvent) {
	ev.SetAllDayStartAt(s.start)
	if end, ok := s.until.Left(); ok {
		ev.SetAllDayEndAt(end)
		return
	}
	ev.SetProperty(ical.ComponentPropertyDuration, s.until.MustRight().String())
}

func (s allDaySingle) apply(ev *ical.VEvent) {
	ev.SetAllDayStartAt(s.start)
}

// resolveSpan validates the start/end/duration/fullDays combination of req
// and returns its span. An end takes precedence over a duration.
func resolveSpan(req model.EventRequest) (span, error) {
	if req.Start.IsZero() {
		return nil, newValidationError("startDate is required", "startDate")
	}
	end, hasEnd := req.End.Get()
	durText, hasDur := presentString(req.Duration)

	if req.FullDays {
		start := dateOnly(req.Start)
		switch {
		case hasEnd:
			endDate := dateOnly(end)
			if endDate.Before(start) {
				return nil, newValidationError("endDate is before startDate", "startDate", "endDate")
			}
			return allDaySpan{start: start, until: mo.Left[time.Time, Duration](endDate)}, nil
		case hasDur:
			dur, err := parseEventDuration(durText)
			if err != nil {
				return nil, err
			}
			return allDaySpan{start: start, until: mo.Right[time.Time, Duration](dur)}, nil
		default:
			return allDaySingle{start: start}, nil
		}
	}

	switch {
	case hasEnd:
		if end.Before(req.Start) {
			return nil, newValidationError("endDate is before startDate", "startDate", "endDate")
		}
		return timedWithEnd{start: req.Start, end: end}, nil
	case hasDur:
		dur, err := parseEventDuration(durText)
		if err != nil {
			return nil, err
		}
		return timedWithDuration{start: req.Start, dur: dur}, nil
	default:
		return nil, newValidationError("both endDate and duration cannot be empty", "endDate", "duration")
	}
}

func parseEventDuration(s string) (Duration, error) {
	dur, err := ParseDuration("duration", s)
	if err != nil {
		return Duration{}, err
	}
	if dur.Negative {
		return Duration{}, newValidationError("duration must not be negative", "duration")
	}
	return dur, nil
}

// dateOnly keeps the calendar date of t in its own offset. The time of day
// is dropped; golang-ical formats all-day values without converting to UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// presentString returns the option's value when it is present and not blank.
func presentString(o mo.Option[string]) (string, bool) {
	v, ok := o.Get()
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
