package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"
)

// ParsedEvent is the VEVENT of a single-event document read back into Go
// values. Text values are unescaped.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Organizer   string
	Attendees   []string

	Start    time.Time
	End      mo.Option[time.Time]
	Duration mo.Option[Duration]
	AllDay   bool

	// Triggers holds the TRIGGER value of every VALARM.
	Triggers []string
}

// ParseDocument parses a document holding exactly one VEVENT. Timed values
// are returned in UTC, all-day dates at midnight UTC.
func ParseDocument(data []byte) (ParsedEvent, error) {
	if len(data) == 0 {
		return ParsedEvent{}, errors.New("empty calendar document")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return ParsedEvent{}, fmt.Errorf("parse calendar: %w", err)
	}

	events := cal.Events()
	if len(events) != 1 {
		return ParsedEvent{}, fmt.Errorf("expected 1 VEVENT, found %d", len(events))
	}
	return parseVEvent(events[0])
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	out.UID = ve.Id()
	if out.UID == "" {
		return out, errors.New("missing UID")
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.URL = propValue(ve, ical.ComponentPropertyUrl)
	out.Organizer = strings.TrimPrefix(propValue(ve, ical.ComponentPropertyOrganizer), "mailto:")
	for _, a := range ve.Attendees() {
		out.Attendees = append(out.Attendees, a.Email())
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)
	start, err := parseICSTime(dtStart.Value)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, err := parseICSTime(p.Value)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = mo.Some(end)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		d, err := ParseDuration("DURATION", p.Value)
		if err != nil {
			return out, err
		}
		out.Duration = mo.Some(d)
	}
	if out.End.IsPresent() && out.Duration.IsPresent() {
		return out, errors.New("both DTEND and DURATION present")
	}

	for _, alarm := range ve.Alarms() {
		if p := alarm.GetProperty(ical.ComponentPropertyTrigger); p != nil {
			out.Triggers = append(out.Triggers, p.Value)
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// isDateValue reports VALUE=DATE or a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses the DATE and UTC DATE-TIME forms the builder writes.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.Parse("20060102T150405", v)
	default:
		return time.Parse("20060102", v)
	}
}
