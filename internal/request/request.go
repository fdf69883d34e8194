// Package request decodes named event parameters (query strings, form
// bodies, JSON documents and CLI flags) into a model.EventRequest.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"icsgen/internal/ics"
	"icsgen/internal/model"
)

// Parameter names, shared by query strings, form bodies and JSON documents.
const (
	ParamLabel         = "label"
	ParamStartDate     = "startDate"
	ParamEndDate       = "endDate"
	ParamDuration      = "duration"
	ParamFullDays      = "fullDays"
	ParamDescription   = "description"
	ParamLocation      = "location"
	ParamURL           = "url"
	ParamOrganizerMail = "organizerMail"
	ParamAttendees     = "attendees"
	ParamAlarm         = "alarm"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Params is the JSON shape of an event request. Absent and null fields are
// None; the builder treats blank strings as absent too.
type Params struct {
	Label         string            `json:"label"`
	StartDate     string            `json:"startDate"`
	EndDate       mo.Option[string] `json:"endDate"`
	Duration      mo.Option[string] `json:"duration"`
	FullDays      bool              `json:"fullDays"`
	Description   mo.Option[string] `json:"description"`
	Location      mo.Option[string] `json:"location"`
	URL           mo.Option[string] `json:"url"`
	OrganizerMail mo.Option[string] `json:"organizerMail"`
	Attendees     mo.Option[string] `json:"attendees"`
	Alarm         mo.Option[string] `json:"alarm"`
}

// Request converts p into an EventRequest, resolving local date-times and
// plain dates in loc (UTC when nil).
func (p *Params) Request(loc *time.Location) (model.EventRequest, error) {
	if loc == nil {
		loc = time.UTC
	}

	req := model.EventRequest{
		Label:         p.Label,
		Duration:      p.Duration,
		FullDays:      p.FullDays,
		Description:   p.Description,
		Location:      p.Location,
		URL:           p.URL,
		OrganizerMail: p.OrganizerMail,
		Attendees:     p.Attendees,
		Alarm:         p.Alarm,
	}

	if strings.TrimSpace(p.StartDate) != "" {
		start, err := ParseDate(ParamStartDate, p.StartDate, loc)
		if err != nil {
			return model.EventRequest{}, err
		}
		req.Start = start
	}

	if v, ok := p.EndDate.Get(); ok && strings.TrimSpace(v) != "" {
		end, err := ParseDate(ParamEndDate, v, loc)
		if err != nil {
			return model.EventRequest{}, err
		}
		req.End = mo.Some(end)
	}

	return req, nil
}

// FromValues decodes query or form values. Parameters that are not present
// stay None; present parameters keep their (possibly blank) text.
func FromValues(values url.Values, loc *time.Location) (model.EventRequest, error) {
	p := Params{
		Label:         values.Get(ParamLabel),
		StartDate:     values.Get(ParamStartDate),
		EndDate:       optional(values, ParamEndDate),
		Duration:      optional(values, ParamDuration),
		Description:   optional(values, ParamDescription),
		Location:      optional(values, ParamLocation),
		URL:           optional(values, ParamURL),
		OrganizerMail: optional(values, ParamOrganizerMail),
		Attendees:     optional(values, ParamAttendees),
		Alarm:         optional(values, ParamAlarm),
	}

	fullDays, err := ParseBool(ParamFullDays, values.Get(ParamFullDays))
	if err != nil {
		return model.EventRequest{}, err
	}
	p.FullDays = fullDays

	return p.Request(loc)
}

// FromJSON decodes a JSON Params document from r.
func FromJSON(r io.Reader, loc *time.Location) (model.EventRequest, error) {
	var p Params
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return model.EventRequest{}, &ics.ParseError{Field: "body", Value: "", Err: err}
	}
	return p.Request(loc)
}

func optional(values url.Values, key string) mo.Option[string] {
	if !values.Has(key) {
		return mo.None[string]()
	}
	return mo.Some(values.Get(key))
}

// Date-time layouts with an explicit offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// Local date-time and date layouts, resolved in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or date-time. A trailing "[Zone/Name]"
// annotation is ignored; the numeric offset is authoritative. Values without
// an offset are taken in loc.
func ParseDate(field, s string, loc *time.Location) (time.Time, error) {
	text := strings.TrimSpace(s)
	if i := strings.IndexByte(text, '['); i > 0 && strings.HasSuffix(text, "]") {
		text = text[:i]
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ics.ParseError{
		Field: field,
		Value: s,
		Err:   errors.New("expected ISO-8601 date or date-time"),
	}
}

// ParseBool parses a boolean parameter; an empty value is false.
func ParseBool(field, s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &ics.ParseError{Field: field, Value: s, Err: errors.New("expected true or false")}
	}
	return b, nil
}
