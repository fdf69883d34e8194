package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"icsgen/internal/model"
)

const (
	// DefaultProductID is written as PRODID when no other is configured.
	DefaultProductID = "-//icsgen//icsgen 1.0//EN"

	// NewLineCRLF is the line terminator required by RFC 5545.
	NewLineCRLF = "\r\n"
	// NewLineLF is accepted by most consumers and handy for diffs.
	NewLineLF = "\n"

	fileExtension = ".ics"
)

// Builder turns an EventRequest into a single-event calendar document.
//
// A Builder only holds immutable options and is safe for concurrent use.
type Builder struct {
	productID    string
	newLine      string
	newUID       func() string
	stampClock   func() time.Time
	maxAttendees int
	verify       bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithProductID sets the PRODID of generated calendars.
func WithProductID(id string) Option {
	return func(b *Builder) {
		if id != "" {
			b.productID = id
		}
	}
}

// WithNewLine sets the line terminator (NewLineCRLF or NewLineLF).
func WithNewLine(nl string) Option {
	return func(b *Builder) {
		if nl != "" {
			b.newLine = nl
		}
	}
}

// WithUIDGenerator replaces the random UID generator.
func WithUIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newUID = fn
		}
	}
}

// WithStampClock enables DTSTAMP, taken from fn at build time. Without it
// no DTSTAMP is written and two builds of the same request only differ in
// their UID line.
func WithStampClock(fn func() time.Time) Option {
	return func(b *Builder) {
		b.stampClock = fn
	}
}

// WithMaxAttendees caps the attendee list; zero means unlimited.
func WithMaxAttendees(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.maxAttendees = n
		}
	}
}

// WithVerify makes every build parse its own output back and fail when the
// document does not round-trip.
func WithVerify(on bool) Option {
	return func(b *Builder) {
		b.verify = on
	}
}

// NewBuilder returns a Builder with CRLF line endings and random UUIDs.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		productID: DefaultProductID,
		newLine:   NewLineCRLF,
		newUID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is a built document together with the mode its span resolved to.
type Result struct {
	model.EventOutput
	Mode Mode
}

// Build validates req and serializes it. On error nothing is returned; the
// error is a *ValidationError or *ParseError for bad requests.
func (b *Builder) Build(req model.EventRequest) (model.EventOutput, error) {
	res, err := b.BuildResult(req)
	if err != nil {
		return model.EventOutput{}, err
	}
	return res.EventOutput, nil
}

// BuildResult is Build, additionally reporting the resolved span mode.
func (b *Builder) BuildResult(req model.EventRequest) (Result, error) {
	if strings.TrimSpace(req.Label) == "" {
		return Result{}, newValidationError("label is required", "label")
	}

	sp, err := resolveSpan(req)
	if err != nil {
		return Result{}, err
	}

	attendees := splitAttendees(req.Attendees)
	if b.maxAttendees > 0 && len(attendees) > b.maxAttendees {
		return Result{}, newValidationError(
			fmt.Sprintf("too many attendees: %d (max %d)", len(attendees), b.maxAttendees),
			"attendees",
		)
	}

	trigger := mo.None[AlarmTrigger]()
	if alarmText, ok := presentString(req.Alarm); ok {
		d, err := ParseDuration("alarm", alarmText)
		if err != nil {
			return Result{}, err
		}
		trigger = mo.Some(NewAlarmTrigger(d))
	}

	uid := b.newUID()
	cal := ical.NewCalendar()
	cal.SetProductId(b.productID)

	ev := cal.AddEvent(uid)
	ev.SetSummary(textValue(req.Label))
	sp.apply(ev)
	if b.stampClock != nil {
		ev.SetDtStampTime(b.stampClock())
	}

	if v, ok := presentString(req.Description); ok {
		ev.SetDescription(textValue(v))
	}
	if v, ok := presentString(req.Location); ok {
		ev.SetLocation(textValue(v))
	}
	if v, ok := presentString(req.URL); ok {
		ev.SetURL(strings.TrimSpace(v))
	}
	if v, ok := presentString(req.OrganizerMail); ok {
		ev.SetOrganizer(strings.TrimSpace(v))
	}
	for _, a := range attendees {
		ev.AddAttendee(a)
	}

	if t, ok := trigger.Get(); ok {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(t.String(), &ical.KeyValues{
			Key:   string(ical.ParameterRelated),
			Value: []string{"START"},
		})
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf, ical.WithNewLine(b.newLine)); err != nil {
		return Result{}, fmt.Errorf("serialize calendar: %w", err)
	}
	if b.verify {
		if err := verifyDocument(buf.Bytes(), uid, sp.mode()); err != nil {
			return Result{}, fmt.Errorf("verify output: %w", err)
		}
	}

	return Result{
		EventOutput: model.EventOutput{
			Data:      buf.Bytes(),
			Filename:  SanitizeFilename(req.Label) + fileExtension,
			MediaType: model.MediaTypeCalendar,
			UID:       uid,
		},
		Mode: sp.mode(),
	}, nil
}

// verifyDocument checks that data parses as one event with the given UID and
// the end representation of mode.
func verifyDocument(data []byte, uid string, mode Mode) error {
	ev, err := ParseDocument(data)
	if err != nil {
		return err
	}
	if ev.UID != uid {
		return fmt.Errorf("UID mismatch: got %q, want %q", ev.UID, uid)
	}

	var wantAllDay, wantEnd, wantDur bool
	switch mode {
	case ModeTimedEnd:
		wantEnd = true
	case ModeTimedDuration:
		wantDur = true
	case ModeAllDaySpan:
		wantAllDay = true
		wantEnd, wantDur = ev.End.IsPresent(), ev.Duration.IsPresent()
		if wantEnd == wantDur {
			return errors.New("all-day span without DTEND or DURATION")
		}
	case ModeAllDaySingle:
		wantAllDay = true
	}
	if ev.AllDay != wantAllDay || ev.End.IsPresent() != wantEnd || ev.Duration.IsPresent() != wantDur {
		return fmt.Errorf("document does not match mode %s", mode)
	}
	return nil
}

// splitAttendees splits the comma separated list and trims every entry. A
// blank list yields no attendees; entries are not filtered any further.
func splitAttendees(o mo.Option[string]) []string {
	list, ok := presentString(o)
	if !ok {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// textValue folds CR and CRLF into LF, the only line break TEXT escaping
// knows about.
func textValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
