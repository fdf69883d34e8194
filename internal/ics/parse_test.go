package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icsgen/internal/model"
)

func TestParseDocument_RoundTrip(t *testing.T) {
	out, err := NewBuilder(fixedUID("uid-7")).Build(model.EventRequest{
		Label:         "Design review; v2",
		Start:         time.Date(2024, 5, 23, 15, 2, 47, 0, paris),
		Duration:      mo.Some("PT1H30M"),
		Description:   mo.Some("multi\nline, text"),
		Location:      mo.Some("HQ"),
		URL:           mo.Some("https://example.com/x"),
		OrganizerMail: mo.Some("boss@example.com"),
		Attendees:     mo.Some("a@b.com, c@d.com"),
		Alarm:         mo.Some("PT15M"),
	})
	require.NoError(t, err)

	ev, err := ParseDocument(out.Data)
	require.NoError(t, err)

	assert.Equal(t, "uid-7", ev.UID)
	assert.Equal(t, "Design review; v2", ev.Summary)
	assert.Equal(t, "multi\nline, text", ev.Description)
	assert.Equal(t, "HQ", ev.Location)
	assert.Equal(t, "https://example.com/x", ev.URL)
	assert.Equal(t, "boss@example.com", ev.Organizer)
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, ev.Attendees)
	assert.Equal(t, time.Date(2024, 5, 23, 13, 2, 47, 0, time.UTC), ev.Start)
	assert.False(t, ev.AllDay)
	assert.True(t, ev.End.IsAbsent())
	assert.Equal(t, Duration{Hours: 1, Minutes: 30}, ev.Duration.MustGet())
	assert.Equal(t, []string{"-P0DT0H15M"}, ev.Triggers)
}

func TestParseDocument_AllDay(t *testing.T) {
	out, err := NewBuilder().Build(model.EventRequest{
		Label:    label,
		Start:    time.Date(2030, 5, 28, 0, 0, 0, 0, time.UTC),
		End:      mo.Some(time.Date(2030, 5, 31, 0, 0, 0, 0, time.UTC)),
		FullDays: true,
	})
	require.NoError(t, err)

	ev, err := ParseDocument(out.Data)
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
	assert.Equal(t, time.Date(2030, 5, 28, 0, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2030, 5, 31, 0, 0, 0, 0, time.UTC), ev.End.MustGet())
	assert.Empty(t, ev.Triggers)
}

func TestParseDocument_Invalid(t *testing.T) {
	doc := func(body ...string) []byte {
		ls := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:x"}, body...)
		ls = append(ls, "END:VCALENDAR")
		return []byte(strings.Join(ls, "\r\n") + "\r\n")
	}

	tests := map[string][]byte{
		"empty":     nil,
		"no events": doc(),
		"two events": doc(
			"BEGIN:VEVENT", "UID:a", "DTSTART:20240101T000000Z", "END:VEVENT",
			"BEGIN:VEVENT", "UID:b", "DTSTART:20240101T000000Z", "END:VEVENT",
		),
		"no start":     doc("BEGIN:VEVENT", "UID:a", "END:VEVENT"),
		"bad start":    doc("BEGIN:VEVENT", "UID:a", "DTSTART:tomorrow", "END:VEVENT"),
		"end and dur":  doc("BEGIN:VEVENT", "UID:a", "DTSTART:20240101T000000Z", "DTEND:20240101T010000Z", "DURATION:PT1H", "END:VEVENT"),
		"bad duration": doc("BEGIN:VEVENT", "UID:a", "DTSTART:20240101T000000Z", "DURATION:1h", "END:VEVENT"),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument(data)
			assert.Error(t, err)
		})
	}
}

func TestBuild_Verify(t *testing.T) {
	b := NewBuilder(WithVerify(true))
	for _, req := range []model.EventRequest{
		{Label: label, Start: time.Now(), Duration: mo.Some("PT1H")},
		{Label: label, Start: time.Now(), End: mo.Some(time.Now().Add(time.Hour))},
		{Label: label, Start: time.Now(), FullDays: true},
		{Label: label, Start: time.Now(), Duration: mo.Some("P2D"), FullDays: true},
		{Label: label, Start: time.Now(), End: mo.Some(time.Now().AddDate(0, 0, 2)), FullDays: true},
	} {
		_, err := b.Build(req)
		assert.NoError(t, err)
	}
}

func TestVerifyDocument_Mismatch(t *testing.T) {
	out, err := NewBuilder(fixedUID("u1")).Build(model.EventRequest{
		Label:    label,
		Start:    time.Now(),
		Duration: mo.Some("PT1H"),
	})
	require.NoError(t, err)

	assert.Error(t, verifyDocument(out.Data, "u2", ModeTimedDuration))
	assert.Error(t, verifyDocument(out.Data, "u1", ModeTimedEnd))
	assert.Error(t, verifyDocument(out.Data, "u1", ModeAllDaySingle))
	assert.NoError(t, verifyDocument(out.Data, "u1", ModeTimedDuration))
}
