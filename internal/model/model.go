package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/mo"
)

// MediaTypeCalendar is the media type of every generated document.
const MediaTypeCalendar = "text/calendar"

// EventRequest carries the named parameters of a single build. Optional
// parameters are mo.Option values; a present but blank string is treated as
// absent by the builder.
type EventRequest struct {
	// Label becomes the event SUMMARY and the base of the output filename.
	Label string

	// Start is the event start with an already-resolved offset.
	Start time.Time
	End   mo.Option[time.Time]

	// Duration is ISO-8601 duration text such as "PT1H30M" or "P3D".
	Duration mo.Option[string]

	// FullDays records the event as date-only (all-day).
	FullDays bool

	Description   mo.Option[string]
	Location      mo.Option[string]
	URL           mo.Option[string]
	OrganizerMail mo.Option[string]

	// Attendees is a comma separated list of e-mail addresses.
	Attendees mo.Option[string]

	// Alarm is an ISO-8601 duration before Start at which a display
	// reminder fires. The sign is ignored.
	Alarm mo.Option[string]
}

// EventOutput is the serialized calendar document of one build.
type EventOutput struct {
	Data      []byte
	Filename  string
	MediaType string
	// UID is the identifier assigned to the event.
	UID string
}

// WriteTo streams the document into w.
func (o EventOutput) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(o.Data)
	return int64(n), err
}

// Save writes the document into dir under o.Filename and returns the final
// path. The write goes through a temp file + rename so readers never observe
// a partial document.
func (o EventOutput) Save(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("output dir is empty")
	}
	if o.Filename == "" || strings.ContainsAny(o.Filename, `/\`) {
		return "", fmt.Errorf("invalid output filename %q", o.Filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".icsgen-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := o.WriteTo(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", err
	}

	path := filepath.Join(dir, o.Filename)
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}
	return path, nil
}
