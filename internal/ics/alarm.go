package ics

import (
	"fmt"
	"time"
)

// AlarmTrigger is the magnitude of a "before start" reminder, decomposed into
// days, hours and minutes.
type AlarmTrigger struct {
	Days    int
	Hours   int
	Minutes int
}

// NewAlarmTrigger drops the sign of d and decomposes its total length into
// 24-hour days, hours and minutes. Weeks fold into days; seconds are
// truncated.
func NewAlarmTrigger(d Duration) AlarmTrigger {
	total := d.Std()
	if total < 0 {
		total = -total
	}
	minutes := int(total / time.Minute)
	return AlarmTrigger{
		Days:    minutes / (24 * 60),
		Hours:   minutes / 60 % 24,
		Minutes: minutes % 60,
	}
}

// String renders the trigger value. The leading "-" always places the
// reminder before the event start.
func (t AlarmTrigger) String() string {
	return fmt.Sprintf("-P%dDT%dH%dM", t.Days, t.Hours, t.Minutes)
}
