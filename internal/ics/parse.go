package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// RemoteEvent is the normalized representation of one VEVENT instance from
// a remote feed. UID is the stable identifier used as the reconciliation
// key; for expanded recurrence instances it carries an occurrence suffix.
type RemoteEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	RawRRule    string
	ExDates     []time.Time
}

// Parse parses raw ICS content into remote events. Events without a UID or
// without a usable start time are skipped; a feed that yields zero events
// after parsing is reported as a content error.
func Parse(data []byte) ([]RemoteEvent, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing ICS: %w", err)
	}

	var events []RemoteEvent
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	if len(events) == 0 {
		return nil, &ContentError{Message: "feed contains no usable events"}
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent) (RemoteEvent, bool) {
	var ev RemoteEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return ev, false
	}
	ev.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return ev, false
	}
	ev.Start = start

	if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	}

	// All-day events carry VALUE=DATE or a bare YYYYMMDD value.
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if params := dtStart.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				ev.AllDay = true
			}
		}
		if !strings.Contains(dtStart.Value, "T") {
			ev.AllDay = true
		}
	}

	if ev.End.IsZero() {
		if ev.AllDay {
			ev.End = ev.Start.Add(24 * time.Hour)
		} else {
			ev.End = ev.Start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	return ev, true
}

// parseICSTime parses a basic ICS date or date-time value.
func parseICSTime(v string) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}
