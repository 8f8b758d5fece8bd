package ics

import (
	"log"
	"time"

	"github.com/teambition/rrule-go"
)

// Caps to keep a hostile or misconfigured feed from exploding into an
// unbounded shift import.
const (
	maxOccurrencesPerEvent = 500
	defaultExpandHorizon   = 365 * 24 * time.Hour
)

// Expand turns parsed events into concrete single instances. Non-recurring
// events pass through unchanged; RRULE events are expanded within
// [now-horizon/4, now+horizon] with EXDATEs removed. Expanded instances get
// a per-occurrence UID suffix so each one reconciles independently.
func Expand(events []RemoteEvent, now time.Time, horizon time.Duration) []RemoteEvent {
	if horizon <= 0 {
		horizon = defaultExpandHorizon
	}
	rangeStart := now.Add(-horizon / 4)
	rangeEnd := now.Add(horizon)

	var out []RemoteEvent
	for _, ev := range events {
		if ev.RawRRule == "" {
			out = append(out, ev)
			continue
		}
		out = append(out, expandRecurring(ev, rangeStart, rangeEnd)...)
	}
	return out
}

func expandRecurring(ev RemoteEvent, rangeStart, rangeEnd time.Time) []RemoteEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		log.Printf("Skipping unparseable RRULE for event %s: %v", ev.UID, err)
		// Fall back to the base instance so the event is not lost entirely.
		return []RemoteEvent{ev}
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)

	times := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(times) > maxOccurrencesPerEvent {
		log.Printf("Truncating recurrence expansion for event %s at %d occurrences", ev.UID, maxOccurrencesPerEvent)
		times = times[:maxOccurrencesPerEvent]
	}

	out := make([]RemoteEvent, 0, len(times))
	for _, start := range times {
		inst := ev
		inst.Start = start
		inst.End = start.Add(duration)
		inst.RawRRule = ""
		inst.ExDates = nil
		// Occurrence-qualified UID keeps the reconciliation key unique per instance.
		inst.UID = ev.UID + "/" + start.UTC().Format("20060102T150405Z")
		out = append(out, inst)
	}
	return out
}
