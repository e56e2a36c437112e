// Package ics serializes calendar events into the RFC 5545 text format
// calendar applications subscribe to.
package ics

import (
	"fmt"
	"strings"
	"time"
)

// ProdID identifies this application in generated feeds.
const ProdID = "-//Partners & Projects CRM//EN"

// Event is one feed entry. End is optional; the zero time omits it.
// UID seeds the event identifier and defaults to "evt".
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// Encoder renders feeds. Zone decides the calendar date of all-day
// events; timed events always encode in UTC. The now hook exists for
// deterministic tests.
type Encoder struct {
	Zone *time.Location
	now  func() time.Time
}

// NewEncoder returns an encoder whose all-day dates follow zone. A nil
// zone falls back to UTC.
func NewEncoder(zone *time.Location) *Encoder {
	if zone == nil {
		zone = time.UTC
	}
	return &Encoder{Zone: zone, now: time.Now}
}

// Encode renders one feed. The generation timestamp is captured once
// per call: every event of the feed shares it in UID and DTSTAMP.
func (e *Encoder) Encode(name string, events []Event) string {
	if name == "" {
		name = "Followups"
	}
	now := e.now()
	stamp := utcTimestamp(now)
	millis := now.UnixMilli()

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + ProdID + "\r\n")
	b.WriteString("X-WR-CALNAME:" + name + "\r\n")

	for i, ev := range events {
		seed := ev.UID
		if seed == "" {
			seed = "evt"
		}
		uid := fmt.Sprintf("%s-%d-%d@crm", seed, i, millis)

		b.WriteString("BEGIN:VEVENT\r\n")
		if ev.AllDay {
			b.WriteString("DTSTART;VALUE=DATE:" + e.localDate(ev.Start) + "\r\n")
			if !ev.End.IsZero() {
				b.WriteString("DTEND;VALUE=DATE:" + e.localDate(ev.End) + "\r\n")
			}
		} else {
			b.WriteString("DTSTART:" + utcTimestamp(ev.Start) + "\r\n")
			if !ev.End.IsZero() {
				b.WriteString("DTEND:" + utcTimestamp(ev.End) + "\r\n")
			}
		}
		b.WriteString("DTSTAMP:" + stamp + "\r\n")
		b.WriteString("UID:" + uid + "\r\n")
		if ev.Summary != "" {
			b.WriteString("SUMMARY:" + Escape(ev.Summary) + "\r\n")
		}
		if ev.Description != "" {
			b.WriteString("DESCRIPTION:" + Escape(ev.Description) + "\r\n")
		}
		if ev.Location != "" {
			b.WriteString("LOCATION:" + Escape(ev.Location) + "\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// localDate formats the calendar date of t in the encoder's zone, not
// in UTC, so an all-day event never shifts a day.
func (e *Encoder) localDate(t time.Time) string {
	return t.In(e.Zone).Format("20060102")
}

func utcTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// Escape applies the text escaping of RFC 5545 §3.3.11. The backslash
// is handled first so later replacements cannot double-escape.
func Escape(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, ",", `\,`)
	text = strings.ReplaceAll(text, ";", `\;`)
	return text
}
