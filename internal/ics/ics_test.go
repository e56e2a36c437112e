package ics

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func fixedEncoder(t *testing.T, zone string) *Encoder {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("load location %s: %v", zone, err)
	}
	enc := NewEncoder(loc)
	enc.now = func() time.Time {
		return time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	}
	return enc
}

func TestEscape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a,b;c\d`, `a\,b\;c\\d`},
		{"line1\nline2", `line1\nline2`},
		{`already\n`, `already\\n`},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Escape(tt.input); got != tt.expected {
				t.Errorf("Escape(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEscapeNoDoubleEscaping(t *testing.T) {
	input := "a,b;c\\d\n"
	want := `a\,b\;c\\d\n`
	if got := Escape(input); got != want {
		t.Fatalf("Escape(%q) = %q, want %q", input, got, want)
	}
}

func TestEncodeTimedEventUsesUTC(t *testing.T) {
	enc := fixedEncoder(t, "America/New_York")
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	out := enc.Encode("Followups", []Event{{Summary: "Call", Start: start}})

	if !strings.Contains(out, "DTSTART:20260302T040000Z\r\n") {
		t.Errorf("timed start should be UTC-shifted, got:\n%s", out)
	}
	if !strings.Contains(out, "DTSTAMP:20260829T103000Z\r\n") {
		t.Errorf("DTSTAMP should use the generation timestamp, got:\n%s", out)
	}
}

func TestEncodeAllDayUsesLocalDateNotUTC(t *testing.T) {
	enc := fixedEncoder(t, "America/New_York")
	// 23:00 EST is already March 2 in UTC; the local calendar date must win.
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	out := enc.Encode("Followups", []Event{{Summary: "Visit", Start: start, AllDay: true}})

	if !strings.Contains(out, "DTSTART;VALUE=DATE:20260301\r\n") {
		t.Errorf("all-day start shifted a day:\n%s", out)
	}
	if strings.Contains(out, "VALUE=DATE:20260302") {
		t.Errorf("UTC-shifted date leaked into the all-day value:\n%s", out)
	}
}

func TestEncodeOmitsEndAndEmptyTextFields(t *testing.T) {
	enc := fixedEncoder(t, "UTC")
	out := enc.Encode("Followups", []Event{{Start: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}})
	for _, absent := range []string{"DTEND", "SUMMARY", "DESCRIPTION", "LOCATION"} {
		if strings.Contains(out, absent) {
			t.Errorf("%s should be omitted for empty input:\n%s", absent, out)
		}
	}
}

func TestEncodeUIDsAreUniqueAndShareGeneration(t *testing.T) {
	enc := fixedEncoder(t, "UTC")
	events := make([]Event, 5)
	for i := range events {
		events[i] = Event{Summary: "x", Start: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	}
	events[2].UID = "followup-7"

	out := enc.Encode("Followups", events)
	millis := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC).UnixMilli()

	seen := map[string]bool{}
	for _, line := range strings.Split(out, "\r\n") {
		if !strings.HasPrefix(line, "UID:") {
			continue
		}
		if seen[line] {
			t.Fatalf("duplicate UID line %q", line)
		}
		seen[line] = true
		if !strings.HasSuffix(line, fmt.Sprintf("-%d@crm", millis)) {
			t.Errorf("UID missing shared generation timestamp: %q", line)
		}
	}
	if len(seen) != len(events) {
		t.Fatalf("expected %d distinct UIDs, got %d", len(events), len(seen))
	}
	if !seen[fmt.Sprintf("UID:followup-7-2-%d@crm", millis)] {
		t.Error("explicit uid seed not used")
	}
	if !seen[fmt.Sprintf("UID:evt-0-%d@crm", millis)] {
		t.Error("default uid seed should be evt")
	}
}

func TestEncodeStructureAndCRLF(t *testing.T) {
	enc := fixedEncoder(t, "UTC")
	out := enc.Encode("", []Event{{Summary: "Call", Start: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}})

	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:"+ProdID+"\r\nX-WR-CALNAME:Followups\r\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.HasSuffix(out, "END:VEVENT\r\nEND:VCALENDAR\r\n") {
		t.Errorf("unexpected trailer:\n%s", out)
	}
	if strings.Contains(strings.ReplaceAll(out, "\r\n", ""), "\n") {
		t.Error("bare newline found; every terminator must be CRLF")
	}
}
