package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ICSEvent is one VEVENT reduced to calendar dates. End follows iCalendar
// all-day semantics: exclusive.
type ICSEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// FetchICSEvents downloads and parses a feed with a bounded timeout.
func FetchICSEvents(feedURL string, timeout time.Duration) ([]ICSEvent, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("feed body is empty")
	}

	return ParseICS(string(raw)), nil
}

// ParseICS extracts VEVENTs with both DTSTART and DTEND. Folded lines
// (continuations starting with a space or tab) are unfolded first; property
// parameters like ;VALUE=DATE are ignored. Events without a UID get a
// generated one so the full-replace sync still has a traceable key.
func ParseICS(raw string) []ICSEvent {
	var unfolded []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(unfolded) > 0 {
			unfolded[len(unfolded)-1] += strings.TrimLeft(line, " \t")
			continue
		}
		unfolded = append(unfolded, line)
	}

	var events []ICSEvent
	var current map[string]string
	inEvent := false

	for _, line := range unfolded {
		line = strings.TrimSpace(line)
		switch {
		case line == "BEGIN:VEVENT":
			current = map[string]string{}
			inEvent = true
		case line == "END:VEVENT":
			if inEvent {
				if event, ok := buildEvent(current); ok {
					events = append(events, event)
				}
			}
			inEvent = false
		case inEvent && strings.Contains(line, ":"):
			parts := strings.SplitN(line, ":", 2)
			key := strings.ToUpper(parts[0])
			// Strip parameters: DTSTART;VALUE=DATE -> DTSTART
			if idx := strings.Index(key, ";"); idx >= 0 {
				key = key[:idx]
			}
			current[key] = parts[1]
		}
	}
	return events
}

func buildEvent(props map[string]string) (ICSEvent, bool) {
	start, okStart := parseICSDate(props["DTSTART"])
	end, okEnd := parseICSDate(props["DTEND"])
	if !okStart || !okEnd || !end.After(start) {
		return ICSEvent{}, false
	}

	uid := props["UID"]
	if uid == "" {
		uid = "external-" + uuid.NewString()
	}
	summary := props["SUMMARY"]
	if summary == "" {
		summary = "External booking"
	}

	return ICSEvent{UID: uid, Summary: summary, Start: start, End: end}, true
}

// parseICSDate normalises both all-day (20240710) and timed
// (20240710T140000Z) values to a UTC calendar date.
func parseICSDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if strings.Contains(value, "T") {
		for _, layout := range []string{"20060102T150405Z", "20060102T150405"} {
			if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
				return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
		return time.Time{}, false
	}

	if len(value) < 8 {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("20060102", value[:8], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
