package timeedit

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	appLog "pulsesync/internal/log"
	"pulsesync/internal/model"
)

const (
	// ExternalIDPrefix is prepended to the reservation id.
	ExternalIDPrefix = "TE-"
	// UntitledTitle replaces a blank first column.
	UntitledTitle = "(untitled)"
)

var requiredFields = []string{"id", "startdate", "starttime", "enddate", "endtime"}

// columnIndex resolves optional columns by header name, once per parse. A
// header matches when its lower-cased name contains the needle; the first
// matching header wins, so a second header containing the same needle is
// ignored.
type columnIndex struct {
	location int
	comment  int
	text     int
}

func buildColumnIndex(headers []string) columnIndex {
	return columnIndex{
		location: findHeader(headers, "location"),
		comment:  findHeader(headers, "comment"),
		text:     findHeader(headers, "text"),
	}
}

func findHeader(headers []string, needle string) int {
	for i, h := range headers {
		if strings.Contains(strings.ToLower(h), needle) {
			return i
		}
	}
	return -1
}

// Parse converts a raw TimeEdit JSON feed into a canonical Schedule. Dates and
// times are interpreted in loc. Events keep the feed's reservation order.
//
// Expected shape (unknown fields are ignored):
//
//	{
//	  "columnheaders": ["Activity", "Location", "Comment", ...],
//	  "reservations": [
//	    {"id": "1106056", "startdate": "2026-04-03", "starttime": "08:00",
//	     "enddate": "2026-04-04", "endtime": "08:00", "columns": ["...", ...]}
//	  ]
//	}
func Parse(body []byte, sourceURL string, loc *time.Location) (*model.Schedule, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, parseError("TimeEdit response body is empty")
	}
	if loc == nil {
		return nil, parseError("timezone cannot be nil")
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, parseError("Failed to parse TimeEdit JSON: %v", err)
	}

	headers, err := readStringArray(root["columnheaders"], "columnheaders")
	if err != nil {
		return nil, err
	}
	cols := buildColumnIndex(headers)

	rawReservations, ok := root["reservations"]
	if !ok || isJSONNull(rawReservations) {
		return nil, parseError("Missing or invalid 'reservations' array")
	}
	var reservations []map[string]json.RawMessage
	if err := json.Unmarshal(rawReservations, &reservations); err != nil {
		return nil, parseError("Missing or invalid 'reservations' array")
	}

	events := make([]*model.Event, 0, len(reservations))
	for i, res := range reservations {
		ev, err := parseReservation(res, cols, loc)
		if err != nil {
			appLog.Debug("timeedit reservation rejected", "index", i, "reason", err.Error())
			return nil, err
		}
		events = append(events, ev)
	}

	appLog.Info("timeedit parse completed", "url", redactURL(sourceURL), "event_count", len(events))

	return &model.Schedule{
		Source:      model.SourceTimeEdit,
		SourceURL:   sourceURL,
		GeneratedAt: time.Now().In(loc),
		Events:      events,
		Summary:     model.Summarize(events),
	}, nil
}

func parseReservation(res map[string]json.RawMessage, cols columnIndex, loc *time.Location) (*model.Event, error) {
	if res == nil {
		return nil, parseError("Reservation must be a JSON object")
	}

	fields := make(map[string]string, len(requiredFields))
	for _, name := range requiredFields {
		v, err := readRequiredText(res, name)
		if err != nil {
			return nil, err
		}
		fields[name] = v
	}

	start, err := combineDateTime(fields["startdate"], fields["starttime"], loc)
	if err != nil {
		return nil, err
	}
	end, err := combineDateTime(fields["enddate"], fields["endtime"], loc)
	if err != nil {
		return nil, err
	}

	columns, err := readStringArray(res["columns"], "columns")
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(columnValue(columns, 0))
	if title == "" {
		title = UntitledTitle
	}

	location := ""
	if cols.location >= 0 {
		location = strings.TrimSpace(columnValue(columns, cols.location))
	}

	description := firstNonBlank(
		normalizeFreeText(columnValue(columns, cols.comment)),
		normalizeFreeText(columnValue(columns, cols.text)),
	)

	return &model.Event{
		ExternalID:  ExternalIDPrefix + fields["id"],
		Title:       title,
		Start:       start,
		End:         end,
		Location:    location,
		Description: description,
	}, nil
}

const dateLayout = "2006-01-02"

var timeLayouts = []string{"15:04", "15:04:05"}

// combineDateTime composes a wall-clock date and time in loc.
func combineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, parseError("Invalid date/time: %s %s", date, clock)
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(clock))
		if err != nil {
			continue
		}
		return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, parseError("Invalid date/time: %s %s", date, clock)
}

// readRequiredText reads a scalar field as text. Numbers and booleans are
// accepted and rendered as written in the feed.
func readRequiredText(obj map[string]json.RawMessage, name string) (string, error) {
	raw, ok := obj[name]
	if !ok || isJSONNull(raw) {
		return "", parseError("Missing required field: %s", name)
	}
	text, ok := scalarText(raw)
	if !ok {
		return "", parseError("Field %s must be a scalar value", name)
	}
	if strings.TrimSpace(text) == "" {
		return "", parseError("Blank required field: %s", name)
	}
	return text, nil
}

// readStringArray returns an empty slice for a missing or null value and a
// parse error when the value is not an array. Null items become "".
func readStringArray(raw json.RawMessage, name string) ([]string, error) {
	if len(raw) == 0 || isJSONNull(raw) {
		return []string{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, parseError("Expected JSON array for '%s'", name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		text, _ := scalarText(item)
		out = append(out, text)
	}
	return out, nil
}

func scalarText(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func columnValue(columns []string, index int) string {
	if index < 0 || index >= len(columns) {
		return ""
	}
	return columns[index]
}

// normalizeFreeText treats values made only of commas and whitespace as
// empty. TimeEdit renders an empty free-text column as ", ".
func normalizeFreeText(s string) string {
	onlyFiller := true
	for _, r := range s {
		if r != ',' && !unicode.IsSpace(r) {
			onlyFiller = false
			break
		}
	}
	if onlyFiller {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
