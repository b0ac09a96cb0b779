package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/f2freport-api/internal/models"
)

// DateLayout is the rendering of session times in exports.
const DateLayout = "2006-01-02 15:04"

// DatelessLabel is shown instead of a date for sessions without occurrences.
const DatelessLabel = "Wait-listed"

// Formatter renders one cell of a session row.
type Formatter func(row models.SessionRow, loc *time.Location) string

// Column is a report column definition.
type Column struct {
	Key    string
	Header string
	Format Formatter
}

// DefaultColumns is the enabled column set when none is configured.
var DefaultColumns = []string{"coursefullname", "sessionid", "timestart", "timefinish", "totalparticipants"}

var columnTable = []Column{
	{Key: "coursefullname", Header: "Course", Format: func(r models.SessionRow, _ *time.Location) string { return r.CourseName }},
	{Key: "sessionid", Header: "Session", Format: func(r models.SessionRow, _ *time.Location) string {
		return strconv.FormatInt(r.SessionID, 10)
	}},
	{Key: "timestart", Header: "Start", Format: func(r models.SessionRow, loc *time.Location) string {
		return formatTime(r, r.TimeStart, loc)
	}},
	{Key: "timefinish", Header: "Finish", Format: func(r models.SessionRow, loc *time.Location) string {
		return formatTime(r, r.TimeFinish, loc)
	}},
	{Key: "city", Header: "City", Format: func(r models.SessionRow, _ *time.Location) string { return r.City }},
	{Key: "venue", Header: "Venue", Format: func(r models.SessionRow, _ *time.Location) string { return r.Venue }},
	{Key: "room", Header: "Room", Format: func(r models.SessionRow, _ *time.Location) string { return r.Room }},
	{Key: "totalparticipants", Header: "Participants", Format: func(r models.SessionRow, _ *time.Location) string {
		return FormatParticipants(r.TotalParticipants, r.Capacity)
	}},
	{Key: "presentcount", Header: "Present", Format: func(r models.SessionRow, _ *time.Location) string {
		return strconv.Itoa(r.PresentCount)
	}},
	{Key: "capacity", Header: "Capacity", Format: func(r models.SessionRow, _ *time.Location) string {
		return strconv.Itoa(r.Capacity)
	}},
}

// Columns returns the enabled column definitions in configuration order.
// Unknown keys are skipped; an empty selection yields DefaultColumns.
func Columns(keys []string) []Column {
	index := make(map[string]Column, len(columnTable))
	for _, col := range columnTable {
		index[col.Key] = col
	}
	pick := func(keys []string) []Column {
		seen := make(map[string]struct{})
		out := make([]Column, 0, len(keys))
		for _, key := range keys {
			key = strings.ToLower(strings.TrimSpace(key))
			col, ok := index[key]
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, col)
		}
		return out
	}
	if cols := pick(keys); len(cols) > 0 {
		return cols
	}
	return pick(DefaultColumns)
}

// Headers returns the header line of cols.
func Headers(cols []Column) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.Header
	}
	return out
}

// Render formats row with cols.
func Render(cols []Column, row models.SessionRow, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.Format(row, loc)
	}
	return out
}

// FormatParticipants renders "registered / capacity", or just the count when
// the session has no capacity.
func FormatParticipants(registered, capacity int) string {
	if capacity <= 0 {
		return strconv.Itoa(registered)
	}
	return strconv.Itoa(registered) + " / " + strconv.Itoa(capacity)
}

func formatTime(r models.SessionRow, ts *int64, loc *time.Location) string {
	if r.Dateless() {
		return DatelessLabel
	}
	if ts == nil || *ts <= 0 {
		return ""
	}
	return time.Unix(*ts, 0).In(loc).Format(DateLayout)
}
