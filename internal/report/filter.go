package report

import (
	"strconv"
	"strings"
	"time"
)

// SessionStatus narrows the report to sessions in a given lifecycle phase.
type SessionStatus string

const (
	SessionStatusAny       SessionStatus = ""
	SessionStatusPlanned   SessionStatus = "planned"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a supported status filter.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusAny, SessionStatusPlanned, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// Notice codes surfaced to the user next to the rendered report.
const (
	NoticeInvalidFilterValue = "INVALID_FILTER_VALUE"
	NoticeDateRangeInverted  = "DATE_RANGE_INVERTED"
	NoticeUnknownCourse      = "UNKNOWN_COURSE"
)

// Notice is a non-fatal remark produced while normalizing filters.
type Notice struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RawDate is a date as submitted: either a single integer value or a
// day/month/year triple (datefrom[day]=.. style query maps).
type RawDate struct {
	Value string
	Parts map[string]string
}

// RawFilter is the unvalidated report request.
type RawFilter struct {
	CourseID        string
	CourseText      string
	DateFrom        RawDate
	DateTo          RawDate
	FutureOnly      bool
	IncludeWaitlist bool
	Location        string
	TrainerIDs      []string
	Status          string
}

// CourseTerm is one comma separated token of the course search.
// ID is set when the token is numeric and then also matches by course id.
type CourseTerm struct {
	Text string
	ID   int64
}

// FilterSet is the canonical report request consumed by the compiler.
// Zero Start/End mean the bound is absent. End is inclusive.
type FilterSet struct {
	CourseID        int64
	CourseTerms     []CourseTerm
	Start           time.Time
	End             time.Time
	FutureOnly      bool
	IncludeDateless bool
	Location        string
	TrainerIDs      []int64
	Status          SessionStatus
	// Now is the reference instant used for status filtering.
	Now time.Time
}

// HasStart reports whether a start bound is set.
func (f FilterSet) HasStart() bool { return !f.Start.IsZero() }

// HasEnd reports whether an end bound is set.
func (f FilterSet) HasEnd() bool { return !f.End.IsZero() }

// CourseCatalog answers whether a course id exists.
type CourseCatalog interface {
	HasCourse(id int64) bool
}

// NormalizeOptions carries the environment of a normalization.
type NormalizeOptions struct {
	Now      time.Time
	Location *time.Location
	// Courses validates CourseID; nil skips the check.
	Courses CourseCatalog
}

const maxLocationLength = 255

// Normalize converts raw input into a FilterSet. It never fails: bad values
// are dropped and reported as notices.
func Normalize(raw RawFilter, opts NormalizeOptions) (FilterSet, []Notice) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var notices []Notice
	fs := FilterSet{
		FutureOnly:      raw.FutureOnly,
		IncludeDateless: raw.IncludeWaitlist,
		Now:             now,
	}

	if id, ok := parseID(raw.CourseID); !ok {
		notices = append(notices, invalidValue("courseid", raw.CourseID))
	} else if id > 0 {
		if opts.Courses != nil && !opts.Courses.HasCourse(id) {
			notices = append(notices, Notice{
				Code:    NoticeUnknownCourse,
				Field:   "courseid",
				Message: "unknown course " + strconv.FormatInt(id, 10) + " ignored",
			})
		} else {
			fs.CourseID = id
		}
	}

	fs.CourseTerms = ParseCourseTerms(raw.CourseText)

	start, ok := NormalizeDate(raw.DateFrom, loc)
	if !ok {
		notices = append(notices, invalidValue("datefrom", raw.DateFrom.String()))
	}
	end, ok := NormalizeDate(raw.DateTo, loc)
	if !ok {
		notices = append(notices, invalidValue("dateto", raw.DateTo.String()))
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		start, end = end, start
		notices = append(notices, Notice{
			Code:    NoticeDateRangeInverted,
			Field:   "dateto",
			Message: "end date was before start date; the bounds were swapped",
		})
	}
	if !end.IsZero() {
		end = endOfDay(end, loc)
	}
	if fs.FutureOnly && now.After(start) {
		start = now
	}
	fs.Start, fs.End = start, end

	fs.Location = strings.TrimSpace(raw.Location)
	if len(fs.Location) > maxLocationLength {
		fs.Location = fs.Location[:maxLocationLength]
	}

	seen := make(map[int64]struct{})
	for _, rawID := range raw.TrainerIDs {
		for _, part := range strings.Split(rawID, ",") {
			id, ok := parseID(part)
			if !ok {
				notices = append(notices, invalidValue("trainerids", part))
				continue
			}
			if id == 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			fs.TrainerIDs = append(fs.TrainerIDs, id)
		}
	}

	status := SessionStatus(strings.ToLower(strings.TrimSpace(raw.Status)))
	if status.Valid() {
		fs.Status = status
	} else {
		notices = append(notices, invalidValue("status", raw.Status))
	}

	return fs, notices
}

// NormalizeDate turns a raw date into an instant. A complete day/month/year
// triple becomes the start of that day in loc; a positive integer is a unix
// timestamp. The second result is false when a non-empty value was unusable.
func NormalizeDate(raw RawDate, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if len(raw.Parts) > 0 {
		day, dok := atoi(raw.Parts["day"])
		month, mok := atoi(raw.Parts["month"])
		year, yok := atoi(raw.Parts["year"])
		if !dok || !mok || !yok || day < 1 || day > 31 || month < 1 || month > 12 || year < 1 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
	}
	value := strings.TrimSpace(raw.Value)
	if value == "" {
		return time.Time{}, true
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if ts <= 0 {
		return time.Time{}, true
	}
	return time.Unix(ts, 0).In(loc), true
}

// endOfDay returns the last second of t's calendar day in loc. Days are not
// always 24 hours long where daylight saving applies.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Second)
}

// ParseCourseTerms splits the course search text into OR-combined terms.
func ParseCourseTerms(text string) []CourseTerm {
	var terms []CourseTerm
	for _, token := range strings.Split(text, ",") {
		t := strings.Trim(strings.TrimSpace(token), `"'`)
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		term := CourseTerm{Text: t}
		if id, err := strconv.ParseInt(t, 10, 64); err == nil && id > 0 {
			term.ID = id
		}
		terms = append(terms, term)
	}
	return terms
}

// String renders the raw date for notices.
func (d RawDate) String() string {
	if len(d.Parts) == 0 {
		return d.Value
	}
	return d.Parts["year"] + "-" + d.Parts["month"] + "-" + d.Parts["day"]
}

// parseID coerces a numeric id, clamping negatives to zero. Empty input is 0.
func parseID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	if id < 0 {
		return 0, true
	}
	return id, true
}

func atoi(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	return v, err == nil
}

func invalidValue(field, value string) Notice {
	return Notice{
		Code:    NoticeInvalidFilterValue,
		Field:   field,
		Message: "invalid value " + strconv.Quote(value) + " ignored",
	}
}
