package dto

import (
	"time"

	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
)

// Export formats accepted by GET /reports/sessions/export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// SessionReportRequest carries the raw query string of a session report.
type SessionReportRequest struct {
	Filter   report.RawFilter
	Timezone string
	Sort     string
	Order    string
	Page     int
	PageSize int
}

// SessionReportResponse is one page of the session report.
type SessionReportResponse struct {
	Rows       []models.SessionRow
	Pagination *models.Pagination
	Notices    []report.Notice
	Filters    AppliedFilters
}

// AppliedFilters echoes the normalized filters back to the client.
type AppliedFilters struct {
	CourseID        int64    `json:"courseid,omitempty"`
	CourseTerms     []string `json:"course_terms,omitempty"`
	DateFrom        *int64   `json:"datefrom,omitempty"`
	DateTo          *int64   `json:"dateto,omitempty"`
	FutureOnly      bool     `json:"futureonly"`
	IncludeWaitlist bool     `json:"includewaitlist"`
	Location        string   `json:"location,omitempty"`
	TrainerIDs      []int64  `json:"trainerids,omitempty"`
	Status          string   `json:"status,omitempty"`
	Timezone        string   `json:"timezone"`
}

// NewAppliedFilters renders fs for the response metadata.
func NewAppliedFilters(fs report.FilterSet, loc *time.Location) AppliedFilters {
	applied := AppliedFilters{
		CourseID:        fs.CourseID,
		FutureOnly:      fs.FutureOnly,
		IncludeWaitlist: fs.IncludeDateless,
		Location:        fs.Location,
		TrainerIDs:      fs.TrainerIDs,
		Status:          string(fs.Status),
	}
	if loc != nil {
		applied.Timezone = loc.String()
	}
	for _, term := range fs.CourseTerms {
		applied.CourseTerms = append(applied.CourseTerms, term.Text)
	}
	if fs.HasStart() {
		v := fs.Start.Unix()
		applied.DateFrom = &v
	}
	if fs.HasEnd() {
		v := fs.End.Unix()
		applied.DateTo = &v
	}
	return applied
}

// SessionReportExport is the unpaged result used by exports.
type SessionReportExport struct {
	Rows     []models.SessionRow
	Notices  []report.Notice
	Location *time.Location
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ParticipantGroup lists participants sharing a status.
type ParticipantGroup struct {
	Status       string               `json:"status"`
	StatusCode   models.StatusCode    `json:"status_code"`
	Label        string               `json:"label"`
	Participants []models.Participant `json:"participants"`
}

// ParticipantReport is the participants page of one session.
type ParticipantReport struct {
	Session models.SessionInfo       `json:"session"`
	Groups  []ParticipantGroup       `json:"groups"`
	Counts  models.ParticipantCounts `json:"counts"`
}

// FieldDiagnostics exposes the current field and schema resolution.
type FieldDiagnostics struct {
	FieldIDs   report.FieldIDs        `json:"field_ids"`
	Missing    []string               `json:"missing"`
	Fields     []models.MetadataField `json:"fields"`
	Shape      report.SchemaShape     `json:"shape"`
	ResolvedAt time.Time              `json:"resolved_at"`
}
