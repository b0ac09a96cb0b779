package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/f2freport-api/internal/dto"
	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
	"github.com/noah-isme/f2freport-api/pkg/response"
)

type sessionReportService interface {
	List(ctx context.Context, req dto.SessionReportRequest) (*dto.SessionReportResponse, error)
	Courses(ctx context.Context) ([]models.Course, error)
}

type sessionExportService interface {
	Generate(ctx context.Context, req dto.SessionReportRequest, format string) (*dto.ExportFile, error)
}

type fieldDiagnosticsService interface {
	Diagnostics(ctx context.Context) (*dto.FieldDiagnostics, error)
	Invalidate(ctx context.Context) error
}

// ReportHandler exposes the session report endpoints.
type ReportHandler struct {
	reports sessionReportService
	exports sessionExportService
	fields  fieldDiagnosticsService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports sessionReportService, exports sessionExportService, fields fieldDiagnosticsService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports, fields: fields}
}

// Sessions godoc
// @Summary Face-to-face session report
// @Tags Reports
// @Produce json
// @Param courseid query int false "Course ID"
// @Param course query string false "Comma separated course names or ids"
// @Param datefrom query string false "Lower bound (unix seconds, or datefrom[day], datefrom[month], datefrom[year])"
// @Param dateto query string false "Upper bound, inclusive to the end of its day"
// @Param futureonly query bool false "Only upcoming sessions"
// @Param includewaitlist query bool false "Include sessions without dates"
// @Param location query string false "City, venue or room substring"
// @Param trainerids query []int false "Trainer user ids" collectionFormat(multi)
// @Param status query string false "planned, completed or cancelled"
// @Param timezone query string false "IANA timezone for calendar dates"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /reports/sessions [get]
func (h *ReportHandler) Sessions(c *gin.Context) {
	result, err := h.reports.List(c.Request.Context(), parseSessionReportRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"filters": result.Filters}
	if len(result.Notices) > 0 {
		meta["notices"] = result.Notices
	}
	response.JSON(c, http.StatusOK, result.Rows, result.Pagination, meta)
}

// Export godoc
// @Summary Export the session report
// @Tags Reports
// @Produce text/csv,application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/sessions/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	file, err := h.exports.Generate(c.Request.Context(), parseSessionReportRequest(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Courses godoc
// @Summary Courses that own a face-to-face activity
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/courses [get]
func (h *ReportHandler) Courses(c *gin.Context) {
	courses, err := h.reports.Courses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Fields godoc
// @Summary Resolved session fields and schema shape
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/fields [get]
func (h *ReportHandler) Fields(c *gin.Context) {
	diagnostics, err := h.fields.Diagnostics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diagnostics, nil)
}

// RefreshFields godoc
// @Summary Drop the memoized field resolution
// @Tags Reports
// @Success 204
// @Router /reports/fields/refresh [post]
func (h *ReportHandler) RefreshFields(c *gin.Context) {
	if err := h.fields.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseSessionReportRequest(c *gin.Context) dto.SessionReportRequest {
	return dto.SessionReportRequest{
		Filter: report.RawFilter{
			CourseID:        c.Query("courseid"),
			CourseText:      c.Query("course"),
			DateFrom:        rawDate(c, "datefrom"),
			DateTo:          rawDate(c, "dateto"),
			FutureOnly:      queryBool(c, "futureonly"),
			IncludeWaitlist: queryBool(c, "includewaitlist"),
			Location:        c.Query("location"),
			TrainerIDs:      append(c.QueryArray("trainerids"), c.QueryArray("trainerids[]")...),
			Status:          c.Query("status"),
		},
		Timezone: c.Query("timezone"),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "limit"),
	}
}

func rawDate(c *gin.Context, key string) report.RawDate {
	raw := report.RawDate{Value: c.Query(key)}
	if parts := c.QueryMap(key); len(parts) > 0 {
		raw.Parts = parts
	}
	return raw
}

func queryBool(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}
