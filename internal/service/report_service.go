package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/f2freport-api/internal/dto"
	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
)

type sessionReportRepository interface {
	List(ctx context.Context, plan *report.Plan, limit, offset int) ([]models.SessionRow, error)
	ListAll(ctx context.Context, plan *report.Plan) ([]models.SessionRow, error)
	Count(ctx context.Context, plan *report.Plan) (int, error)
}

type courseRepository interface {
	ListWithActivities(ctx context.Context) ([]models.Course, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

type fieldResolver interface {
	Resolution(ctx context.Context) (*FieldResolution, error)
}

// Clock returns the current instant.
type Clock func() time.Time

// ReportServiceConfig tunes the session report.
type ReportServiceConfig struct {
	PageSize    int
	MaxPageSize int
	Location    *time.Location
	Compiler    report.CompilerConfig
}

// ReportService normalizes filters, compiles and runs the session report.
type ReportService struct {
	sessions sessionReportRepository
	courses  courseRepository
	fields   fieldResolver
	compiler *report.Compiler
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ReportServiceConfig
	clock    Clock
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Sessions sessionReportRepository
	Courses  courseRepository
	Fields   fieldResolver
	Metrics  *MetricsService
	Logger   *zap.Logger
	Config   ReportServiceConfig
	Clock    Clock
}

// NewReportService constructs a ReportService.
func NewReportService(params ReportServiceParams) *ReportService {
	cfg := params.Config
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPageSize < cfg.PageSize {
		cfg.MaxPageSize = cfg.PageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{
		sessions: params.Sessions,
		courses:  params.Courses,
		fields:   params.Fields,
		compiler: report.NewCompiler(cfg.Compiler),
		metrics:  params.Metrics,
		logger:   logger,
		cfg:      cfg,
		clock:    clock,
	}
}

type preparedReport struct {
	plan     *report.Plan
	filters  report.FilterSet
	notices  []report.Notice
	location *time.Location
}

// staticCatalog answers HasCourse from a pre-checked set.
type staticCatalog map[int64]bool

func (c staticCatalog) HasCourse(id int64) bool { return c[id] }

func (s *ReportService) prepare(ctx context.Context, req dto.SessionReportRequest) (*preparedReport, error) {
	var notices []report.Notice

	loc := s.cfg.Location
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			notices = append(notices, report.Notice{
				Code:    report.NoticeInvalidFilterValue,
				Field:   "timezone",
				Message: "unknown timezone " + strconv.Quote(tz) + " ignored",
			})
		} else {
			loc = parsed
		}
	}

	catalog := staticCatalog{}
	if id, err := strconv.ParseInt(strings.TrimSpace(req.Filter.CourseID), 10, 64); err == nil && id > 0 {
		exists, err := s.courses.Exists(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course")
		}
		catalog[id] = exists
	}

	filters, normalizeNotices := report.Normalize(req.Filter, report.NormalizeOptions{
		Now:      s.clock(),
		Location: loc,
		Courses:  catalog,
	})
	notices = append(notices, normalizeNotices...)

	resolution, err := s.fields.Resolution(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := s.compiler.Compile(filters, resolution.FieldIDs, resolution.Shape)
	if err != nil {
		var missing *report.MissingFieldsError
		if errors.As(err, &missing) {
			s.logger.Error("session report fields not configured", zap.Strings("fields", missing.Fields))
			return nil, appErrors.Wrap(err, appErrors.ErrMissingConfiguration.Code, appErrors.ErrMissingConfiguration.Status,
				"session fields not configured: "+strings.Join(missing.Fields, ", "))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compile report")
	}

	if req.Sort != "" {
		desc := strings.EqualFold(strings.TrimSpace(req.Order), "desc")
		if !plan.SetOrder(req.Sort, desc) {
			notices = append(notices, report.Notice{
				Code:    report.NoticeInvalidFilterValue,
				Field:   "sort",
				Message: "unknown sort column " + strconv.Quote(req.Sort) + " ignored",
			})
		}
	}

	return &preparedReport{plan: plan, filters: filters, notices: notices, location: loc}, nil
}

// List returns one page of the session report.
func (s *ReportService) List(ctx context.Context, req dto.SessionReportRequest) (*dto.SessionReportResponse, error) {
	prepared, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = s.cfg.PageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}

	start := time.Now()
	total, err := s.sessions.Count(ctx, prepared.plan)
	s.metrics.ObserveDBQuery("report_count", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}

	rows := []models.SessionRow{}
	if offset := (page - 1) * size; offset < total {
		start = time.Now()
		rows, err = s.sessions.List(ctx, prepared.plan, size, offset)
		s.metrics.ObserveDBQuery("report_rows", time.Since(start))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
		}
	}

	s.metrics.ObserveReport(total, noticeCodes(prepared.notices))
	return &dto.SessionReportResponse{
		Rows:       rows,
		Pagination: &models.Pagination{Page: page, PageSize: size, TotalCount: total},
		Notices:    prepared.notices,
		Filters:    dto.NewAppliedFilters(prepared.filters, prepared.location),
	}, nil
}

// All returns every row of the report, ignoring paging.
func (s *ReportService) All(ctx context.Context, req dto.SessionReportRequest) (*dto.SessionReportExport, error) {
	prepared, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.sessions.ListAll(ctx, prepared.plan)
	s.metrics.ObserveDBQuery("report_export", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	s.metrics.ObserveReport(len(rows), noticeCodes(prepared.notices))
	return &dto.SessionReportExport{Rows: rows, Notices: prepared.notices, Location: prepared.location}, nil
}

// Courses returns the course filter options.
func (s *ReportService) Courses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.courses.ListWithActivities(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

func noticeCodes(notices []report.Notice) []string {
	codes := make([]string, len(notices))
	for i, n := range notices {
		codes[i] = n.Code
	}
	return codes
}
