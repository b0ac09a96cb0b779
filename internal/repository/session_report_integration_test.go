package repository

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
)

type reportHarness struct {
	t        *testing.T
	repo     *SessionReportRepository
	compiler *report.Compiler
	fieldIDs report.FieldIDs
	shape    report.SchemaShape
}

func newReportHarness(t *testing.T, db *sqlx.DB, shape report.SchemaShape) *reportHarness {
	fields, err := NewMetadataFieldRepository(db, "mdl_").List(context.Background())
	require.NoError(t, err)
	return &reportHarness{
		t:        t,
		repo:     NewSessionReportRepository(db),
		compiler: report.NewCompiler(report.CompilerConfig{TablePrefix: "mdl_"}),
		fieldIDs: report.Resolve(report.DefaultAliases, fields),
		shape:    shape,
	}
}

// run returns every row and the count, asserting they agree.
func (h *reportHarness) run(filters report.FilterSet) []models.SessionRow {
	h.t.Helper()
	plan, err := h.compiler.Compile(filters, h.fieldIDs, h.shape)
	require.NoError(h.t, err)

	rows, err := h.repo.ListAll(context.Background(), plan)
	require.NoError(h.t, err)
	total, err := h.repo.Count(context.Background(), plan)
	require.NoError(h.t, err)
	require.Equal(h.t, len(rows), total, plan.CountSQL())

	seen := make(map[int64]bool)
	for _, row := range rows {
		require.False(h.t, seen[row.SessionID], "session %d returned twice", row.SessionID)
		seen[row.SessionID] = true
	}
	return rows
}

func sessionIDs(rows []models.SessionRow) []int64 {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.SessionID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func rowByID(t *testing.T, rows []models.SessionRow, id int64) models.SessionRow {
	t.Helper()
	for _, r := range rows {
		if r.SessionID == id {
			return r
		}
	}
	t.Fatalf("session %d not in result", id)
	return models.SessionRow{}
}

func TestSessionReportDatelessToggle(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)

		rows := h.run(report.FilterSet{})
		assert.Equal(t, []int64{1, 2, 4, 5, 6}, sessionIDs(rows))

		rows = h.run(report.FilterSet{IncludeDateless: true})
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, sessionIDs(rows))
		dateless := rowByID(t, rows, datelessSessionID)
		assert.Nil(t, dateless.TimeStart)
		assert.True(t, dateless.Dateless())

		rows = h.run(report.FilterSet{IncludeDateless: true, Start: time.Unix(day0+oneDay, 0)})
		assert.Equal(t, []int64{2, 3, 6}, sessionIDs(rows))
	})
}

func TestSessionReportSingleDayIncludesWholeDay(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		triple := report.RawDate{Parts: map[string]string{"day": "14", "month": "3", "year": "2024"}}
		filters, notices := report.Normalize(report.RawFilter{DateFrom: triple, DateTo: triple}, report.NormalizeOptions{Now: time.Unix(day0, 0), Location: time.UTC})
		require.Empty(t, notices)

		rows := h.run(filters)
		assert.Equal(t, []int64{citySessionID, lateSessionID}, sessionIDs(rows))
	})
}

func TestSessionReportCourseTerms(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		filters, _ := report.Normalize(report.RawFilter{CourseText: "101, Intro", IncludeWaitlist: true}, report.NormalizeOptions{Now: time.Unix(day0, 0)})

		rows := h.run(filters)
		// 101 by id, "Course 1010 refresher" by name, "Introduction..." by name.
		assert.Equal(t, []int64{1, 2, 3, 5, 6}, sessionIDs(rows))

		filters.CourseID = 5
		rows = h.run(filters)
		assert.Equal(t, []int64{2, 5, 6}, sessionIDs(rows))

		filters, _ = report.Normalize(report.RawFilter{CourseText: "101, Intro"}, report.NormalizeOptions{Now: time.Unix(day0, 0)})
		rows = h.run(filters)
		// the refresher only has a dateless session
		assert.Equal(t, []int64{1, 2, 5, 6}, sessionIDs(rows))
		for _, row := range rows {
			assert.NotEqual(t, "Course 1010 refresher", row.CourseName)
			assert.NotNil(t, row.TimeStart)
		}
	})
}

func TestSessionReportTalliesCurrentStatus(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		rows := h.run(report.FilterSet{Location: "LYON"})
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, int64(citySessionID), row.SessionID)
		assert.Equal(t, "Advanced welding", row.CourseName)
		assert.Equal(t, "Lyon", row.City)
		assert.Equal(t, "Campus Nord", row.Venue)
		assert.Equal(t, "A1", row.Room)
		assert.Equal(t, 3, row.TotalParticipants)
		assert.Equal(t, 2, row.PresentCount)
		assert.Equal(t, 10, row.Capacity)
		require.NotNil(t, row.TimeStart)
		assert.Equal(t, day0+9*hour, *row.TimeStart)
	})
}

func TestSessionReportMultiDayRange(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		rows := h.run(report.FilterSet{CourseID: 5})
		row := rowByID(t, rows, multiDaySessionID)
		assert.Equal(t, day0+5*oneDay+9*hour, *row.TimeStart)
		assert.Equal(t, day0+6*oneDay+12*hour, *row.TimeFinish)
		assert.Equal(t, "Not specified", row.City)
		assert.Equal(t, 0, row.Capacity)
	})
}

func TestSessionReportStatusAndTrainers(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		now := time.Unix(day0+13*hour, 0)

		assert.Equal(t, []int64{cancelledSessionID}, sessionIDs(h.run(report.FilterSet{Status: report.SessionStatusCancelled, Now: now})))
		assert.Equal(t, []int64{2, 5, 6}, sessionIDs(h.run(report.FilterSet{Status: report.SessionStatusPlanned, Now: now})))
		assert.Equal(t, []int64{citySessionID}, sessionIDs(h.run(report.FilterSet{Status: report.SessionStatusCompleted, Now: now})))

		assert.Equal(t, []int64{1, 2}, sessionIDs(h.run(report.FilterSet{TrainerIDs: []int64{9}})))

		roleCompiler := report.NewCompiler(report.CompilerConfig{TablePrefix: "mdl_", TrainerRoleID: 3})
		plan, err := roleCompiler.Compile(report.FilterSet{TrainerIDs: []int64{9}}, h.fieldIDs, shape)
		require.NoError(t, err)
		rows, err := h.repo.ListAll(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, []int64{tomorrowSessionID}, sessionIDs(rows))
	})
}

func TestSessionReportMissingFieldDegrades(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		delete(h.fieldIDs, report.FieldRoom)

		rows := h.run(report.FilterSet{Location: "a1"})
		assert.Empty(t, rows)

		rows = h.run(report.FilterSet{Location: "nord"})
		require.Len(t, rows, 1)
		assert.Equal(t, "Not specified", rows[0].Room)
	})
}

func TestSessionReportPaging(t *testing.T) {
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		plan, err := h.compiler.Compile(report.FilterSet{}, h.fieldIDs, shape)
		require.NoError(t, err)

		page, err := h.repo.List(context.Background(), plan, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, int64(cancelledSessionID), page[0].SessionID)
		assert.Equal(t, int64(citySessionID), page[1].SessionID)

		page, err = h.repo.List(context.Background(), plan, 2, 4)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, int64(multiDaySessionID), page[0].SessionID)

		require.True(t, plan.SetOrder("coursename", false))
		page, err = h.repo.List(context.Background(), plan, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, "Advanced welding", page[0].CourseName)
	})
}

func TestSessionReportCountMatchesRowsAcrossFilters(t *testing.T) {
	now := time.Unix(day0+13*hour, 0)
	cases := []report.FilterSet{
		{},
		{IncludeDateless: true},
		{Location: "paris", IncludeDateless: true},
		{CourseTerms: []report.CourseTerm{{Text: "fire"}}, Status: report.SessionStatusCancelled, Now: now},
		{Start: time.Unix(day0, 0), End: time.Unix(day0+6*oneDay, 0), FutureOnly: true, Status: report.SessionStatusPlanned, Now: now},
		{TrainerIDs: []int64{9, 1}, Location: "o"},
	}
	forEachVariant(t, func(t *testing.T, db *sqlx.DB, shape report.SchemaShape) {
		h := newReportHarness(t, db, shape)
		for _, filters := range cases {
			h.run(filters)
		}
	})
}
