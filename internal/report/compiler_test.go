package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allFields = FieldIDs{FieldCity: 11, FieldVenue: 12, FieldRoom: 13}

var directShape = SchemaShape{Dates: DirectDates, HasCapacity: true, HasFieldTable: true}

func newTestCompiler() *Compiler {
	return NewCompiler(CompilerConfig{TablePrefix: "mdl_"})
}

func TestCompileIsIdempotent(t *testing.T) {
	c := newTestCompiler()
	filters := FilterSet{
		CourseTerms: []CourseTerm{{Text: "101", ID: 101}, {Text: "Intro"}},
		Start:       time.Unix(1000, 0),
		End:         time.Unix(2000, 0),
		Location:    "Lyon",
		TrainerIDs:  []int64{5, 6},
		Status:      SessionStatusPlanned,
		Now:         time.Unix(1500, 0),
	}

	first, err := c.Compile(filters, allFields, directShape)
	require.NoError(t, err)
	second, err := c.Compile(filters, allFields, directShape)
	require.NoError(t, err)

	assert.Equal(t, first.RowSQL(), second.RowSQL())
	assert.Equal(t, first.CountSQL(), second.CountSQL())
	assert.Equal(t, first.Params, second.Params)
}

func TestCompileParameterizesEveryValue(t *testing.T) {
	c := NewCompiler(CompilerConfig{TablePrefix: "mdl_", NotSpecified: "Unknown place", TrainerRoleID: 3})
	filters := FilterSet{
		CourseID:    42,
		CourseTerms: []CourseTerm{{Text: "50%_off"}},
		Start:       time.Unix(1000, 0),
		End:         time.Unix(2000, 0),
		Location:    "Lyon",
		TrainerIDs:  []int64{77},
		Status:      SessionStatusCompleted,
		Now:         time.Unix(3000, 0),
	}

	plan, err := c.Compile(filters, allFields, directShape)
	require.NoError(t, err)

	sql := plan.PageSQL()
	for _, literal := range []string{"42", "50", "Lyon", "lyon", "Unknown place", "1000", "2000", "3000", "77", "86399"} {
		assert.NotContains(t, sql, literal)
	}
	assert.NotContains(t, sql, "'Not specified'")

	assert.Equal(t, int64(42), plan.Params["courseid"])
	assert.Equal(t, "%50!%!_off%", plan.Params["courseterm0"])
	assert.Equal(t, int64(1000), plan.Params["datefrom"])
	assert.Equal(t, int64(2000), plan.Params["dateto"])
	assert.Equal(t, "%lyon%", plan.Params["location"])
	assert.Equal(t, int64(77), plan.Params["trainer0"])
	assert.Equal(t, int64(3), plan.Params["trainerroleid"])
	assert.Equal(t, int64(3000), plan.Params["now"])
	assert.Equal(t, "Unknown place", plan.Params["notspecified"])
	assert.Equal(t, int64(11), plan.Params["cityfieldid"])
	assert.Equal(t, int64(20), plan.Params["cancelledstatus"])

	page := plan.PageParams(50, 100)
	assert.Equal(t, 50, page["limit"])
	assert.Equal(t, 100, page["offset"])
	_, leaked := plan.Params["limit"]
	assert.False(t, leaked)
}

func TestCompilePredicateOrder(t *testing.T) {
	plan, err := newTestCompiler().Compile(FilterSet{
		CourseID:    1,
		CourseTerms: []CourseTerm{{Text: "a"}},
		Start:       time.Unix(10, 0),
		Location:    "x",
		TrainerIDs:  []int64{2},
		Status:      SessionStatusCancelled,
		Now:         time.Unix(10, 0),
	}, allFields, directShape)
	require.NoError(t, err)

	markers := []string{"f.course = ", "LOWER(c.fullname)", "s.timestart >= :datefrom", "LOWER(dcity.data)", "EXISTS (", "st.cancelledcount"}
	last := -1
	for _, m := range markers {
		idx := strings.Index(plan.Where, m)
		require.GreaterOrEqual(t, idx, 0, m)
		assert.Greater(t, idx, last, m)
		last = idx
	}
}

func TestCompileCountUsesOnlyReferencedJoins(t *testing.T) {
	c := newTestCompiler()
	shape := SchemaShape{Dates: SeparateDatesTable, HasFieldTable: true}

	plan, err := c.Compile(FilterSet{IncludeDateless: true}, allFields, shape)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(1) FROM mdl_facetoface f JOIN mdl_course c ON c.id = f.course JOIN mdl_facetoface_sessions s ON s.facetoface = f.id", plan.CountSQL())
	assert.Contains(t, plan.RowSQL(), "mdl_facetoface_sessions_dates")
	assert.Contains(t, plan.RowSQL(), ") st ON st.sessionid = s.id")

	plan, err = c.Compile(FilterSet{Location: "lyon", Start: time.Unix(10, 0)}, allFields, shape)
	require.NoError(t, err)
	count := plan.CountSQL()
	assert.Contains(t, count, ") sd ON sd.sessionid = s.id")
	assert.Contains(t, count, ") dcity ON")
	assert.Contains(t, count, ") droom ON")
	assert.NotContains(t, count, ") st ON")
	assert.True(t, strings.HasSuffix(count, " WHERE "+plan.Where))
	assert.Contains(t, plan.RowSQL(), " WHERE "+plan.Where+" ORDER BY ")
}

func TestCompileDatelessRule(t *testing.T) {
	c := newTestCompiler()

	plan, err := c.Compile(FilterSet{}, allFields, directShape)
	require.NoError(t, err)
	assert.Equal(t, "s.timestart > 0", plan.Where)

	plan, err = c.Compile(FilterSet{IncludeDateless: true, End: time.Unix(100, 0)}, allFields, directShape)
	require.NoError(t, err)
	assert.Equal(t, "((s.timestart IS NULL OR s.timestart <= 0) OR (s.timestart > 0 AND s.timestart <= :dateto))", plan.Where)
}

func TestCompileSeparateDatesVariant(t *testing.T) {
	plan, err := newTestCompiler().Compile(FilterSet{Start: time.Unix(10, 0)}, allFields, SchemaShape{Dates: SeparateDatesTable, HasFieldTable: true})
	require.NoError(t, err)
	assert.Contains(t, plan.Fields, "CASE WHEN sd.timestart > 0 THEN sd.timestart END AS timestart")
	assert.Contains(t, plan.Fields, "0 AS capacity")
	assert.Contains(t, plan.Where, "sd.timestart >= :datefrom")
}

func TestCompileMissingFieldsDegrade(t *testing.T) {
	plan, err := newTestCompiler().Compile(FilterSet{Location: "x"}, FieldIDs{FieldVenue: 12}, directShape)
	require.NoError(t, err)
	assert.Contains(t, plan.Fields, "COALESCE(dcity.data, :notspecified) AS city")
	assert.Contains(t, plan.Fields, "COALESCE(dvenue.data, :notspecified) AS venue")
	assert.Contains(t, plan.From, "WHERE fieldid = :cityfieldid GROUP BY sessionid) dcity ON")
	assert.Equal(t, int64(0), plan.Params["cityfieldid"])
	assert.Equal(t, int64(12), plan.Params["venuefieldid"])
	assert.Equal(t, "(LOWER(dvenue.data) LIKE :location ESCAPE '!')", plan.Where[strings.Index(plan.Where, "(LOWER("):])
	assert.Equal(t, "Not specified", plan.Params["notspecified"])
}

func TestCompileSentinelIsNeverABareColumn(t *testing.T) {
	shapes := []SchemaShape{directShape, {Dates: SeparateDatesTable}}
	for _, shape := range shapes {
		for _, ids := range []FieldIDs{nil, {FieldRoom: 13}, allFields} {
			plan, err := newTestCompiler().Compile(FilterSet{}, ids, shape)
			require.NoError(t, err)
			assert.NotRegexp(t, `(^|, ):notspecified AS`, plan.Fields)
			assert.Equal(t, 3, strings.Count(plan.Fields, ":notspecified"))
		}
	}
}

func TestCompileNoFieldTableLocationMatchesNothing(t *testing.T) {
	plan, err := newTestCompiler().Compile(FilterSet{Location: "x"}, nil, SchemaShape{})
	require.NoError(t, err)
	assert.Contains(t, plan.Where, "1 = 0")
	assert.NotContains(t, plan.From, "facetoface_session_data")
	assert.Contains(t, plan.Fields, "CASE WHEN 1 = 0 THEN c.fullname ELSE :notspecified END AS city")

	plan, err = newTestCompiler().Compile(FilterSet{Location: "x"}, FieldIDs{}, directShape)
	require.NoError(t, err)
	assert.Contains(t, plan.Where, "1 = 0")
}

func TestCompileFailFast(t *testing.T) {
	c := NewCompiler(CompilerConfig{FailOnMissingFields: true})
	_, err := c.Compile(FilterSet{}, FieldIDs{FieldCity: 1}, directShape)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfiguration))

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{FieldRoom, FieldVenue}, missing.Fields)

	_, err = c.Compile(FilterSet{}, allFields, directShape)
	assert.NoError(t, err)
}

func TestPlanSetOrder(t *testing.T) {
	plan, err := newTestCompiler().Compile(FilterSet{}, allFields, directShape)
	require.NoError(t, err)
	assert.Equal(t, defaultOrderBy, plan.OrderBy)

	assert.True(t, plan.SetOrder("CourseName", true))
	assert.Equal(t, "coursename DESC, sessionid ASC", plan.OrderBy)

	assert.False(t, plan.SetOrder("1; DROP TABLE mdl_user", false))
	assert.Equal(t, "coursename DESC, sessionid ASC", plan.OrderBy)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%intro!_1%", LikePattern("Intro_1"))
	assert.Equal(t, "%a!!b!%%", LikePattern("A!b%"))
}
