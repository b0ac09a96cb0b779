package report

import (
	"fmt"
	"strings"

	"github.com/noah-isme/f2freport-api/internal/models"
)

// DateVariant identifies where session occurrence times are stored.
type DateVariant int

const (
	// DirectDates stores timestart/timefinish on the session row.
	DirectDates DateVariant = iota
	// SeparateDatesTable stores one row per occurrence in facetoface_sessions_dates.
	SeparateDatesTable
)

func (v DateVariant) String() string {
	if v == SeparateDatesTable {
		return "separate_dates_table"
	}
	return "direct_dates"
}

// SchemaShape describes the storage layout detected at runtime.
type SchemaShape struct {
	Dates         DateVariant `json:"dates"`
	HasCapacity   bool        `json:"has_capacity"`
	HasFieldTable bool        `json:"has_field_table"`
}

// CompilerConfig holds the static inputs of query compilation.
type CompilerConfig struct {
	TablePrefix         string
	NotSpecified        string
	FailOnMissingFields bool
	// RequiredFields defaults to LocationFields.
	RequiredFields []string
	// TrainerRoleID restricts the trainer filter to one role; 0 accepts any role.
	TrainerRoleID int64
}

const (
	defaultNotSpecified = "Not specified"
	likeEscape          = "!"
)

// SortableColumns maps accepted sort keys to output columns.
var SortableColumns = map[string]string{
	"sessionid":         "sessionid",
	"coursename":        "coursename",
	"timestart":         "timestart",
	"timefinish":        "timefinish",
	"city":              "city",
	"venue":             "venue",
	"room":              "room",
	"totalparticipants": "totalparticipants",
	"capacity":          "capacity",
}

const defaultOrderBy = "timestart ASC, sessionid ASC"

// Plan is a compiled report query. All values live in Params and are
// referenced as :name placeholders.
type Plan struct {
	Fields    string
	From      string
	CountFrom string
	Where     string
	OrderBy   string
	Params    map[string]interface{}
}

// RowSQL returns the unpaged row query.
func (p *Plan) RowSQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(p.Fields)
	b.WriteString(" FROM ")
	b.WriteString(p.From)
	if p.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(p.Where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(p.OrderBy)
	return b.String()
}

// PageSQL returns the row query limited by :limit and :offset.
func (p *Plan) PageSQL() string {
	return p.RowSQL() + " LIMIT :limit OFFSET :offset"
}

// CountSQL returns the total count query sharing the row predicate.
func (p *Plan) CountSQL() string {
	query := "SELECT COUNT(1) FROM " + p.CountFrom
	if p.Where != "" {
		query += " WHERE " + p.Where
	}
	return query
}

// PageParams copies Params and adds the paging values.
func (p *Plan) PageParams(limit, offset int) map[string]interface{} {
	params := make(map[string]interface{}, len(p.Params)+2)
	for k, v := range p.Params {
		params[k] = v
	}
	params["limit"] = limit
	params["offset"] = offset
	return params
}

// SetOrder replaces the ORDER BY clause with a whitelisted column. Unknown
// keys leave the plan untouched and return false.
func (p *Plan) SetOrder(key string, desc bool) bool {
	column, ok := SortableColumns[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return false
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if column == "sessionid" {
		p.OrderBy = "sessionid " + dir
		return true
	}
	p.OrderBy = column + " " + dir + ", sessionid ASC"
	return true
}

// Compiler turns a FilterSet into a Plan.
type Compiler struct {
	cfg CompilerConfig
}

// NewCompiler returns a compiler with defaults applied to cfg.
func NewCompiler(cfg CompilerConfig) *Compiler {
	if cfg.NotSpecified == "" {
		cfg.NotSpecified = defaultNotSpecified
	}
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = LocationFields
	}
	return &Compiler{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Compiler) Config() CompilerConfig { return c.cfg }

// join names, in emission order.
const (
	joinDates = "dates"
	joinTally = "tally"
)

var fieldAliases = map[string]string{
	FieldCity:  "dcity",
	FieldVenue: "dvenue",
	FieldRoom:  "droom",
}

type builder struct {
	prefix string
	shape  SchemaShape
	params map[string]interface{}
	joins  map[string]string
	order  []string
	used   map[string]bool
	where  []string
}

func (b *builder) table(name string) string { return b.prefix + name }

func (b *builder) bind(name string, value interface{}) string {
	b.params[name] = value
	return ":" + name
}

func (b *builder) addJoin(name, clause string) {
	b.joins[name] = clause
	b.order = append(b.order, name)
}

func (b *builder) use(names ...string) {
	for _, n := range names {
		if _, ok := b.joins[n]; ok {
			b.used[n] = true
		}
	}
}

func (b *builder) from(all bool) string {
	var sb strings.Builder
	sb.WriteString(b.table("facetoface"))
	sb.WriteString(" f JOIN ")
	sb.WriteString(b.table("course"))
	sb.WriteString(" c ON c.id = f.course JOIN ")
	sb.WriteString(b.table("facetoface_sessions"))
	sb.WriteString(" s ON s.facetoface = f.id")
	for _, name := range b.order {
		if all || b.used[name] {
			sb.WriteString(" ")
			sb.WriteString(b.joins[name])
		}
	}
	return sb.String()
}

func (b *builder) startExpr() string {
	if b.shape.Dates == SeparateDatesTable {
		return "sd.timestart"
	}
	return "s.timestart"
}

func (b *builder) finishExpr() string {
	if b.shape.Dates == SeparateDatesTable {
		return "sd.timefinish"
	}
	return "s.timefinish"
}

func (b *builder) bindList(prefix string, values []int64) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = b.bind(fmt.Sprintf("%s%d", prefix, i), v)
	}
	return strings.Join(names, ", ")
}

func statusValues(codes []models.StatusCode) []int64 {
	out := make([]int64, len(codes))
	for i, c := range codes {
		out[i] = int64(c)
	}
	return out
}

// Compile builds the row and count queries for filters. It is a pure function
// of its inputs: the same arguments always produce the same Plan.
func (c *Compiler) Compile(filters FilterSet, fieldIDs FieldIDs, shape SchemaShape) (*Plan, error) {
	if c.cfg.FailOnMissingFields {
		if missing := fieldIDs.Missing(c.cfg.RequiredFields...); len(missing) > 0 {
			return nil, &MissingFieldsError{Fields: missing}
		}
	}

	b := &builder{
		prefix: c.cfg.TablePrefix,
		shape:  shape,
		params: make(map[string]interface{}),
		joins:  make(map[string]string),
		used:   make(map[string]bool),
	}
	notSpecified := b.bind("notspecified", c.cfg.NotSpecified)

	if shape.Dates == SeparateDatesTable {
		b.addJoin(joinDates, "LEFT JOIN (SELECT sessionid, MIN(timestart) AS timestart, MAX(timefinish) AS timefinish FROM "+
			b.table("facetoface_sessions_dates")+" WHERE timestart > 0 GROUP BY sessionid) sd ON sd.sessionid = s.id")
	}

	fieldSelect := make([]string, 0, len(LocationFields))
	resolved := make(map[string]bool, len(LocationFields))
	for _, field := range LocationFields {
		alias := fieldAliases[field]
		if !shape.HasFieldTable {
			// c.fullname gives the parameter a text type on drivers that
			// prepare statements without type hints.
			fieldSelect = append(fieldSelect, "CASE WHEN 1 = 0 THEN c.fullname ELSE "+notSpecified+" END AS "+field)
			continue
		}
		// An unresolved field joins on id 0, which matches no row.
		id, ok := fieldIDs.ID(field)
		resolved[field] = ok
		param := b.bind(field+"fieldid", id)
		b.addJoin(field, "LEFT JOIN (SELECT sessionid, MAX(data) AS data FROM "+b.table("facetoface_session_data")+
			" WHERE fieldid = "+param+" GROUP BY sessionid) "+alias+" ON "+alias+".sessionid = s.id")
		fieldSelect = append(fieldSelect, "COALESCE("+alias+".data, "+notSpecified+") AS "+field)
	}

	active := b.bindList("activestatus", statusValues(models.ActiveStatuses))
	present := b.bindList("presentstatus", statusValues(models.AttendedStatuses))
	cancelled := b.bind("cancelledstatus", int64(models.StatusSessionCancelled))
	b.addJoin(joinTally, "LEFT JOIN (SELECT su.sessionid,"+
		" COUNT(DISTINCT CASE WHEN ss.statuscode IN ("+active+") THEN su.userid END) AS participants,"+
		" COUNT(DISTINCT CASE WHEN ss.statuscode IN ("+present+") THEN su.userid END) AS presentcount,"+
		" COUNT(DISTINCT CASE WHEN ss.statuscode = "+cancelled+" THEN su.userid END) AS cancelledcount"+
		" FROM "+b.table("facetoface_signups")+" su"+
		" JOIN (SELECT signupid, MAX(id) AS maxid FROM "+b.table("facetoface_signups_status")+
		" WHERE superceded = 0 GROUP BY signupid) cur ON cur.signupid = su.id"+
		" JOIN "+b.table("facetoface_signups_status")+" ss ON ss.id = cur.maxid"+
		" GROUP BY su.sessionid) st ON st.sessionid = s.id")

	start, finish := b.startExpr(), b.finishExpr()

	if filters.CourseID > 0 {
		b.where = append(b.where, "f.course = "+b.bind("courseid", filters.CourseID))
	}

	if len(filters.CourseTerms) > 0 {
		var or []string
		for i, term := range filters.CourseTerms {
			name := fmt.Sprintf("courseterm%d", i)
			if term.ID > 0 {
				or = append(or, "c.id = "+b.bind(name+"id", term.ID))
			}
			or = append(or, "LOWER(c.fullname) LIKE "+b.bind(name, LikePattern(term.Text))+" ESCAPE '"+likeEscape+"'")
		}
		b.where = append(b.where, "("+strings.Join(or, " OR ")+")")
	}

	if clause := dateClause(b, filters, start); clause != "" {
		b.use(joinDates)
		b.where = append(b.where, clause)
	}

	if filters.Location != "" {
		pattern := b.bind("location", LikePattern(filters.Location))
		var or []string
		for _, field := range LocationFields {
			if !resolved[field] {
				continue
			}
			b.use(field)
			or = append(or, "LOWER("+fieldAliases[field]+".data) LIKE "+pattern+" ESCAPE '"+likeEscape+"'")
		}
		if len(or) == 0 {
			b.where = append(b.where, "1 = 0")
		} else {
			b.where = append(b.where, "("+strings.Join(or, " OR ")+")")
		}
	}

	if len(filters.TrainerIDs) > 0 {
		clause := "EXISTS (SELECT 1 FROM " + b.table("facetoface_session_roles") +
			" sr WHERE sr.sessionid = s.id AND sr.userid IN (" + b.bindList("trainer", filters.TrainerIDs) + ")"
		if c.cfg.TrainerRoleID > 0 {
			clause += " AND sr.roleid = " + b.bind("trainerroleid", c.cfg.TrainerRoleID)
		}
		b.where = append(b.where, clause+")")
	}

	switch filters.Status {
	case SessionStatusPlanned:
		b.use(joinDates, joinTally)
		b.where = append(b.where, start+" >= "+b.bind("now", filters.Now.Unix())+" AND COALESCE(st.cancelledcount, 0) = 0")
	case SessionStatusCompleted:
		b.use(joinDates, joinTally)
		b.where = append(b.where, finish+" > 0 AND "+finish+" < "+b.bind("now", filters.Now.Unix())+" AND COALESCE(st.cancelledcount, 0) = 0")
	case SessionStatusCancelled:
		b.use(joinTally)
		b.where = append(b.where, "COALESCE(st.cancelledcount, 0) > 0")
	}

	capacity := "0 AS capacity"
	if shape.HasCapacity {
		capacity = "COALESCE(s.capacity, 0) AS capacity"
	}
	fields := []string{
		"s.id AS sessionid",
		"c.id AS courseid",
		"c.fullname AS coursename",
		"CASE WHEN " + start + " > 0 THEN " + start + " END AS timestart",
		"CASE WHEN " + start + " > 0 THEN " + finish + " END AS timefinish",
	}
	fields = append(fields, fieldSelect...)
	fields = append(fields,
		"COALESCE(st.participants, 0) AS totalparticipants",
		"COALESCE(st.presentcount, 0) AS presentcount",
		capacity,
	)

	return &Plan{
		Fields:    strings.Join(fields, ", "),
		From:      b.from(true),
		CountFrom: b.from(false),
		Where:     strings.Join(b.where, " AND "),
		OrderBy:   defaultOrderBy,
		Params:    b.params,
	}, nil
}

// dateClause applies the bounds and the dateless rule. It returns "" when the
// filters do not restrict dates at all.
func dateClause(b *builder, filters FilterSet, start string) string {
	bounds := []string{start + " > 0"}
	if filters.HasStart() {
		bounds = append(bounds, start+" >= "+b.bind("datefrom", filters.Start.Unix()))
	}
	if filters.HasEnd() {
		bounds = append(bounds, start+" <= "+b.bind("dateto", filters.End.Unix()))
	}
	dated := strings.Join(bounds, " AND ")
	if !filters.IncludeDateless {
		return dated
	}
	if len(bounds) == 1 {
		return ""
	}
	return "((" + start + " IS NULL OR " + start + " <= 0) OR (" + dated + "))"
}

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// LikePattern lower-cases text, escapes LIKE wildcards with '!' and wraps it
// for a substring match.
func LikePattern(text string) string {
	return "%" + likeReplacer.Replace(strings.ToLower(text)) + "%"
}
