package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
	"github.com/noah-isme/f2freport-api/internal/repository"
	"github.com/noah-isme/f2freport-api/pkg/config"
	"github.com/noah-isme/f2freport-api/pkg/database"
)

type configLoader func() (*config.Config, error)

type compileOptions struct {
	filter     report.RawFilter
	timezone   string
	sort       string
	order      string
	dsn        string
	driver     string
	dates      string
	noCapacity bool
	noFieldTbl bool
	fieldIDs   map[string]string
	failOnMiss bool
	limit      int
	offset     int
}

func newCompileCommand(load configLoader) *cobra.Command {
	opts := compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL and parameters of a session report",
		Long: "Compile a session report for the given filters and print the row and count\n" +
			"queries. Field ids and the schema shape come from --field and --dates, or\n" +
			"from a live database when --dsn is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runCompile(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.filter.CourseID, "courseid", "", "Course id")
	f.StringVar(&opts.filter.CourseText, "course", "", "Comma separated course names or ids")
	f.StringVar(&opts.filter.DateFrom.Value, "datefrom", "", "Lower bound in unix seconds")
	f.StringVar(&opts.filter.DateTo.Value, "dateto", "", "Upper bound in unix seconds")
	f.BoolVar(&opts.filter.FutureOnly, "futureonly", false, "Only upcoming sessions")
	f.BoolVar(&opts.filter.IncludeWaitlist, "includewaitlist", false, "Include sessions without dates")
	f.StringVar(&opts.filter.Location, "location", "", "City, venue or room substring")
	f.StringSliceVar(&opts.filter.TrainerIDs, "trainerids", nil, "Trainer user ids")
	f.StringVar(&opts.filter.Status, "status", "", "planned, completed or cancelled")
	f.StringVar(&opts.timezone, "timezone", "", "Timezone for calendar dates (defaults to REPORT_TIMEZONE)")
	f.StringVar(&opts.sort, "sort", "", "Sort column")
	f.StringVar(&opts.order, "order", "asc", "asc or desc")
	f.StringVar(&opts.dsn, "dsn", "", "Resolve fields and schema from this database")
	f.StringVar(&opts.driver, "driver", "", "Driver for --dsn (defaults to DB_DRIVER)")
	f.StringVar(&opts.dates, "dates", report.DirectDates.String(), "Dates variant without --dsn: direct_dates or separate_dates_table")
	f.BoolVar(&opts.noCapacity, "no-capacity", false, "Sessions table has no capacity column")
	f.BoolVar(&opts.noFieldTbl, "no-field-table", false, "Session field table is absent")
	f.StringToStringVar(&opts.fieldIDs, "field", nil, "Field ids without --dsn, e.g. city=3,venue=4")
	f.BoolVar(&opts.failOnMiss, "fail-on-missing-fields", false, "Fail when a location field is unresolved")
	f.IntVar(&opts.limit, "limit", 0, "Page size for the printed page parameters")
	f.IntVar(&opts.offset, "offset", 0, "Offset for the printed page parameters")

	return cmd
}

func runCompile(ctx context.Context, out io.Writer, cfg *config.Config, opts compileOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		return err
	}
	if opts.timezone != "" {
		if loc, err = time.LoadLocation(opts.timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	filters, notices := report.Normalize(opts.filter, report.NormalizeOptions{Now: time.Now(), Location: loc})

	ids, shape, err := resolveStorage(ctx, cfg, opts)
	if err != nil {
		return err
	}

	compiler := report.NewCompiler(report.CompilerConfig{
		TablePrefix:         cfg.Report.TablePrefix,
		NotSpecified:        cfg.Report.NotSpecified,
		FailOnMissingFields: opts.failOnMiss || cfg.Report.FailOnMissingFields,
		TrainerRoleID:       cfg.Report.TrainerRoleID,
	})
	plan, err := compiler.Compile(filters, ids, shape)
	if err != nil {
		return err
	}
	if opts.sort != "" && !plan.SetOrder(opts.sort, strings.EqualFold(opts.order, "desc")) {
		return fmt.Errorf("unknown sort column %q", opts.sort)
	}

	for _, n := range notices {
		fmt.Fprintf(out, "-- notice %s %s: %s\n", n.Code, n.Field, n.Message)
	}
	fmt.Fprintf(out, "-- shape: dates=%s capacity=%t field_table=%t\n", shape.Dates, shape.HasCapacity, shape.HasFieldTable)
	if missing := ids.Missing(report.LocationFields...); len(missing) > 0 {
		fmt.Fprintf(out, "-- unresolved fields: %s\n", strings.Join(missing, ", "))
	}

	params := plan.Params
	rowSQL := plan.RowSQL()
	if opts.limit > 0 {
		params = plan.PageParams(opts.limit, opts.offset)
		rowSQL = plan.PageSQL()
	}

	fmt.Fprintln(out, "-- rows")
	fmt.Fprintln(out, rowSQL+";")
	fmt.Fprintln(out, "-- count")
	fmt.Fprintln(out, plan.CountSQL()+";")
	fmt.Fprintln(out, "-- params")
	return writeParams(out, params)
}

func resolveStorage(ctx context.Context, cfg *config.Config, opts compileOptions) (report.FieldIDs, report.SchemaShape, error) {
	if opts.dsn == "" {
		return staticStorage(opts)
	}

	dbCfg := cfg.Database
	dbCfg.DSN = opts.dsn
	if opts.driver != "" {
		dbCfg.Driver = strings.ToLower(opts.driver)
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, report.SchemaShape{}, err
	}
	defer db.Close()

	shape, err := repository.NewSchemaRepository(db, cfg.Report.TablePrefix).Probe(ctx)
	if err != nil {
		return nil, report.SchemaShape{}, err
	}
	var fields []models.MetadataField
	if shape.HasFieldTable {
		fields, err = repository.NewMetadataFieldRepository(db, cfg.Report.TablePrefix).List(ctx)
		if err != nil {
			return nil, report.SchemaShape{}, err
		}
	}
	aliases := map[string][]string{
		report.FieldCity:  report.ParseAliases(cfg.Report.CityAliases, report.DefaultAliases[report.FieldCity]),
		report.FieldVenue: report.ParseAliases(cfg.Report.VenueAliases, report.DefaultAliases[report.FieldVenue]),
		report.FieldRoom:  report.ParseAliases(cfg.Report.RoomAliases, report.DefaultAliases[report.FieldRoom]),
	}
	return report.Resolve(aliases, fields), shape, nil
}

func staticStorage(opts compileOptions) (report.FieldIDs, report.SchemaShape, error) {
	shape := report.SchemaShape{HasCapacity: !opts.noCapacity, HasFieldTable: !opts.noFieldTbl}
	switch opts.dates {
	case "", report.DirectDates.String():
		shape.Dates = report.DirectDates
	case report.SeparateDatesTable.String():
		shape.Dates = report.SeparateDatesTable
	default:
		return nil, shape, fmt.Errorf("unknown dates variant %q", opts.dates)
	}

	ids := report.FieldIDs{}
	for name, raw := range opts.fieldIDs {
		name = strings.ToLower(strings.TrimSpace(name))
		var id int64
		if _, err := fmt.Sscan(raw, &id); err != nil || id <= 0 {
			return nil, shape, fmt.Errorf("invalid field id %s=%s", name, raw)
		}
		ids[name] = id
	}
	return ids, shape, nil
}

func writeParams(out io.Writer, params map[string]interface{}) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, err := json.Marshal(params[k])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s = %s\n", k, value)
	}
	return nil
}
