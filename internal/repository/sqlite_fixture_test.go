package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/f2freport-api/internal/report"
)

// day0 is 2024-03-14 00:00:00 UTC.
const (
	day0   int64 = 1710374400
	hour   int64 = 3600
	oneDay int64 = 86400
)

const (
	citySessionID      = 1
	tomorrowSessionID  = 2
	datelessSessionID  = 3
	cancelledSessionID = 4
	lateSessionID      = 5
	multiDaySessionID  = 6
)

type occurrence struct{ start, finish int64 }

var fixtureOccurrences = map[int64][]occurrence{
	citySessionID:      {{day0 + 9*hour, day0 + 12*hour}},
	tomorrowSessionID:  {{day0 + oneDay + 9*hour, day0 + oneDay + 12*hour}},
	cancelledSessionID: {{day0 - 10*oneDay + 9*hour, day0 - 10*oneDay + 12*hour}},
	lateSessionID:      {{day0 + 84600, day0 + 86300}},
	multiDaySessionID: {
		{day0 + 5*oneDay + 9*hour, day0 + 5*oneDay + 12*hour},
		{day0 + 6*oneDay + 9*hour, day0 + 6*oneDay + 12*hour},
	},
}

// newFixtureDB builds an in-memory installation in the requested dates variant.
func newFixtureDB(t *testing.T, variant report.DateVariant) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sessions := "CREATE TABLE mdl_facetoface_sessions (id INTEGER PRIMARY KEY, facetoface INTEGER NOT NULL, capacity INTEGER NOT NULL DEFAULT 0)"
	if variant == report.DirectDates {
		sessions = "CREATE TABLE mdl_facetoface_sessions (id INTEGER PRIMARY KEY, facetoface INTEGER NOT NULL, capacity INTEGER NOT NULL DEFAULT 0, timestart INTEGER NOT NULL DEFAULT 0, timefinish INTEGER NOT NULL DEFAULT 0)"
	}
	statements := []string{
		"CREATE TABLE mdl_course (id INTEGER PRIMARY KEY, fullname TEXT NOT NULL, visible INTEGER NOT NULL DEFAULT 1)",
		"CREATE TABLE mdl_facetoface (id INTEGER PRIMARY KEY, course INTEGER NOT NULL)",
		sessions,
		"CREATE TABLE mdl_facetoface_sessions_dates (id INTEGER PRIMARY KEY, sessionid INTEGER NOT NULL, timestart INTEGER NOT NULL, timefinish INTEGER NOT NULL)",
		"CREATE TABLE mdl_facetoface_session_field (id INTEGER PRIMARY KEY, shortname TEXT NOT NULL, name TEXT NOT NULL)",
		"CREATE TABLE mdl_facetoface_session_data (id INTEGER PRIMARY KEY, fieldid INTEGER NOT NULL, sessionid INTEGER NOT NULL, data TEXT)",
		"CREATE TABLE mdl_facetoface_signups (id INTEGER PRIMARY KEY, sessionid INTEGER NOT NULL, userid INTEGER NOT NULL)",
		"CREATE TABLE mdl_facetoface_signups_status (id INTEGER PRIMARY KEY, signupid INTEGER NOT NULL, statuscode INTEGER NOT NULL, superceded INTEGER NOT NULL DEFAULT 0, timecreated INTEGER NOT NULL DEFAULT 0)",
		"CREATE TABLE mdl_facetoface_session_roles (id INTEGER PRIMARY KEY, sessionid INTEGER NOT NULL, roleid INTEGER NOT NULL, userid INTEGER NOT NULL)",
		"CREATE TABLE mdl_user (id INTEGER PRIMARY KEY, firstname TEXT, lastname TEXT, email TEXT, deleted INTEGER NOT NULL DEFAULT 0)",

		"INSERT INTO mdl_course (id, fullname, visible) VALUES (101, 'Advanced welding', 1), (5, 'Introduction to first aid', 1), (6, 'Course 1010 refresher', 0), (7, 'Fire drills', 1), (8, 'Orphan course', 1)",
		"INSERT INTO mdl_facetoface (id, course) VALUES (1, 101), (2, 5), (3, 6), (4, 7)",

		"INSERT INTO mdl_facetoface_session_field (id, shortname, name) VALUES (1, 'ville', 'Ville de la formation'), (2, 'lieu', 'Lieu'), (3, 'salle', 'Salle')",
		"INSERT INTO mdl_facetoface_session_data (fieldid, sessionid, data) VALUES (1, 1, 'Lyon'), (1, 1, 'Lyon'), (2, 1, 'Campus Nord'), (3, 1, 'A1'), (1, 2, 'Paris')",

		"INSERT INTO mdl_user (id, firstname, lastname, email, deleted) VALUES (1, 'Ada', 'Lovelace', 'ada@example.org', 0), (2, 'Bob', 'Martin', 'bob@example.org', 0), (3, 'Cleo', 'Durand', 'cleo@example.org', 0), (4, 'Dan', 'Abel', 'dan@example.org', 0), (5, 'Eve', 'Stone', 'eve@example.org', 0), (6, 'Gone', 'User', 'gone@example.org', 1), (9, 'Tara', 'Trainer', 'tara@example.org', 0)",
		"INSERT INTO mdl_facetoface_signups (id, sessionid, userid) VALUES (1, 1, 1), (2, 1, 2), (3, 1, 3), (4, 1, 4), (5, 4, 5), (6, 2, 1), (7, 2, 6)",
		// user 1: booked then fully attended; user 2: booked then cancelled;
		// user 3: partially attended, later superseded row ignored; user 4: waitlisted.
		"INSERT INTO mdl_facetoface_signups_status (id, signupid, statuscode, superceded, timecreated) VALUES " +
			"(1, 1, 70, 1, 100), (2, 1, 100, 0, 200), " +
			"(3, 2, 70, 0, 100), (4, 2, 10, 0, 300), " +
			"(5, 3, 90, 0, 100), (6, 3, 70, 1, 400), " +
			"(7, 4, 60, 0, 100), " +
			"(8, 5, 20, 0, 100), " +
			"(9, 6, 70, 0, 100), (10, 7, 70, 0, 100)",
		"INSERT INTO mdl_facetoface_session_roles (sessionid, roleid, userid) VALUES (2, 3, 9), (1, 4, 9)",
	}

	ids := []int64{citySessionID, tomorrowSessionID, datelessSessionID, cancelledSessionID, lateSessionID, multiDaySessionID}
	activity := map[int64]int64{citySessionID: 1, tomorrowSessionID: 2, datelessSessionID: 3, cancelledSessionID: 4, lateSessionID: 2, multiDaySessionID: 2}
	capacity := map[int64]int64{citySessionID: 10}

	ctx := context.Background()
	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	for _, id := range ids {
		occ := fixtureOccurrences[id]
		if variant == report.DirectDates {
			var start, finish int64
			if len(occ) > 0 {
				start, finish = occ[0].start, occ[len(occ)-1].finish
			}
			_, err := db.ExecContext(ctx, "INSERT INTO mdl_facetoface_sessions (id, facetoface, capacity, timestart, timefinish) VALUES (?, ?, ?, ?, ?)",
				id, activity[id], capacity[id], start, finish)
			require.NoError(t, err)
			continue
		}
		_, err := db.ExecContext(ctx, "INSERT INTO mdl_facetoface_sessions (id, facetoface, capacity) VALUES (?, ?, ?)", id, activity[id], capacity[id])
		require.NoError(t, err)
		for _, o := range occ {
			_, err := db.ExecContext(ctx, "INSERT INTO mdl_facetoface_sessions_dates (sessionid, timestart, timefinish) VALUES (?, ?, ?)", id, o.start, o.finish)
			require.NoError(t, err)
		}
	}
	if variant == report.SeparateDatesTable {
		// an unscheduled placeholder occurrence keeps the session dateless
		_, err := db.ExecContext(ctx, "INSERT INTO mdl_facetoface_sessions_dates (sessionid, timestart, timefinish) VALUES (?, 0, 0)", datelessSessionID)
		require.NoError(t, err)
	}
	return db
}

func forEachVariant(t *testing.T, fn func(t *testing.T, db *sqlx.DB, shape report.SchemaShape)) {
	for _, variant := range []report.DateVariant{report.DirectDates, report.SeparateDatesTable} {
		t.Run(variant.String(), func(t *testing.T) {
			db := newFixtureDB(t, variant)
			shape, err := NewSchemaRepository(db, "mdl_").Probe(context.Background())
			require.NoError(t, err)
			require.Equal(t, variant, shape.Dates)
			fn(t, db, shape)
		})
	}
}
