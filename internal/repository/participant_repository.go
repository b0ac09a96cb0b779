package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
)

// ParticipantRepository reads signups with their current status.
type ParticipantRepository struct {
	db     *sqlx.DB
	prefix string
}

// NewParticipantRepository constructs a ParticipantRepository.
func NewParticipantRepository(db *sqlx.DB, prefix string) *ParticipantRepository {
	return &ParticipantRepository{db: db, prefix: prefix}
}

// currentSignups joins every signup of :sessionid to its latest live status and user.
func (r *ParticipantRepository) currentSignups() string {
	return fmt.Sprintf(`FROM %[1]sfacetoface_signups su
        JOIN (SELECT signupid, MAX(id) AS maxid FROM %[1]sfacetoface_signups_status WHERE superceded = 0 GROUP BY signupid) cur ON cur.signupid = su.id
        JOIN %[1]sfacetoface_signups_status ss ON ss.id = cur.maxid
        JOIN %[1]suser u ON u.id = su.userid
        WHERE su.sessionid = :sessionid AND u.deleted = 0`, r.prefix)
}

// ListBySession returns participants ordered by status priority then name.
func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.Participant, error) {
	query := `SELECT u.id AS userid, u.firstname, u.lastname, u.email, ss.statuscode, ss.timecreated ` +
		r.currentSignups() +
		` ORDER BY ss.statuscode DESC, u.lastname ASC, u.firstname ASC, u.id ASC`
	bound, args, err := bindNamed(r.db, query, map[string]interface{}{"sessionid": sessionID})
	if err != nil {
		return nil, fmt.Errorf("bind participants: %w", err)
	}
	participants := make([]models.Participant, 0)
	if err := r.db.SelectContext(ctx, &participants, bound, args...); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// Counts returns the participant total (user cancellations excluded) and the present count.
func (r *ParticipantRepository) Counts(ctx context.Context, sessionID int64) (models.ParticipantCounts, error) {
	query := `SELECT COUNT(DISTINCT CASE WHEN ss.statuscode > :usercancelled THEN su.userid END) AS total,
        COUNT(DISTINCT CASE WHEN ss.statuscode IN (:present0, :present1) THEN su.userid END) AS present ` +
		r.currentSignups()
	params := map[string]interface{}{
		"sessionid":     sessionID,
		"usercancelled": int(models.StatusUserCancelled),
		"present0":      int(models.StatusPartiallyAttended),
		"present1":      int(models.StatusFullyAttended),
	}
	bound, args, err := bindNamed(r.db, query, params)
	if err != nil {
		return models.ParticipantCounts{}, fmt.Errorf("bind participant counts: %w", err)
	}
	var counts models.ParticipantCounts
	if err := r.db.GetContext(ctx, &counts, bound, args...); err != nil {
		return models.ParticipantCounts{}, fmt.Errorf("count participants: %w", err)
	}
	return counts, nil
}

// SessionInfo returns the header of a session or sql.ErrNoRows.
func (r *ParticipantRepository) SessionInfo(ctx context.Context, sessionID int64, shape report.SchemaShape) (*models.SessionInfo, error) {
	start := "CASE WHEN s.timestart > 0 THEN s.timestart END"
	finish := "CASE WHEN s.timestart > 0 THEN s.timefinish END"
	if shape.Dates == report.SeparateDatesTable {
		start = fmt.Sprintf("(SELECT MIN(d.timestart) FROM %sfacetoface_sessions_dates d WHERE d.sessionid = s.id AND d.timestart > 0)", r.prefix)
		finish = fmt.Sprintf("(SELECT MAX(d.timefinish) FROM %sfacetoface_sessions_dates d WHERE d.sessionid = s.id AND d.timestart > 0)", r.prefix)
	}
	query := fmt.Sprintf(`SELECT s.id AS sessionid, c.id AS courseid, c.fullname AS coursename, %[2]s AS timestart, %[3]s AS timefinish
        FROM %[1]sfacetoface_sessions s
        JOIN %[1]sfacetoface f ON f.id = s.facetoface
        JOIN %[1]scourse c ON c.id = f.course
        WHERE s.id = :sessionid`, r.prefix, start, finish)
	bound, args, err := bindNamed(r.db, query, map[string]interface{}{"sessionid": sessionID})
	if err != nil {
		return nil, fmt.Errorf("bind session info: %w", err)
	}
	var info models.SessionInfo
	if err := r.db.GetContext(ctx, &info, bound, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session info: %w", err)
	}
	return &info, nil
}
