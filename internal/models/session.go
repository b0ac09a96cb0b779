package models

// Course is a course that owns at least one face-to-face activity.
type Course struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"fullname" json:"fullname"`
	Visible  bool   `db:"visible" json:"visible"`
}

// MetadataField is a user-defined session attribute (city, venue, room...).
type MetadataField struct {
	ID        int64  `db:"id" json:"id"`
	ShortName string `db:"shortname" json:"shortname"`
	Name      string `db:"name" json:"name"`
}

// SessionRow is one line of the session report. Dateless sessions carry nil times.
type SessionRow struct {
	SessionID         int64  `db:"sessionid" json:"session_id"`
	CourseID          int64  `db:"courseid" json:"course_id"`
	CourseName        string `db:"coursename" json:"course_name"`
	TimeStart         *int64 `db:"timestart" json:"time_start,omitempty"`
	TimeFinish        *int64 `db:"timefinish" json:"time_finish,omitempty"`
	City              string `db:"city" json:"city"`
	Venue             string `db:"venue" json:"venue"`
	Room              string `db:"room" json:"room"`
	TotalParticipants int    `db:"totalparticipants" json:"total_participants"`
	PresentCount      int    `db:"presentcount" json:"present_count"`
	Capacity          int    `db:"capacity" json:"capacity"`
}

// Dateless reports whether the session has no occurrence with a positive start.
func (r SessionRow) Dateless() bool {
	return r.TimeStart == nil || *r.TimeStart <= 0
}

// SessionInfo is the header shown above a participant list.
type SessionInfo struct {
	SessionID  int64  `db:"sessionid" json:"session_id"`
	CourseID   int64  `db:"courseid" json:"course_id"`
	CourseName string `db:"coursename" json:"course_name"`
	TimeStart  *int64 `db:"timestart" json:"time_start,omitempty"`
	TimeFinish *int64 `db:"timefinish" json:"time_finish,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
