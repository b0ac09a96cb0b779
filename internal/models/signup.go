package models

// StatusCode is the lifecycle state of a signup. Higher codes take priority.
type StatusCode int

const (
	StatusUserCancelled     StatusCode = 10
	StatusSessionCancelled  StatusCode = 20
	StatusDeclined          StatusCode = 30
	StatusRequested         StatusCode = 40
	StatusApproved          StatusCode = 50
	StatusWaitlisted        StatusCode = 60
	StatusBooked            StatusCode = 70
	StatusNoShow            StatusCode = 80
	StatusPartiallyAttended StatusCode = 90
	StatusFullyAttended     StatusCode = 100
)

// StatusPriority lists every status from highest to lowest priority.
var StatusPriority = []StatusCode{
	StatusFullyAttended,
	StatusPartiallyAttended,
	StatusNoShow,
	StatusBooked,
	StatusWaitlisted,
	StatusApproved,
	StatusRequested,
	StatusDeclined,
	StatusSessionCancelled,
	StatusUserCancelled,
}

// ActiveStatuses counts towards the participant total: requested through fully attended.
var ActiveStatuses = []StatusCode{
	StatusRequested,
	StatusApproved,
	StatusWaitlisted,
	StatusBooked,
	StatusNoShow,
	StatusPartiallyAttended,
	StatusFullyAttended,
}

// AttendedStatuses counts towards the present total.
var AttendedStatuses = []StatusCode{
	StatusPartiallyAttended,
	StatusFullyAttended,
}

var statusNames = map[StatusCode]string{
	StatusUserCancelled:     "user_cancelled",
	StatusSessionCancelled:  "session_cancelled",
	StatusDeclined:          "declined",
	StatusRequested:         "requested",
	StatusApproved:          "approved",
	StatusWaitlisted:        "waitlisted",
	StatusBooked:            "booked",
	StatusNoShow:            "no_show",
	StatusPartiallyAttended: "partially_attended",
	StatusFullyAttended:     "fully_attended",
}

var statusLabels = map[StatusCode]string{
	StatusUserCancelled:     "User cancelled",
	StatusSessionCancelled:  "Session cancelled",
	StatusDeclined:          "Declined",
	StatusRequested:         "Requested",
	StatusApproved:          "Approved",
	StatusWaitlisted:        "Waitlisted",
	StatusBooked:            "Booked",
	StatusNoShow:            "No show",
	StatusPartiallyAttended: "Partially attended",
	StatusFullyAttended:     "Fully attended",
}

// Valid reports whether the code belongs to the known enumeration.
func (s StatusCode) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// String returns the machine name of the status.
func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Label returns the human readable status text.
func (s StatusCode) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// IsActive reports whether the status counts as an active participant.
func (s StatusCode) IsActive() bool {
	return s >= StatusRequested && s.Valid()
}

// IsAttended reports whether the status counts as present.
func (s StatusCode) IsAttended() bool {
	return s == StatusPartiallyAttended || s == StatusFullyAttended
}

// Participant is a person signed up to a session together with the current status.
type Participant struct {
	UserID      int64      `db:"userid" json:"user_id"`
	FirstName   string     `db:"firstname" json:"first_name"`
	LastName    string     `db:"lastname" json:"last_name"`
	Email       string     `db:"email" json:"email"`
	StatusCode  StatusCode `db:"statuscode" json:"status_code"`
	TimeCreated int64      `db:"timecreated" json:"time_created"`
}

// FullName joins first and last name.
func (p Participant) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ParticipantCounts aggregates the current statuses of a session.
type ParticipantCounts struct {
	Total   int `db:"total" json:"total"`
	Present int `db:"present" json:"present"`
}
