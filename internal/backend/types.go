package backend

import "time"

// Links and Meta mirror the backend's pagination envelope.
type Links struct {
	First *string `json:"first"`
	Last  *string `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type Meta struct {
	CurrentPage int  `json:"current_page"`
	From        *int `json:"from"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	To          *int `json:"to"`
	Total       int  `json:"total"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Data  []T   `json:"data"`
	Links Links `json:"links"`
	Meta  Meta  `json:"meta"`
}

// EventListItem is one row of GET /api/events.
type EventListItem struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	StartingAt         time.Time `json:"starting_at"`
	EndingAt           time.Time `json:"ending_at"`
	ParticipationScope string    `json:"participation_scope"`
	EventType          string    `json:"event_type"`
	AttendanceCount    *int      `json:"attendance_count,omitempty"`
}

// UserStat is a participant's contest result inside an event.
type UserStat struct {
	Name           string `json:"name"`
	Username       string `json:"username"`
	StudentID      string `json:"student_id"`
	Department     string `json:"department"`
	ProfilePicture string `json:"profile_picture"`
	SolveCount     int    `json:"solve_count"`
	UpsolveCount   int    `json:"upsolve_count"`
	Participation  bool   `json:"participation"`
}

// Attendee is an attendance record created by the backend.
type Attendee struct {
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	StudentID      string    `json:"student_id"`
	Department     string    `json:"department"`
	ProfilePicture string    `json:"profile_picture"`
	AttendanceTime time.Time `json:"attendance_time"`
}

// EventDetail is the payload of GET /api/events/{id}.
type EventDetail struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	StartingAt         time.Time  `json:"starting_at"`
	EndingAt           time.Time  `json:"ending_at"`
	ParticipationScope string     `json:"participation_scope"`
	EventLink          string     `json:"event_link,omitempty"`
	OpenForAttendance  bool       `json:"open_for_attendance"`
	UserStats          []UserStat `json:"user_stats,omitempty"`
	Attendees          []Attendee `json:"attendees,omitempty"`
}

// AttendeeUsernames lists the usernames of everyone recorded as attending.
func (e *EventDetail) AttendeeUsernames() []string {
	names := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		names = append(names, a.Username)
	}
	return names
}

// EventQuery filters GET /api/events.
type EventQuery struct {
	Search             string
	Type               string
	ParticipationScope string
	Page               int
}

// User is the authenticated user's profile.
type User struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Username         string  `json:"username"`
	Gender           *string `json:"gender"`
	Phone            *string `json:"phone"`
	CodeforcesHandle *string `json:"codeforces_handle"`
	AtcoderHandle    *string `json:"atcoder_handle"`
	VjudgeHandle     *string `json:"vjudge_handle"`
	Department       *string `json:"department"`
	StudentID        *string `json:"student_id"`
	MaxCFRating      *int    `json:"max_cf_rating"`
	ProfilePicture   *string `json:"profile_picture"`
}

// LoginResponse is returned by POST /api/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	User      User   `json:"user"`
}

// ProfileUpdate is the body of PUT /api/profile. Nil fields are sent as null,
// which clears them.
type ProfileUpdate struct {
	Name             *string `json:"name"`
	Username         *string `json:"username"`
	Gender           *string `json:"gender"`
	Phone            *string `json:"phone"`
	CodeforcesHandle *string `json:"codeforces_handle"`
	AtcoderHandle    *string `json:"atcoder_handle"`
	VjudgeHandle     *string `json:"vjudge_handle"`
	Department       *string `json:"department"`
	StudentID        *string `json:"student_id"`
}
