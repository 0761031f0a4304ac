package attendance

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// State is the controller's position in the marking flow.
type State int

const (
	StateIdle State = iota
	StateDialogOpen
	StateSubmitting
	StateAttended
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialogOpen:
		return "dialog-open"
	case StateSubmitting:
		return "submitting"
	case StateAttended:
		return "attended"
	default:
		return "unknown"
	}
}

// Event is the part of the event read model the flow depends on.
type Event struct {
	ID                int64
	Title             string
	StartingAt        time.Time
	EndingAt          time.Time
	OpenForAttendance bool
	Link              string
	// Attendees holds the usernames the backend has recorded for this event.
	Attendees []string
}

// Viewer is the signed-in user: the bearer token and the username used to
// look the viewer up in the attendee list.
type Viewer struct {
	Token    string
	Username string
}

// SessionReader exposes the current viewer, or nil when nobody is signed in.
type SessionReader interface {
	CurrentSession() *Viewer
}

// SessionFunc adapts a function to SessionReader.
type SessionFunc func() *Viewer

func (f SessionFunc) CurrentSession() *Viewer { return f() }

// Navigator sends the viewer to another page.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) { f(path) }

// Submitter performs the authenticated attendance request.
type Submitter interface {
	Attend(ctx context.Context, token string, eventID int64, password string) error
}

// Options wires the controller to its collaborators. Refresh is called once
// after every accepted submission so the caller can reload server data.
type Options struct {
	Sessions  SessionReader
	Navigator Navigator
	Submitter Submitter
	Refresh   func()
	Now       func() time.Time
}

// Button is the render model for the attendance action.
type Button struct {
	Label    string
	Icon     string
	Disabled bool
	Variant  string
}

// Controller gates and executes attendance marking for one page view.
type Controller struct {
	event Event
	opts  Options

	mu          sync.Mutex
	state       State
	hasAttended bool
	password    string
	lastErr     error
}

// NewController builds a controller for event. The viewer counts as attended
// when their username is already in event.Attendees.
func NewController(event Event, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{event: event, opts: opts}
	c.reconcileLocked()
	return c
}

// LoginPath is where anonymous viewers are sent, carrying the page to return to.
func LoginPath(returnTo string) string {
	return "/login?redirect=" + url.QueryEscape(returnTo)
}

func (c *Controller) viewer() *Viewer {
	if c.opts.Sessions == nil {
		return nil
	}
	return c.opts.Sessions.CurrentSession()
}

// Reconcile replaces the attendee list with the server's latest copy.
func (c *Controller) Reconcile(attendees []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.event.Attendees = attendees
	c.reconcileLocked()
}

func (c *Controller) reconcileLocked() {
	c.hasAttended = false
	if v := c.viewer(); v != nil {
		for _, username := range c.event.Attendees {
			if username == v.Username {
				c.hasAttended = true
				break
			}
		}
	}

	switch {
	case c.hasAttended && c.state != StateSubmitting:
		c.state = StateAttended
	case !c.hasAttended && c.state == StateAttended:
		c.state = StateIdle
	}
}

// Status classifies the current time against the event's window.
func (c *Controller) Status() WindowStatus {
	return Classify(c.opts.Now(), c.event.StartingAt, c.event.EndingAt)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) HasAttended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasAttended
}

// Password returns the password currently held by the dialog.
func (c *Controller) Password() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.password
}

// LastError returns the failure of the most recent submission, if it failed.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Button computes the action's label and enabled state for the current time.
func (c *Controller) Button() Button {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttonLocked(c.viewer() != nil)
}

func (c *Controller) buttonLocked(signedIn bool) Button {
	now := c.opts.Now()
	status := Classify(now, c.event.StartingAt, c.event.EndingAt)

	b := Button{Variant: "outline"}
	if c.hasAttended || status == WindowOpen {
		b.Variant = "default"
	}
	b.Disabled = c.hasAttended || !c.event.OpenForAttendance || (status != WindowOpen && signedIn)

	switch {
	case c.hasAttended:
		b.Label, b.Icon = "Attendance Marked", "check-circle"
	case !c.event.OpenForAttendance:
		b.Label, b.Icon = "Attendance Not Available", "calendar"
	case status == WindowNotStarted:
		b.Label = "Attendance Opens " + FormatCountdown(WindowStart(c.event.StartingAt), now)
		b.Icon = "clock"
	case status == WindowOpen && signedIn:
		b.Label, b.Icon = "Mark Attendance", "calendar"
	case status == WindowOpen:
		b.Label, b.Icon = "Login to Mark Attendance", "calendar"
	default:
		b.Label, b.Icon = "Attendance Window Closed", "clock"
	}
	return b
}

// Click handles the viewer pressing the attendance action. Anonymous viewers
// are redirected to the login page; signed-in viewers get the password dialog
// when the window is open. A disabled action does nothing.
func (c *Controller) Click(currentPath string) {
	c.mu.Lock()
	v := c.viewer()
	if c.state == StateSubmitting || c.buttonLocked(v != nil).Disabled {
		c.mu.Unlock()
		return
	}
	if v == nil {
		c.mu.Unlock()
		if c.opts.Navigator != nil {
			c.opts.Navigator.Redirect(LoginPath(currentPath))
		}
		return
	}
	if Classify(c.opts.Now(), c.event.StartingAt, c.event.EndingAt) == WindowOpen {
		c.state = StateDialogOpen
	}
	c.mu.Unlock()
}

// Cancel closes the dialog unless a request is in flight.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDialogOpen {
		c.state = StateIdle
		c.lastErr = nil
	}
}

// Submit sends the event password to the backend. At most one request is in
// flight per controller. Validation failures return before any request is
// made; a failed request leaves the dialog open with the password kept.
func (c *Controller) Submit(ctx context.Context, password string) error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.password = password

	v := c.viewer()
	switch {
	case v == nil || v.Token == "":
		c.mu.Unlock()
		return ErrUnauthenticated
	case c.hasAttended:
		c.mu.Unlock()
		return ErrAlreadyAttended
	}

	trimmed := strings.TrimSpace(password)
	if trimmed == "" {
		c.mu.Unlock()
		return ErrEmptyPassword
	}
	if Classify(c.opts.Now(), c.event.StartingAt, c.event.EndingAt) != WindowOpen {
		c.mu.Unlock()
		return ErrWindowNotOpen
	}

	c.state = StateSubmitting
	c.lastErr = nil
	c.mu.Unlock()

	err := c.opts.Submitter.Attend(ctx, v.Token, c.event.ID, trimmed)

	c.mu.Lock()
	if err != nil {
		c.state = StateDialogOpen
		c.lastErr = &SubmitError{Message: FailureMessage(err), Err: err}
		failure := c.lastErr
		c.mu.Unlock()
		return failure
	}
	c.state = StateAttended
	c.hasAttended = true
	c.password = ""
	refresh := c.opts.Refresh
	c.mu.Unlock()

	if refresh != nil {
		refresh()
	}
	return nil
}
