package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"diuacm-web/internal/attendance"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/metrics"
	"diuacm-web/internal/parse"
	"diuacm-web/internal/session"
)

const attendanceSuccessMessage = "Attendance marked successfully!"

// eventCard is one row of the events list.
type eventCard struct {
	backend.EventListItem
	Phase    string
	StartsIn string
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(c *gin.Context) {
	q := backend.EventQuery{
		Search:             strings.TrimSpace(c.Query("search")),
		Type:               c.Query("type"),
		ParticipationScope: c.Query("participation_scope"),
	}
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		q.Page = p
	}

	page, err := h.backend.ListEvents(c.Request.Context(), q)
	if err != nil {
		log.Printf("Error listing events: %v", err)
		h.errorPage(c, http.StatusBadGateway, "Events could not be loaded. Please try again.")
		return
	}

	now := h.now()
	cards := make([]eventCard, 0, len(page.Data))
	for _, ev := range page.Data {
		card := eventCard{EventListItem: ev}
		switch {
		case now.Before(ev.StartingAt):
			card.Phase = "Upcoming"
			card.StartsIn = startsIn(ev.StartingAt, now)
		case now.After(ev.EndingAt):
			card.Phase = "Ended"
		default:
			card.Phase = "Happening Now"
		}
		cards = append(cards, card)
	}

	h.render(c, http.StatusOK, "events.html", gin.H{
		"Title":    "Events",
		"Events":   cards,
		"Meta":     page.Meta,
		"Query":    q,
		"PrevPage": pageLink(c, page.Meta.CurrentPage-1, page.Meta.LastPage),
		"NextPage": pageLink(c, page.Meta.CurrentPage+1, page.Meta.LastPage),
	})
}

// pageLink keeps the current filters and swaps the page number.
func pageLink(c *gin.Context, page, last int) string {
	if page < 1 || page > last {
		return ""
	}
	values := c.Request.URL.Query()
	values.Set("page", strconv.Itoa(page))
	return "/events?" + values.Encode()
}

// loadEvent resolves :id and fetches the event, writing the error page itself
// when that fails.
func (h *Handler) loadEvent(c *gin.Context) (*backend.EventDetail, bool) {
	id, err := parse.EventID(c.Param("id"))
	if err != nil {
		h.errorPage(c, http.StatusNotFound, "Event not found.")
		return nil, false
	}
	ev, err := h.backend.GetEvent(c.Request.Context(), id)
	if errors.Is(err, backend.ErrNotFound) {
		h.errorPage(c, http.StatusNotFound, "Event not found.")
		return nil, false
	}
	if err != nil {
		log.Printf("Error fetching event %d: %v", id, err)
		h.errorPage(c, http.StatusBadGateway, "The event could not be loaded. Please try again.")
		return nil, false
	}
	return ev, true
}

func eventPath(id int64) string {
	return fmt.Sprintf("/events/%d", id)
}

// controller wires an attendance controller to this request.
func (h *Handler) controller(c *gin.Context, ev *backend.EventDetail) *attendance.Controller {
	var ctl *attendance.Controller
	ctl = attendance.NewController(attendance.Event{
		ID:                ev.ID,
		Title:             ev.Title,
		StartingAt:        ev.StartingAt,
		EndingAt:          ev.EndingAt,
		OpenForAttendance: ev.OpenForAttendance,
		Link:              ev.EventLink,
		Attendees:         ev.AttendeeUsernames(),
	}, attendance.Options{
		Sessions: session.Current(c),
		Navigator: attendance.NavigatorFunc(func(path string) {
			c.Redirect(http.StatusFound, path)
		}),
		Submitter: h.backend,
		Refresh:   func() { h.refreshEvent(c.Request.Context(), ctl, ev.ID) },
		Now:       h.now,
	})
	return ctl
}

// refreshEvent reloads the event after an attendance was recorded, drops its
// cached pages and reconciles the controller with the server's attendee list.
func (h *Handler) refreshEvent(ctx context.Context, ctl *attendance.Controller, id int64) {
	fresh, err := h.backend.RefreshEvent(ctx, id)
	if h.pages != nil {
		h.pages.Purge(eventPath(id))
	}
	if err != nil {
		log.Printf("Error reloading event %d after attendance: %v", id, err)
		return
	}
	ctl.Reconcile(fresh.AttendeeUsernames())
}

// attendanceView is the render model of the attendance action and dialog.
type attendanceView struct {
	Button     attendance.Button
	Status     string
	Attended   bool
	DialogOpen bool
	Password   string
	Error      string
	Action     string
	OpensAt    time.Time
	ClosesAt   time.Time
}

func (h *Handler) renderEvent(c *gin.Context, status int, ev *backend.EventDetail, ctl *attendance.Controller, errMsg string) {
	var submitErr *attendance.SubmitError
	if errMsg == "" && errors.As(ctl.LastError(), &submitErr) {
		errMsg = submitErr.Message
	}
	view := attendanceView{
		Button:     ctl.Button(),
		Status:     string(ctl.Status()),
		Attended:   ctl.HasAttended(),
		DialogOpen: ctl.State() == attendance.StateDialogOpen,
		Password:   ctl.Password(),
		Error:      errMsg,
		Action:     eventPath(ev.ID) + "/attend",
		OpensAt:    attendance.WindowStart(ev.StartingAt),
		ClosesAt:   attendance.WindowEnd(ev.EndingAt),
	}
	h.render(c, status, "event.html", gin.H{
		"Title":      ev.Title,
		"Event":      ev,
		"Attendance": view,
	})
}

// ShowEvent handles GET /events/:id.
func (h *Handler) ShowEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	h.renderEvent(c, http.StatusOK, ev, h.controller(c, ev), "")
}

// OpenAttendance handles GET /events/:id/attend, the press of the attendance
// button. Anonymous viewers go to the login page; signed-in viewers get the
// password dialog while the window is open and the event page otherwise.
func (h *Handler) OpenAttendance(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	ctl := h.controller(c, ev)
	ctl.Click(eventPath(ev.ID))
	if c.Writer.Written() {
		return
	}
	if ctl.State() != attendance.StateDialogOpen {
		c.Redirect(http.StatusFound, eventPath(ev.ID))
		return
	}
	h.renderEvent(c, http.StatusOK, ev, ctl, "")
}

type attendForm struct {
	Password string `form:"password"`
	Intent   string `form:"intent"`
}

// Attend handles POST /events/:id/attend.
func (h *Handler) Attend(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	if session.Current(c) == nil {
		metrics.AttendanceSubmissions.WithLabelValues("unauthenticated").Inc()
		c.Redirect(http.StatusSeeOther, attendance.LoginPath(eventPath(ev.ID)))
		return
	}

	var form attendForm
	if err := c.ShouldBind(&form); err != nil {
		h.errorPage(c, http.StatusBadRequest, "Invalid request.")
		return
	}

	ctl := h.controller(c, ev)
	// The form is only reachable through the dialog.
	ctl.Click(eventPath(ev.ID))
	if form.Intent == "cancel" {
		ctl.Cancel()
		c.Redirect(http.StatusSeeOther, eventPath(ev.ID))
		return
	}
	err := ctl.Submit(c.Request.Context(), form.Password)

	var submitErr *attendance.SubmitError
	switch {
	case err == nil:
		metrics.AttendanceSubmissions.WithLabelValues("success").Inc()
		session.AddFlash(c, "success", attendanceSuccessMessage)
		c.Redirect(http.StatusSeeOther, eventPath(ev.ID))
	case errors.Is(err, attendance.ErrAlreadyAttended):
		metrics.AttendanceSubmissions.WithLabelValues("duplicate").Inc()
		c.Redirect(http.StatusSeeOther, eventPath(ev.ID))
	case errors.Is(err, attendance.ErrEmptyPassword):
		metrics.AttendanceSubmissions.WithLabelValues("invalid").Inc()
		h.renderEvent(c, http.StatusUnprocessableEntity, ev, ctl, "Please enter the event password")
	case errors.Is(err, attendance.ErrWindowNotOpen):
		metrics.AttendanceSubmissions.WithLabelValues("closed").Inc()
		session.AddFlash(c, "error", ctl.Button().Label)
		c.Redirect(http.StatusSeeOther, eventPath(ev.ID))
	case errors.As(err, &submitErr):
		metrics.AttendanceSubmissions.WithLabelValues("rejected").Inc()
		log.Printf("Attendance for event %d rejected: %v", ev.ID, submitErr.Err)
		h.renderEvent(c, http.StatusUnprocessableEntity, ev, ctl, "")
	default:
		metrics.AttendanceSubmissions.WithLabelValues("error").Inc()
		log.Printf("Attendance for event %d failed: %v", ev.ID, err)
		h.renderEvent(c, http.StatusUnprocessableEntity, ev, ctl, attendance.DefaultFailureMessage)
	}
}
