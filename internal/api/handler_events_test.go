package api

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openWindow returns event times whose attendance window contains now.
func openWindow() (time.Time, time.Time) {
	start := time.Now().Add(10*time.Minute + 30*time.Second).UTC().Truncate(time.Second)
	return start, start.Add(2 * time.Hour)
}

func TestEvents_List(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)

	p := b.get("/")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/events", p.Location)

	p = b.get("/events?type=contest")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, "Weekly Contest")
	assert.Contains(t, p.Body, "Upcoming")
	assert.Contains(t, p.Body, "in 10 minutes")
	assert.Contains(t, p.Body, `<option value="contest" selected>`)
}

func TestEvents_DetailRendersSafeMarkdown(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)

	p := b.get("/events/7")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, "<strong>Bring</strong>")
	assert.NotContains(t, p.Body, "<script>alert(1)</script>")
	assert.Contains(t, p.Body, "Login to Mark Attendance")
	assert.Contains(t, p.Body, `data-window="open"`)

	assert.Equal(t, http.StatusNotFound, b.get("/events/8").Status)
	assert.Equal(t, http.StatusNotFound, b.get("/events/abc").Status)
}

func TestEvents_AnonymousClickRedirectsToLogin(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)

	p := b.get("/events/7/attend")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login?redirect=%2Fevents%2F7", p.Location)

	// Posting without a session is also sent to the login page.
	p = b.post("/events/7/attend", url.Values{"password": {testEventPassword}})
	assert.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, "/login?redirect=%2Fevents%2F7", p.Location)

	assert.Zero(t, app.backend.posts(), "no attendance request may reach the backend")
}

func TestEvents_MarkAttendance(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	alice := app.browser(t)
	visitor := app.browser(t)

	// An anonymous copy of the page lands in the page cache.
	require.Equal(t, http.StatusOK, visitor.get("/events/7").Status)
	p := visitor.get("/events/7")
	assert.Equal(t, "HIT", p.Header.Get("X-Cache"))
	assert.NotContains(t, p.Body, "<td>alice</td>")

	p = alice.login("/events/7")
	require.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, "/events/7", p.Location)

	p = alice.get("/events/7")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, "Signed in successfully")
	assert.Contains(t, p.Body, "Mark Attendance")
	assert.NotContains(t, p.Body, "<dialog open>")

	p = alice.get("/events/7/attend")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, "<dialog open>")

	t.Run("cancel closes the dialog without a request", func(t *testing.T) {
		p := alice.post("/events/7/attend", url.Values{"password": {"half-typed"}, "intent": {"cancel"}})
		assert.Equal(t, http.StatusSeeOther, p.Status)
		assert.Equal(t, "/events/7", p.Location)
		assert.Zero(t, app.backend.posts())

		p = alice.get("/events/7")
		assert.NotContains(t, p.Body, "<dialog open>")
		assert.Contains(t, p.Body, "Mark Attendance")
	})

	t.Run("empty password is refused locally", func(t *testing.T) {
		p := alice.post("/events/7/attend", url.Values{"password": {"   "}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "Please enter the event password")
		assert.Zero(t, app.backend.posts())
	})

	t.Run("wrong password keeps the dialog open", func(t *testing.T) {
		p := alice.post("/events/7/attend", url.Values{"password": {"wrong"}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "<dialog open>")
		assert.Contains(t, p.Body, "Invalid event password")
		assert.Contains(t, p.Body, `value="wrong"`)
		assert.Equal(t, 1, app.backend.posts())
	})

	readsBefore := app.backend.reads()

	p = alice.post("/events/7/attend", url.Values{"password": {" " + testEventPassword + " "}})
	require.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, "/events/7", p.Location)
	assert.Equal(t, 2, app.backend.posts())

	p = alice.get("/events/7")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, "Attendance marked successfully!")
	assert.Contains(t, p.Body, "Attendance Marked")
	assert.Contains(t, p.Body, "<td>alice</td>")
	assert.Contains(t, p.Body, "You have attended this event.")
	assert.Greater(t, app.backend.reads(), readsBefore, "the cached event was revalidated")

	// The anonymous copy was purged as well.
	p = visitor.get("/events/7")
	assert.Empty(t, p.Header.Get("X-Cache"))
	assert.Contains(t, p.Body, "<td>alice</td>")

	// A second press after attending does nothing.
	p = alice.get("/events/7/attend")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/events/7", p.Location)
	p = alice.post("/events/7/attend", url.Values{"password": {testEventPassword}})
	assert.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, 2, app.backend.posts())
}

func TestEvents_ClosedWindow(t *testing.T) {
	start := time.Now().Add(-3 * time.Hour).UTC()
	app := newTestApp(t, start, start.Add(time.Hour))
	b := app.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("/events/7").Status)

	p := b.get("/events/7")
	assert.Contains(t, p.Body, "Attendance Window Closed")
	assert.Contains(t, p.Body, "disabled")

	p = b.get("/events/7/attend")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/events/7", p.Location)

	p = b.post("/events/7/attend", url.Values{"password": {testEventPassword}})
	assert.Equal(t, http.StatusSeeOther, p.Status)
	assert.Zero(t, app.backend.posts())
}
