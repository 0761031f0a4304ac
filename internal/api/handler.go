package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"diuacm-web/internal/backend"
	"diuacm-web/internal/mw"
	"diuacm-web/internal/session"
	"diuacm-web/internal/store"
)

// Backend is the part of the REST backend the pages use.
type Backend interface {
	ListEvents(ctx context.Context, q backend.EventQuery) (*backend.Page[backend.EventListItem], error)
	GetEvent(ctx context.Context, id int64) (*backend.EventDetail, error)
	RefreshEvent(ctx context.Context, id int64) (*backend.EventDetail, error)
	Attend(ctx context.Context, token string, eventID int64, password string) error

	Login(ctx context.Context, identifier, password string) (*backend.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	GetProfile(ctx context.Context, token string) (*backend.User, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (*backend.User, error)
	UploadProfilePicture(ctx context.Context, token, filename string, r io.Reader) (string, error)
}

// Handler holds shared dependencies for the page and API handlers.
type Handler struct {
	store    store.Store
	backend  Backend
	sessions *session.Manager
	pages    *mw.PageCache
	webpush  *webpush.Options
	now      func() time.Time
}

// NewHandler creates a new handler. pages may be nil when page caching is off.
func NewHandler(s store.Store, be Backend, sessions *session.Manager, pages *mw.PageCache, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		backend:  be,
		sessions: sessions,
		pages:    pages,
		webpush:  webpushOptions,
		now:      time.Now,
	}
}

// render writes an HTML page with the data every layout needs.
func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Viewer"] = session.Current(c)
	data["Flashes"] = session.Flashes(c)
	data["Path"] = c.Request.URL.RequestURI()
	c.HTML(status, name, data)
}

func (h *Handler) errorPage(c *gin.Context, status int, message string) {
	h.render(c, status, "error.html", gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
