package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"diuacm-web/config"
	"diuacm-web/internal/attendance"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/model"
	"diuacm-web/internal/store"
)

const (
	sidKey     = "sid"
	contextKey = "diuacm.session"
)

// Session is a signed-in viewer.
type Session struct {
	ID        string
	Token     string
	User      backend.User
	ExpiresAt time.Time
}

// CurrentSession exposes the viewer to the attendance controller. It is safe
// to call on a nil *Session.
func (s *Session) CurrentSession() *attendance.Viewer {
	if s == nil {
		return nil
	}
	return &attendance.Viewer{Token: s.Token, Username: s.User.Username}
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

var flashKinds = []string{"success", "error"}

// Manager keeps viewer sessions in the database and their ids in a signed cookie.
type Manager struct {
	store   store.Store
	cfg     *config.SessionConfig
	cookies cookie.Store
	now     func() time.Time
}

// NewManager creates a session manager.
func NewManager(st store.Store, cfg *config.SessionConfig) *Manager {
	cookies := cookie.NewStore([]byte(cfg.Secret))
	cookies.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return &Manager{store: st, cfg: cfg, cookies: cookies, now: time.Now}
}

// Init removes sessions that expired while the server was down.
func (m *Manager) Init(ctx context.Context) error {
	n, err := m.store.PurgeExpiredSessions(ctx, m.now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Purged %d expired sessions.", n)
	}
	return nil
}

// Cookies installs the cookie session that carries the session id and flashes.
func (m *Manager) Cookies() gin.HandlerFunc {
	return sessions.Sessions(m.cfg.CookieName, m.cookies)
}

// Middleware loads the viewer's session. It must run after Cookies.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cs := sessions.Default(c)
		sid, _ := cs.Get(sidKey).(string)
		if sid == "" {
			c.Next()
			return
		}

		row, err := m.store.FindSession(c.Request.Context(), sid, m.now())
		switch {
		case errors.Is(err, store.ErrNotFound):
			cs.Delete(sidKey)
			if err := cs.Save(); err != nil {
				log.Printf("Error clearing stale session cookie: %v", err)
			}
		case err != nil:
			log.Printf("Error loading session: %v", err)
		default:
			sess, err := fromRow(row)
			if err != nil {
				log.Printf("Error decoding session %s: %v", sid, err)
				break
			}
			Attach(c, sess)
		}
		c.Next()
	}
}

func fromRow(row *model.Session) (*Session, error) {
	sess := &Session{ID: row.ID, Token: row.Token, ExpiresAt: row.ExpiresAt}
	if err := json.Unmarshal(row.User, &sess.User); err != nil {
		return nil, err
	}
	return sess, nil
}

// Current returns the request's session, or nil for anonymous viewers.
func Current(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	return nil
}

// Attach makes sess the request's session.
func Attach(c *gin.Context, sess *Session) {
	c.Set(contextKey, sess)
}

// Login persists a new session for the credentials the backend issued.
func (m *Manager) Login(c *gin.Context, resp *backend.LoginResponse) (*Session, error) {
	user, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	now := m.now()
	row := &model.Session{
		ID:        uuid.NewString(),
		Token:     resp.Token,
		Username:  resp.User.Username,
		User:      user,
		ExpiresAt: now.Add(m.cfg.MaxAge),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveSession(c.Request.Context(), row); err != nil {
		return nil, err
	}

	cs := sessions.Default(c)
	cs.Set(sidKey, row.ID)
	if err := cs.Save(); err != nil {
		return nil, fmt.Errorf("failed to write session cookie: %w", err)
	}

	sess := &Session{ID: row.ID, Token: row.Token, User: resp.User, ExpiresAt: row.ExpiresAt}
	Attach(c, sess)
	return sess, nil
}

// Logout forgets the current session. Viewers without one are left alone.
func (m *Manager) Logout(c *gin.Context) error {
	cs := sessions.Default(c)
	if sess := Current(c); sess != nil {
		if err := m.store.DeleteSession(c.Request.Context(), sess.ID); err != nil {
			return err
		}
	}
	cs.Delete(sidKey)
	Attach(c, nil)
	return cs.Save()
}

// UpdateUser replaces the profile snapshot kept with the current session.
func (m *Manager) UpdateUser(c *gin.Context, user backend.User) error {
	sess := Current(c)
	if sess == nil {
		return store.ErrNotFound
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.store.UpdateSessionUser(c.Request.Context(), sess.ID, user.Username, raw); err != nil {
		return err
	}
	sess.User = user
	return nil
}

// AddFlash queues a message for the next page the viewer sees.
func AddFlash(c *gin.Context, kind, message string) {
	cs := sessions.Default(c)
	cs.AddFlash(message, kind)
	if err := cs.Save(); err != nil {
		log.Printf("Error saving flash: %v", err)
	}
}

// Flashes drains the queued messages.
func Flashes(c *gin.Context) []Flash {
	cs := sessions.Default(c)
	var out []Flash
	for _, kind := range flashKinds {
		for _, v := range cs.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := cs.Save(); err != nil {
			log.Printf("Error saving session after reading flashes: %v", err)
		}
	}
	return out
}

// HasFlashes reports whether messages are waiting, without draining them.
func HasFlashes(c *gin.Context) bool {
	cs := sessions.Default(c)
	for _, kind := range flashKinds {
		if v, ok := cs.Get(kind).([]interface{}); ok && len(v) > 0 {
			return true
		}
	}
	return false
}
