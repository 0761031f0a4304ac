package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"diuacm-web/config"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/db"
	"diuacm-web/internal/session"
	"diuacm-web/internal/store"
)

const (
	testEventID       = 7
	testEventPassword = "secret"
	testUserPassword  = "secret1"
)

// fakeBackend is an in-memory stand-in for the REST backend.
type fakeBackend struct {
	mu          sync.Mutex
	start, end  time.Time
	attendees   []string
	eventReads  int
	attendPosts int
	profile     map[string]any
	lastUpdate  map[string]any
}

func newFakeBackend(start, end time.Time) *fakeBackend {
	return &fakeBackend{
		start:   start,
		end:     end,
		profile: map[string]any{"id": 1, "name": "Alice", "email": "a@x.io", "username": "alice"},
	}
}

func (f *fakeBackend) posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attendPosts
}

func (f *fakeBackend) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventReads
}

func (f *fakeBackend) updated() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUpdate
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"id": testEventID, "title": "Weekly Contest", "event_type": "contest",
				"participation_scope": "open_for_all",
				"starting_at": f.start, "ending_at": f.end,
				"attendance_count": len(f.attendees),
			}},
			"links": map[string]any{},
			"meta":  map[string]any{"current_page": 1, "last_page": 1, "per_page": 10, "total": 1},
		})
	})
	mux.HandleFunc(fmt.Sprintf("/api/events/%d", testEventID), func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.eventReads++
		attendees := make([]map[string]any, 0, len(f.attendees))
		for _, u := range f.attendees {
			attendees = append(attendees, map[string]any{"name": u, "username": u, "attendance_time": f.start})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": testEventID, "title": "Weekly Contest", "type": "contest", "status": "published",
			"description":         "**Bring** a laptop <script>alert(1)</script>",
			"participation_scope": "open_for_all",
			"starting_at":         f.start, "ending_at": f.end,
			"open_for_attendance": true,
			"attendees":           attendees,
		}})
	})
	mux.HandleFunc(fmt.Sprintf("/api/events/%d/attend", testEventID), func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.attendPosts++
		if r.Header.Get("Authorization") != "Bearer tok-alice" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message":"Unauthenticated."}`)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["event_password"] != testEventPassword {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"message":"Invalid event password"}`)
			return
		}
		f.attendees = append(f.attendees, "alice")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"Attendance recorded"}`)
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != testUserPassword {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"message":"The given data was invalid.","errors":{"identifier":["The provided credentials are incorrect."]}}`)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"token": "tok-alice", "token_type": "Bearer", "user": f.profile})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"Logged out"}`)
	})
	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPut {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			f.lastUpdate = body
			if body["username"] == "taken" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				io.WriteString(w, `{"message":"The username has already been taken.","errors":{"username":["The username has already been taken."]}}`)
				return
			}
			f.profile["name"] = body["name"]
			f.profile["username"] = body["username"]
		}
		json.NewEncoder(w).Encode(map[string]any{"data": f.profile})
	})
	mux.HandleFunc("/api/profile/picture", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"Uploaded","data":{"url":"https://cdn.example.org/alice.png"}}`)
	})
	return mux
}

type testApp struct {
	server  *httptest.Server
	backend *fakeBackend
	store   store.Store
}

func newTestApp(t *testing.T, start, end time.Time) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fb := newFakeBackend(start, end)
	upstream := httptest.NewServer(fb.handler(t))
	t.Cleanup(upstream.Close)

	client, err := backend.NewClient(&config.BackendConfig{
		BaseURL:    upstream.URL,
		Timeout:    5 * time.Second,
		Revalidate: time.Minute,
	})
	require.NoError(t, err)

	gormDB, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	st := store.NewGormStore(gormDB)

	sessions := session.NewManager(st, &config.SessionConfig{
		Secret:     "test-secret",
		CookieName: "test_session",
		MaxAge:     time.Hour,
	})

	router, err := NewRouter(&config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 60,
		Timezone:        "UTC",
	}, st, client, sessions, nil)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, backend: fb, store: st}
}

// browser is an HTTP client with a cookie jar that does not follow redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: a.server.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	Status   int
	Location string
	Header   http.Header
	Body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Header: resp.Header, Body: string(body)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(redirect string) page {
	b.t.Helper()
	return b.post("/login", url.Values{
		"identifier": {"alice"},
		"password":   {testUserPassword},
		"redirect":   {redirect},
	})
}
