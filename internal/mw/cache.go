package mw

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// entry is one rendered page.
type entry struct {
	status int
	header http.Header
	body   []byte
}

// recorder tees the response body into buf while it is written.
type recorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

func (e entry) replay(c *gin.Context) {
	for k, v := range e.header {
		c.Writer.Header()[k] = v
	}
	c.Writer.Header().Set("X-Cache", "HIT")
	c.Writer.WriteHeader(e.status)
	c.Writer.Write(e.body)
}

// PageCache keeps rendered GET pages in memory for anonymous viewers.
type PageCache struct {
	store *cache.Cache
	ttl   time.Duration
	skip  func(*gin.Context) bool

	mu  sync.Mutex
	seq uint64
	// purged maps each purged path to the seq of its latest purge.
	purged map[string]uint64
}

// NewPageCache creates a page cache. Requests for which skip returns true are
// neither served from nor stored in the cache.
func NewPageCache(ttl time.Duration, skip func(*gin.Context) bool) *PageCache {
	return &PageCache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		skip:   skip,
		purged: make(map[string]uint64),
	}
}

func covers(path, key string) bool {
	return key == path || strings.HasPrefix(key, path+"?") || strings.HasPrefix(key, path+"/")
}

// Middleware serves cached pages and stores fresh 2xx responses.
func (p *PageCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.ttl <= 0 || c.Request.Method != http.MethodGet || (p.skip != nil && p.skip(c)) {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if v, found := p.store.Get(key); found {
			v.(entry).replay(c)
			c.Abort()
			return
		}

		p.mu.Lock()
		started := p.seq
		p.mu.Unlock()

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		// Responses that touch the cookie belong to one browser.
		if rec.Header().Get("Set-Cookie") != "" {
			return
		}
		header := rec.Header().Clone()
		header.Del("X-Cache")
		p.put(key, entry{status: status, header: header, body: rec.buf.Bytes()}, started)
	}
}

// put stores e unless key was purged after the request began at seq started.
func (p *PageCache) put(key string, e entry, started uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, at := range p.purged {
		if at > started && covers(path, key) {
			return
		}
	}
	p.store.Set(key, e, p.ttl)
}

// Purge drops the cached copies of path, including its query variants and
// sub-paths. It returns how many entries were removed.
func (p *PageCache) Purge(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.purged[path] = p.seq

	n := 0
	for key := range p.store.Items() {
		if covers(path, key) {
			p.store.Delete(key)
			n++
		}
	}
	return n
}
