package api

import (
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diuacm-web/config"
	"diuacm-web/internal/mw"
	"diuacm-web/internal/session"
	"diuacm-web/internal/store"
)

// NewRouter creates and configures the gin engine.
func NewRouter(cfg *config.ServerConfig, s store.Store, be Backend, sessions *session.Manager, webpushOptions *webpush.Options) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), mw.SecurityHeaders())
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	tmpl, err := NewTemplates(cfg.Location())
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	// Page cache: anonymous viewers only, and never while a flash is pending.
	var pages *mw.PageCache
	if cfg.CacheTTLSeconds > 0 {
		pages = mw.NewPageCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, func(c *gin.Context) bool {
			return session.Current(c) != nil || session.HasFlashes(c)
		})
	}
	handler := NewHandler(s, be, sessions, pages, webpushOptions)
	rateLimiter := mw.RateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)

	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	site := r.Group("/")
	site.Use(rateLimiter, sessions.Cookies(), sessions.Middleware(), mw.Auth("/profile"))
	if pages != nil {
		site.Use(pages.Middleware())
	}
	{
		site.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/events") })
		site.GET("/events", handler.ListEvents)
		site.GET("/events/:id", handler.ShowEvent)
		site.GET("/events/:id/attend", handler.OpenAttendance)
		site.POST("/events/:id/attend", handler.Attend)

		site.GET("/login", handler.LoginPage)
		site.POST("/login", handler.Login)
		site.POST("/logout", handler.Logout)

		site.GET("/profile/edit", handler.EditProfile)
		site.POST("/profile/edit", handler.UpdateProfile)
		site.POST("/profile/picture", handler.UploadPicture)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.NoRoute(sessions.Cookies(), sessions.Middleware(), func(c *gin.Context) {
		handler.errorPage(c, http.StatusNotFound, "Page not found.")
	})

	log.Printf("Routes registered (page cache ttl %ds)", cfg.CacheTTLSeconds)
	return r, nil
}
