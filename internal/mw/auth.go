package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"diuacm-web/internal/attendance"
	"diuacm-web/internal/parse"
	"diuacm-web/internal/session"
)

// DefaultAfterLogin is where a sign-in lands without a redirect parameter.
const DefaultAfterLogin = "/profile/edit"

// Auth guards the protected pages and keeps signed-in viewers off the login
// page. It must run after the session middleware.
func Auth(protected ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		signedIn := session.Current(c) != nil

		if path == "/login" && signedIn && c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusFound, parse.RedirectTarget(c.Query("redirect"), DefaultAfterLogin))
			c.Abort()
			return
		}

		if !signedIn && isProtected(path, protected) {
			c.Redirect(http.StatusFound, attendance.LoginPath(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

func isProtected(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
