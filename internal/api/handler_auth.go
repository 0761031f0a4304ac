package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"diuacm-web/internal/backend"
	"diuacm-web/internal/mw"
	"diuacm-web/internal/parse"
	"diuacm-web/internal/session"
)

type loginForm struct {
	Identifier string `form:"identifier" binding:"required,min=3"`
	Password   string `form:"password" binding:"required,min=6"`
	Redirect   string `form:"redirect"`
}

var loginMessages = map[string]string{
	"Identifier": "Enter email or username",
	"Password":   "Password is too short",
}

// fieldErrors turns binding failures into one message per form field.
func fieldErrors(err error, messages map[string]string, names map[string]string) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_form"] = "Invalid request."
		return out
	}
	for _, fe := range verrs {
		key := names[fe.Field()]
		if key == "" {
			key = fe.Field()
		}
		if _, seen := out[key]; seen {
			continue
		}
		if msg, ok := messages[fe.Field()]; ok {
			out[key] = msg
		} else {
			out[key] = "Invalid value"
		}
	}
	return out
}

// LoginPage handles GET /login.
func (h *Handler) LoginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title":    "Sign in",
		"Redirect": c.Query("redirect"),
		"Form":     loginForm{},
	})
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusUnprocessableEntity, "login.html", gin.H{
			"Title":    "Sign in",
			"Redirect": form.Redirect,
			"Form":     form,
			"Errors":   fieldErrors(err, loginMessages, map[string]string{"Identifier": "identifier", "Password": "password"}),
		})
		return
	}

	resp, err := h.backend.Login(c.Request.Context(), form.Identifier, form.Password)
	if err != nil {
		msg := "Login failed"
		var herr *backend.HTTPError
		if errors.As(err, &herr) {
			if m := herr.FieldError("identifier"); m != "" {
				msg = m
			} else if herr.Message != "" {
				msg = herr.Message
			}
		} else {
			log.Printf("Error signing in: %v", err)
		}
		h.render(c, http.StatusUnprocessableEntity, "login.html", gin.H{
			"Title":    "Sign in",
			"Redirect": form.Redirect,
			"Form":     loginForm{Identifier: form.Identifier},
			"Error":    msg,
		})
		return
	}

	if _, err := h.sessions.Login(c, resp); err != nil {
		log.Printf("Error creating session: %v", err)
		h.errorPage(c, http.StatusInternalServerError, "Could not sign you in. Please try again.")
		return
	}
	session.AddFlash(c, "success", "Signed in successfully")
	c.Redirect(http.StatusSeeOther, parse.RedirectTarget(form.Redirect, mw.DefaultAfterLogin))
}

// Logout handles POST /logout.
func (h *Handler) Logout(c *gin.Context) {
	if sess := session.Current(c); sess != nil {
		if err := h.backend.Logout(c.Request.Context(), sess.Token); err != nil {
			log.Printf("Error revoking backend token: %v", err)
		}
	}
	if err := h.sessions.Logout(c); err != nil {
		log.Printf("Error ending session: %v", err)
	}
	session.AddFlash(c, "success", "Signed out")
	c.Redirect(http.StatusSeeOther, "/events")
}
