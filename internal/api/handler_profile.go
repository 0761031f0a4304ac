package api

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"diuacm-web/internal/attendance"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/session"
)

const maxPictureBytes = 5 << 20

type profileForm struct {
	Name             string `form:"name" binding:"required,min=3,max=255"`
	Username         string `form:"username" binding:"required,min=3,max=255"`
	Gender           string `form:"gender" binding:"omitempty,oneof=unspecified male female other"`
	Phone            string `form:"phone" binding:"max=50"`
	CodeforcesHandle string `form:"codeforces_handle" binding:"max=255"`
	AtcoderHandle    string `form:"atcoder_handle" binding:"max=255"`
	VjudgeHandle     string `form:"vjudge_handle" binding:"max=255"`
	Department       string `form:"department" binding:"max=255"`
	StudentID        string `form:"student_id" binding:"max=255"`
}

var profileFields = map[string]string{
	"Name":             "name",
	"Username":         "username",
	"Gender":           "gender",
	"Phone":            "phone",
	"CodeforcesHandle": "codeforces_handle",
	"AtcoderHandle":    "atcoder_handle",
	"VjudgeHandle":     "vjudge_handle",
	"Department":       "department",
	"StudentID":        "student_id",
}

var profileMessages = map[string]string{
	"Name":     "Name must be at least 3 characters",
	"Username": "Username must be at least 3 characters",
}

func formFromUser(u *backend.User) profileForm {
	gender := deref(u.Gender)
	if gender == "" {
		gender = "unspecified"
	}
	return profileForm{
		Name:             u.Name,
		Username:         u.Username,
		Gender:           gender,
		Phone:            deref(u.Phone),
		CodeforcesHandle: deref(u.CodeforcesHandle),
		AtcoderHandle:    deref(u.AtcoderHandle),
		VjudgeHandle:     deref(u.VjudgeHandle),
		Department:       deref(u.Department),
		StudentID:        deref(u.StudentID),
	}
}

// nullable maps an empty form value to null.
func nullable(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func (f profileForm) update() backend.ProfileUpdate {
	name, username := f.Name, f.Username
	gender := f.Gender
	if gender == "unspecified" {
		gender = ""
	}
	return backend.ProfileUpdate{
		Name:             &name,
		Username:         &username,
		Gender:           nullable(gender),
		Phone:            nullable(f.Phone),
		CodeforcesHandle: nullable(f.CodeforcesHandle),
		AtcoderHandle:    nullable(f.AtcoderHandle),
		VjudgeHandle:     nullable(f.VjudgeHandle),
		Department:       nullable(f.Department),
		StudentID:        nullable(f.StudentID),
	}
}

// expired handles a token the backend no longer accepts by ending the session.
func (h *Handler) expired(c *gin.Context, err error) bool {
	var herr *backend.HTTPError
	if !errors.As(err, &herr) || herr.Status != http.StatusUnauthorized {
		return false
	}
	if err := h.sessions.Logout(c); err != nil {
		log.Printf("Error ending expired session: %v", err)
	}
	c.Redirect(http.StatusSeeOther, attendance.LoginPath("/profile/edit"))
	return true
}

func (h *Handler) renderProfile(c *gin.Context, status int, user *backend.User, form profileForm, errs map[string]string) {
	h.render(c, status, "profile.html", gin.H{
		"Title":   "Edit profile",
		"User":    user,
		"Form":    form,
		"Errors":  errs,
		"Genders": []string{"unspecified", "male", "female", "other"},
	})
}

// EditProfile handles GET /profile/edit.
func (h *Handler) EditProfile(c *gin.Context) {
	sess := session.Current(c)
	user, err := h.backend.GetProfile(c.Request.Context(), sess.Token)
	if err != nil {
		if h.expired(c, err) {
			return
		}
		log.Printf("Error loading profile: %v", err)
		h.errorPage(c, http.StatusBadGateway, "Failed to load profile")
		return
	}
	if err := h.sessions.UpdateUser(c, *user); err != nil {
		log.Printf("Error refreshing session user: %v", err)
	}
	h.renderProfile(c, http.StatusOK, user, formFromUser(user), nil)
}

// UpdateProfile handles POST /profile/edit.
func (h *Handler) UpdateProfile(c *gin.Context) {
	sess := session.Current(c)
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderProfile(c, http.StatusUnprocessableEntity, &sess.User, form, fieldErrors(err, profileMessages, profileFields))
		return
	}

	user, err := h.backend.UpdateProfile(c.Request.Context(), sess.Token, form.update())
	if err != nil {
		if h.expired(c, err) {
			return
		}
		errs := map[string]string{}
		var herr *backend.HTTPError
		if errors.As(err, &herr) {
			for _, key := range profileFields {
				if msg := herr.FieldError(key); msg != "" {
					errs[key] = msg
				}
			}
			if len(errs) == 0 {
				errs["_form"] = herr.Text()
			}
		} else {
			log.Printf("Error updating profile: %v", err)
			errs["_form"] = "Failed to update profile"
		}
		h.renderProfile(c, http.StatusUnprocessableEntity, &sess.User, form, errs)
		return
	}

	if err := h.sessions.UpdateUser(c, *user); err != nil {
		log.Printf("Error refreshing session user: %v", err)
	}
	session.AddFlash(c, "success", "Profile updated successfully")
	c.Redirect(http.StatusSeeOther, "/profile/edit")
}

// UploadPicture handles POST /profile/picture.
func (h *Handler) UploadPicture(c *gin.Context) {
	sess := session.Current(c)
	fail := func(msg string) {
		session.AddFlash(c, "error", msg)
		c.Redirect(http.StatusSeeOther, "/profile/edit")
	}

	header, err := c.FormFile("profile_picture")
	if err != nil {
		fail("Please choose an image to upload")
		return
	}
	if header.Size > maxPictureBytes {
		fail("Image must be 5 MB or smaller")
		return
	}
	f, err := header.Open()
	if err != nil {
		fail("Failed to upload image")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPictureBytes+1))
	if err != nil || len(data) > maxPictureBytes {
		fail("Failed to upload image")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		fail("Only image files can be uploaded")
		return
	}

	url, err := h.backend.UploadProfilePicture(c.Request.Context(), sess.Token, header.Filename, bytes.NewReader(data))
	if err != nil {
		if h.expired(c, err) {
			return
		}
		msg := "Failed to upload image"
		var herr *backend.HTTPError
		if errors.As(err, &herr) {
			if m := herr.FieldError("profile_picture"); m != "" {
				msg = m
			} else if herr.Message != "" {
				msg = herr.Message
			}
		} else {
			log.Printf("Error uploading profile picture: %v", err)
		}
		fail(msg)
		return
	}

	user := sess.User
	user.ProfilePicture = &url
	if err := h.sessions.UpdateUser(c, user); err != nil {
		log.Printf("Error refreshing session user: %v", err)
	}
	session.AddFlash(c, "success", "Profile picture updated successfully")
	c.Redirect(http.StatusSeeOther, "/profile/edit")
}
