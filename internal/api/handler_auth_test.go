package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)

	p := b.get("/login?redirect=%2Fevents")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, `name="redirect" value="/events"`)

	t.Run("form validation", func(t *testing.T) {
		p := b.post("/login", url.Values{"identifier": {"al"}, "password": {"123"}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "Enter email or username")
		assert.Contains(t, p.Body, "Password is too short")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		p := b.post("/login", url.Values{"identifier": {"alice"}, "password": {"wrong-password"}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "The provided credentials are incorrect.")
		assert.Contains(t, p.Body, `value="alice"`)
	})

	t.Run("offsite redirect falls back to the profile", func(t *testing.T) {
		p := b.login("https://evil.example/")
		assert.Equal(t, http.StatusSeeOther, p.Status)
		assert.Equal(t, "/profile/edit", p.Location)
	})

	t.Run("signed-in viewers skip the login page", func(t *testing.T) {
		p := b.get("/login?redirect=%2Fevents%2F7")
		assert.Equal(t, http.StatusFound, p.Status)
		assert.Equal(t, "/events/7", p.Location)
	})

	p = b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, "/events", p.Location)

	p = b.get("/profile/edit")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login?redirect=%2Fprofile%2Fedit", p.Location)
}

func TestProfile(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("").Status)

	p := b.get("/profile/edit")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.Body, `value="Alice"`)
	assert.Contains(t, p.Body, `<option value="unspecified" selected>`)

	t.Run("local validation", func(t *testing.T) {
		p := b.post("/profile/edit", url.Values{"name": {"Al"}, "username": {"alice"}, "gender": {"unspecified"}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "Name must be at least 3 characters")
	})

	t.Run("backend field errors", func(t *testing.T) {
		p := b.post("/profile/edit", url.Values{"name": {"Alice"}, "username": {"taken"}, "gender": {"unspecified"}})
		assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
		assert.Contains(t, p.Body, "The username has already been taken.")
	})

	p = b.post("/profile/edit", url.Values{
		"name":     {"Alice Rahman"},
		"username": {"alice"},
		"gender":   {"female"},
		"phone":    {""},
	})
	require.Equal(t, http.StatusSeeOther, p.Status)
	assert.Equal(t, "/profile/edit", p.Location)

	sent := app.backend.updated()
	assert.Equal(t, "Alice Rahman", sent["name"])
	assert.Equal(t, "female", sent["gender"])
	assert.Contains(t, sent, "phone")
	assert.Nil(t, sent["phone"])

	p = b.get("/profile/edit")
	assert.Contains(t, p.Body, "Profile updated successfully")
	assert.Contains(t, p.Body, "Alice Rahman")
}

func TestProfilePicture(t *testing.T) {
	start, end := openWindow()
	app := newTestApp(t, start, end)
	b := app.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("").Status)

	upload := func(filename string, content []byte) page {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		part, err := form.CreateFormFile("profile_picture", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req, err := http.NewRequest(http.MethodPost, b.base+"/profile/picture", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", form.FormDataContentType())
		return b.do(req)
	}

	p := upload("notes.txt", []byte("just some text"))
	assert.Equal(t, http.StatusSeeOther, p.Status)
	assert.Contains(t, b.get("/profile/edit").Body, "Only image files can be uploaded")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	p = upload("me.png", png)
	assert.Equal(t, http.StatusSeeOther, p.Status)
	body := b.get("/profile/edit").Body
	assert.Contains(t, body, "Profile picture updated successfully")
}

func TestProfile_RequiresSignIn(t *testing.T) {
	app := newTestApp(t, time.Now(), time.Now().Add(time.Hour))
	b := app.browser(t)

	p := b.post("/profile/picture", nil)
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login?redirect=%2Fprofile%2Fpicture", p.Location)
}
