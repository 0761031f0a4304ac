package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// DeviceName identifies this front-end to the backend's token issuer.
const DeviceName = "web"

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	body := map[string]string{
		"identifier":  identifier,
		"password":    password,
		"device_name": DeviceName,
	}
	var resp LoginResponse
	if err := c.sendJSON(ctx, "auth.login", http.MethodPost, c.URL("/api/auth/login", nil), "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.sendJSON(ctx, "auth.logout", http.MethodPost, c.URL("/api/auth/logout", nil), token, nil, nil)
}

// GetProfile returns the token holder's profile. Profiles are never cached.
func (c *Client) GetProfile(ctx context.Context, token string) (*User, error) {
	var resp struct {
		Data User `json:"data"`
	}
	if err := c.sendJSON(ctx, "profile.show", http.MethodGet, c.URL("/api/profile", nil), token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateProfile applies update and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	var resp struct {
		Data User `json:"data"`
	}
	if err := c.sendJSON(ctx, "profile.update", http.MethodPut, c.URL("/api/profile", nil), token, update, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UploadProfilePicture uploads an image and returns its public URL.
func (c *Client) UploadProfilePicture(ctx context.Context, token, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("profile_picture", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to copy picture: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	raw, err := c.send(ctx, request{
		endpoint:    "profile.picture",
		method:      http.MethodPost,
		url:         c.URL("/api/profile/picture", nil),
		token:       token,
		body:        &buf,
		contentType: form.FormDataContentType(),
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Message string `json:"message"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal profile.picture response: %w", err)
	}
	return resp.Data.URL, nil
}
