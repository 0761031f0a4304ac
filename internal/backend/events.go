package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// EventTag is the cache tag of a single event's detail read.
func EventTag(id int64) string {
	return fmt.Sprintf("events:id:%d", id)
}

// ListEvents fetches one page of events.
func (c *Client) ListEvents(ctx context.Context, q EventQuery) (*Page[EventListItem], error) {
	params := map[string]string{
		"search":              q.Search,
		"type":                q.Type,
		"participation_scope": q.ParticipationScope,
	}
	tags := []string{"events"}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
		tags = append(tags, fmt.Sprintf("events:page:%d", q.Page))
	}
	if q.Type != "" {
		tags = append(tags, "events:type:"+q.Type)
	}
	if q.ParticipationScope != "" {
		tags = append(tags, "events:scope:"+q.ParticipationScope)
	}
	if q.Search != "" {
		tags = append(tags, "events:search:"+q.Search)
	}

	var page Page[EventListItem]
	if err := c.getJSON(ctx, "events.list", c.URL("/api/events", params), tags, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetEvent fetches an event with its attendee list.
func (c *Client) GetEvent(ctx context.Context, id int64) (*EventDetail, error) {
	var resp struct {
		Data EventDetail `json:"data"`
	}
	u := c.URL(fmt.Sprintf("/api/events/%d", id), nil)
	if err := c.getJSON(ctx, "events.show", u, []string{"events", EventTag(id)}, &resp); err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp.Data, nil
}

// RefreshEvent drops any cached copy of the event and fetches it again.
func (c *Client) RefreshEvent(ctx context.Context, id int64) (*EventDetail, error) {
	c.Revalidate(EventTag(id))
	return c.GetEvent(ctx, id)
}

// Attend asks the backend to record the token holder's attendance.
func (c *Client) Attend(ctx context.Context, token string, eventID int64, password string) error {
	body := map[string]string{"event_password": password}
	u := c.URL(fmt.Sprintf("/api/events/%d/attend", eventID), nil)
	return c.sendJSON(ctx, "events.attend", http.MethodPost, u, token, body, nil)
}
