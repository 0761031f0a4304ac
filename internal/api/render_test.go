package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateRange(t *testing.T) {
	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "Wed, Jan 10, 2024 • 10:00 AM - 12:30 PM",
		formatDateRange(start, start.Add(150*time.Minute)))
	assert.Equal(t, "Wed, Jan 10, 2024 10:00 AM - Thu, Jan 11, 2024 02:00 AM",
		formatDateRange(start, start.Add(16*time.Hour)))
}

func TestFormatDuration(t *testing.T) {
	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		length time.Duration
		want   string
	}{
		{2 * time.Hour, "2h"},
		{90 * time.Minute, "1h 30m"},
		{30 * time.Minute, "0h 30m"},
		{-time.Hour, "0h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(start, start.Add(tt.length)), tt.length.String())
	}
}

func TestStartsIn(t *testing.T) {
	now := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   time.Duration
		want string
	}{
		{50 * time.Hour, "in 2 days"},
		{25 * time.Hour, "in 1 day"},
		{3*time.Hour + 59*time.Minute, "in 3 hours"},
		{61 * time.Minute, "in 1 hour"},
		{10*time.Minute + 30*time.Second, "in 10 minutes"},
		{90 * time.Second, "in 1 minute"},
		{30 * time.Second, "Starting soon"},
		{-time.Minute, "Starting soon"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, startsIn(now.Add(tt.in), now), tt.in.String())
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := string(renderMarkdown("**Bring** a laptop\nand a charger <script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>Bring</strong>")
	assert.Contains(t, out, "<br>")
	assert.NotContains(t, out, "<script>")
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Open for All", humanizeScope("open_for_all"))
	assert.Equal(t, "Junior Programmers", humanizeScope("junior_programmers"))
	assert.Equal(t, "Contest", humanizeType("contest"))
	assert.Equal(t, "Published", humanizeStatus("published"))
	assert.Equal(t, "mystery", humanizeType("mystery"))

	assert.Equal(t, "A", initial(" alice"))
	assert.Equal(t, "?", initial(""))
	assert.Equal(t, "", deref(nil))
}
