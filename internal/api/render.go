package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

// Raw HTML in descriptions is dropped because WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// NewTemplates parses the page templates. Times are shown in loc.
func NewTemplates(loc *time.Location) (*template.Template, error) {
	funcs := template.FuncMap{
		"dateRange":      func(start, end time.Time) string { return formatDateRange(start.In(loc), end.In(loc)) },
		"shortTime":      func(t time.Time) string { return t.In(loc).Format("Jan 02, 03:04 PM") },
		"humanizeType":   humanizeType,
		"humanizeScope":  humanizeScope,
		"humanizeStatus": humanizeStatus,
		"duration":       formatDuration,
		"markdown":       renderMarkdown,
		"initial":        initial,
		"deref":          deref,
	}
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

func formatDateRange(start, end time.Time) string {
	const day, clock = "Mon, Jan 02, 2006", "03:04 PM"
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s • %s - %s", start.Format(day), start.Format(clock), end.Format(clock))
	}
	return fmt.Sprintf("%s %s - %s %s", start.Format(day), start.Format(clock), end.Format(day), end.Format(clock))
}

func humanizeType(v string) string {
	switch v {
	case "contest":
		return "Contest"
	case "class":
		return "Class"
	case "other":
		return "Other"
	default:
		return v
	}
}

func humanizeScope(v string) string {
	switch v {
	case "open_for_all":
		return "Open for All"
	case "only_girls":
		return "Only Girls"
	case "junior_programmers":
		return "Junior Programmers"
	case "selected_persons":
		return "Selected Persons"
	default:
		return v
	}
}

func humanizeStatus(v string) string {
	switch v {
	case "published":
		return "Published"
	case "draft":
		return "Draft"
	case "archived":
		return "Archived"
	default:
		return v
	}
}

// formatDuration renders an event's length as "2h" or "1h 30m".
func formatDuration(start, end time.Time) string {
	minutes := int(end.Sub(start).Round(time.Minute) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if m := minutes % 60; m > 0 {
		return fmt.Sprintf("%dh %dm", minutes/60, m)
	}
	return fmt.Sprintf("%dh", minutes/60)
}

// startsIn describes how far away an upcoming event is.
func startsIn(start, now time.Time) string {
	minutes := int(start.Sub(now) / time.Minute)
	hours := minutes / 60
	days := hours / 24
	unit := func(n int, word string) string {
		if n > 1 {
			word += "s"
		}
		return fmt.Sprintf("in %d %s", n, word)
	}
	switch {
	case days > 0:
		return unit(days, "day")
	case hours > 0:
		return unit(hours, "hour")
	case minutes > 0:
		return unit(minutes, "minute")
	default:
		return "Starting soon"
	}
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		log.Printf("Error rendering markdown: %v", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[:1]))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
