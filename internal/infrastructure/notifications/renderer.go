package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
)

// DisplayTimeFormat is how appointment times appear in emails
const DisplayTimeFormat = "Monday, Jan 02, 2006 at 03:04 PM"

//go:embed templates/*.html
var templateFS embed.FS

// TemplateRenderer renders notification variants with the embedded HTML templates
type TemplateRenderer struct {
	templates *template.Template
}

var _ providers.NotificationRenderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer parses the embedded templates. Times are shown in loc.
func NewTemplateRenderer(loc *time.Location) (*TemplateRenderer, error) {
	if loc == nil {
		loc = time.UTC
	}

	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.In(loc).Format(DisplayTimeFormat)
		},
	}

	tmpl, err := template.New("notifications").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}

	return &TemplateRenderer{templates: tmpl}, nil
}

// Render executes the template named by the notification with the variant as data
func (r *TemplateRenderer) Render(n entities.Notification) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, n.TemplateName()+".html", n); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", n.TemplateName(), err)
	}
	return buf.String(), nil
}
