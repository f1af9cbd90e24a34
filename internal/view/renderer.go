package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer turns a template name and a data payload into a page. The server
// depends on this narrow contract so tests can substitute it.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// TemplateRenderer renders the embedded storefront templates.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses all embedded templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"price": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

// Render executes the named template.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	return r.templates.ExecuteTemplate(w, name+".html", data)
}
