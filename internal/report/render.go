package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

// Renderer turns a model into a document.
type Renderer interface {
	Render(w io.Writer, m Model) error
	// Extension is the file extension without the dot.
	Extension() string
	ContentType() string
}

// NewRenderer picks the renderer for an output format ("html" or "json").
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "html":
		return NewHTMLRenderer()
	case "json":
		return JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// HTMLRenderer renders the report page. Content is escaped by html/template.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded report template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
		"nl2br": nl2br,
		"join":  joinNames,
	}).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render implements Renderer.
func (r *HTMLRenderer) Render(w io.Writer, m Model) error {
	if err := r.tmpl.Execute(w, m); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// Extension implements Renderer.
func (r *HTMLRenderer) Extension() string { return "html" }

// ContentType implements Renderer.
func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

// nl2br escapes text and turns newlines into <br>.
func nl2br(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	// #nosec G203 -- input is escaped above.
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func joinNames(names catalog.Names) string {
	return strings.Join(names, ", ")
}

// JSONRenderer writes the model as indented JSON.
type JSONRenderer struct{}

type jsonDocument struct {
	Title string `json:"title"`
	Model
}

// Render implements Renderer.
func (JSONRenderer) Render(w io.Writer, m Model) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonDocument{Title: m.Title(), Model: m}); err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	return nil
}

// Extension implements Renderer.
func (JSONRenderer) Extension() string { return "json" }

// ContentType implements Renderer.
func (JSONRenderer) ContentType() string { return "application/json" }
