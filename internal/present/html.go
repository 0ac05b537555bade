package present

import (
	"embed"
	"html/template"
	"io"

	"github.com/tomasbasham/s3apo/internal/region"
	"github.com/tomasbasham/s3apo/internal/upload"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/page.html.tmpl"))

// Page is the data behind the form page. The secret key is never echoed
// back into the form.
type Page struct {
	AccessKey string
	Bucket    string
	Region    string
	Regions   []region.Region

	// Error is a submission-level problem, e.g. a missing field.
	Error string

	Statuses []upload.Status
}

// NewPage returns a page with the region dropdown populated and the
// default region selected.
func NewPage() Page {
	return Page{
		Region:  region.Default().Code,
		Regions: region.All(),
	}
}

// WriteHTML renders p as the form page.
func WriteHTML(w io.Writer, p Page) error {
	if p.Regions == nil {
		p.Regions = region.All()
	}
	if p.Region == "" {
		p.Region = region.Default().Code
	}
	return page.Execute(w, p)
}
