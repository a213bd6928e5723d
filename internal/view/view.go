// Package view renders the server-side HTML pages. Templates are embedded
// and parsed once at startup; every page shares the layout shell with nav
// and flash messages.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/session"
	"givinggrid/api/internal/store"
)

//go:embed templates
var templateFS embed.FS

var pageNames = []string{
	"home", "browse", "listing_detail", "listing_form", "respond",
	"responses", "thread", "dashboard", "login", "register", "profile",
	"organizations", "organization_detail", "organization_form", "report",
	"admin_dashboard", "admin_verify", "admin_reports", "admin_report_detail",
	"error",
}

// Base is the envelope every page receives. Data carries the page-specific
// payload.
type Base struct {
	Title       string
	User        *store.User
	CSRFToken   string
	Flashes     []session.Flash
	UnreadCount int
	Data        any
}

type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcMap()).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

func (r *Renderer) Render(w io.Writer, page string, data Base) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown view %q", page)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// funcMap exposes the catalog labels. Lookups fall back to the raw stored
// value so a row predating a vocabulary change still renders.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"typeLabel": func(v catalog.ListingType) string {
			return orRaw(catalog.ListingTypeLabel(v))(string(v))
		},
		"typePlural": func(v catalog.ListingType) string {
			return orRaw(catalog.ListingTypePlural(v))(string(v))
		},
		"categoryLabel": func(v string) string {
			return orRaw(catalog.CategoryLabel(v))(v)
		},
		"countyLabel": func(v string) string {
			return orRaw(catalog.CountyLabel(v))(v)
		},
		"urgencyLabel": func(v catalog.Urgency) string {
			return orRaw(catalog.UrgencyLabel(v))(string(v))
		},
		"statusLabel": func(v catalog.ListingStatus) string {
			return orRaw(catalog.ListingStatusLabel(v))(string(v))
		},
		"responseStatusLabel": func(v catalog.ResponseStatus) string {
			return orRaw(catalog.ResponseStatusLabel(v))(string(v))
		},
		"logisticsLabel": func(v catalog.Logistics) string {
			return orRaw(catalog.LogisticsLabel(v))(string(v))
		},
		"reasonLabel": func(v catalog.ReportReason) string {
			return orRaw(catalog.ReportReasonLabel(v))(string(v))
		},
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"datetime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 3:04 PM")
		},
	}
}

func orRaw(label string, ok bool) func(raw string) string {
	return func(raw string) string {
		if ok {
			return label
		}
		return raw
	}
}
