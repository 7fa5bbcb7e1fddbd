// Package befund models clinical findings reports ("Befund") kept as cases
// and renders them as narrative text.
package befund

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain is one functional area assessed in a case.
type Domain struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Case is a saved findings report. The working draft uses the same shape
// without id and timestamps.
type Case struct {
	ID              string    `json:"id,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
	ClientName      string    `json:"clientName"`
	DOB             string    `json:"dob"`
	Date            string    `json:"date"`
	Setting         string    `json:"setting"`
	Question        string    `json:"question"`
	Methods         string    `json:"methods"`
	DSDS            string    `json:"dsds"`
	DTIM            string    `json:"dtim"`
	Summary         string    `json:"summary"`
	Recommendations string    `json:"recommendations"`
	Domains         []Domain  `json:"domains"`
}

var defaultDomainTitles = []string{
	"Gedächtnis",
	"Sprache/Kommunikation",
	"Orientierung",
	"Aufmerksamkeit/Exekutivfunktionen",
	"Wahrnehmung",
	"Alltag/ADL",
	"Motorik",
	"Stimmung/Verhalten",
	"Inkontinenz/Körperwahrnehmung",
	"Antrieb & Motivation",
}

// DefaultDomains returns the standard functional areas with fresh ids.
func DefaultDomains() []Domain {
	out := make([]Domain, len(defaultDomainTitles))
	for i, t := range defaultDomainTitles {
		out[i] = Domain{ID: uuid.NewString(), Title: t}
	}
	return out
}

// NewDomain returns an empty area titled "Neuer Bereich".
func NewDomain() Domain {
	return Domain{ID: uuid.NewString(), Title: "Neuer Bereich"}
}

// Today formats t as the YYYY-MM-DD date used in case forms.
func Today(t time.Time) string {
	return t.Format(time.DateOnly)
}

// NewDraft returns an empty form dated today with the default areas.
func NewDraft(today time.Time) Case {
	return Case{Date: Today(today), Domains: DefaultDomains()}
}

// Form returns the editable fields of c, dropping id and timestamps. Empty
// area lists are replaced by the defaults and a missing date by today.
func (c Case) Form(today time.Time) Case {
	f := c
	f.ID = ""
	f.CreatedAt = time.Time{}
	f.UpdatedAt = time.Time{}
	if f.Date == "" {
		f.Date = Today(today)
	}
	if len(f.Domains) == 0 {
		f.Domains = DefaultDomains()
	} else {
		f.Domains = slices.Clone(f.Domains)
	}
	return f
}

// Normalize fills what an imported case may lack: id, timestamps and the
// area list. An explicitly empty area list is kept.
func Normalize(c Case, now time.Time) Case {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if c.Domains == nil {
		c.Domains = DefaultDomains()
	}
	return c
}

// BuildNarrative renders c as the plain-text report.
func BuildNarrative(c Case) string {
	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }

	name := c.ClientName
	if name == "" {
		name = "—"
	}
	date := c.Date
	if date == "" {
		date = "—"
	}

	add(fmt.Sprintf("Befund – %s (Datum: %s)", name, date))
	if c.Setting != "" {
		add("Setting/Kontext: " + c.Setting)
	}
	if c.DOB != "" {
		add("Geburtsdatum: " + c.DOB)
	}
	add("")

	if c.Question != "" {
		add("Fragestellung/Anlass:", c.Question, "")
	}
	if c.Methods != "" {
		add("Methoden:", c.Methods, "")
	}
	if c.DSDS != "" || c.DTIM != "" {
		add("Testergebnisse (Kurz):")
		if c.DSDS != "" {
			add("DSDS: " + c.DSDS)
		}
		if c.DTIM != "" {
			add("DTIM: " + c.DTIM)
		}
		add("")
	}
	if len(c.Domains) > 0 {
		add("Funktionale Bereiche:")
		for _, d := range c.Domains {
			title := d.Title
			if title == "" {
				title = "Bereich"
			}
			add(fmt.Sprintf("- %s: %s", title, d.Text))
		}
		add("")
	}
	if c.Summary != "" {
		add("Zusammenfassung:", c.Summary, "")
	}
	if c.Recommendations != "" {
		add("Empfehlungen:", c.Recommendations, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var (
	spaceRun   = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	unsafeRune = regexp.MustCompile(`[^a-z0-9_\-]`)
)

// SafeFile turns s into a short lower-case file name fragment.
func SafeFile(s string) string {
	s = strings.ToLower(s)
	s = spaceRun.ReplaceAllString(s, "_")
	s = unsafeRune.ReplaceAllString(s, "")
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		return "fall"
	}
	return s
}

// FileName returns the export file name of a single case.
func FileName(c Case) string {
	date := c.Date
	if date == "" {
		date = "datum"
	}
	return fmt.Sprintf("befund_%s_%s.json", SafeFile(c.ClientName), date)
}

// Filter keeps cases whose name, date, summary or setting contain query,
// ignoring case. An empty query keeps everything.
func Filter(cases []Case, query string) []Case {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Case, 0, len(cases))
	for _, c := range cases {
		if q == "" {
			out = append(out, c)
			continue
		}
		hay := strings.ToLower(strings.Join([]string{c.ClientName, c.Date, c.Summary, c.Setting}, " "))
		if strings.Contains(hay, q) {
			out = append(out, c)
		}
	}
	return out
}

// SortByUpdated sorts cases newest first, keeping the order of equal times.
func SortByUpdated(cases []Case) {
	slices.SortStableFunc(cases, func(a, b Case) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
