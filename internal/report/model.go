// Package report merges series metadata and per-book results into the model
// handed to renderers, and exports the rendered document.
package report

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/scheduler"
)

// Entry is one book section of the report.
type Entry struct {
	*catalog.BookInfo
	// Attempts is the number of fetches it took to collect the book.
	Attempts int `json:"attempts"`
	// Partial marks a book that never passed the completeness gate.
	Partial bool `json:"partial,omitempty"`
}

// Model is everything a renderer needs.
type Model struct {
	RunID      string              `json:"run_id,omitempty"`
	SingleBook bool                `json:"single_book"`
	Series     *catalog.SeriesInfo `json:"series,omitempty"`
	Books      []Entry             `json:"books"`
	// Failed lists identifiers that never produced a usable book.
	Failed    []string `json:"failed,omitempty"`
	BaseURL   string   `json:"base_url"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// Assemble builds the report model. A nil series selects single-book mode,
// in which a partially parsed book is accepted when no usable one exists.
// Empty slots are dropped; the remaining books keep slot order.
func Assemble(series *catalog.SeriesInfo, slots []scheduler.Slot, base string) Model {
	m := Model{
		SingleBook: series == nil,
		Series:     series,
		Books:      []Entry{},
		BaseURL:    strings.TrimRight(base, "/"),
	}
	for _, s := range slots {
		if s.Book != nil {
			m.Books = append(m.Books, Entry{BookInfo: s.Book, Attempts: s.Attempts})
			continue
		}
		if m.SingleBook && s.Partial != nil && len(m.Books) == 0 {
			m.Books = append(m.Books, Entry{BookInfo: s.Partial, Attempts: s.Attempts, Partial: true})
			continue
		}
		m.Failed = append(m.Failed, s.ID)
	}
	return m
}

// Empty reports whether the model holds no books.
func (m Model) Empty() bool {
	return len(m.Books) == 0
}

// Title names the report: the series title, or the book title in
// single-book mode.
func (m Model) Title() string {
	if m.SingleBook {
		if len(m.Books) > 0 && m.Books[0].Title != "" {
			return m.Books[0].Title
		}
		return "book_info"
	}
	if m.Series != nil && m.Series.Title != "" {
		return m.Series.Title
	}
	return "series_info"
}

// BookURL links a book identifier back to its detail page.
func (m Model) BookURL(id string) string {
	return m.BaseURL + "/dp/" + id
}

var unsafeFilename = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeFilename removes characters that are not allowed in file names.
func SanitizeFilename(name string) string {
	clean := strings.TrimSpace(unsafeFilename.ReplaceAllString(name, ""))
	if clean == "" {
		return "report"
	}
	return clean
}
