package series

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/query"
)

const (
	popoverSelector = `span.a-declarative[data-action="a-popover"]`
	// contributorLink points at a contributor's store page.
	contributorLink = `a[href*="/e/"]`
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Role keywords mark a popover as a contributor; markers delimit the name.
var (
	authorKeywords      = []string{"Author", "著"}
	illustratorKeywords = []string{"Illustrator", "イラスト"}
	authorMarkers       = []string{"(Author)", "（著）"}
	illustratorMarkers  = []string{"(Illustrator)", "（イラスト）"}
)

// contributors reads the popover spans on a series page. The raw markup is
// searched because the role marker can sit inside attribute payloads.
func contributors(doc *query.Document) (authors, illustrators catalog.Names) {
	doc.Find(popoverSelector).Each(func(_ int, s *goquery.Selection) {
		raw := query.OuterHTML(s)
		isAuthor := containsAny(raw, authorKeywords)
		isIllustrator := containsAny(raw, illustratorKeywords)
		if !isAuthor && !isIllustrator {
			return
		}
		found := false
		if isAuthor {
			if name, ok := nameBefore(raw, authorMarkers); ok {
				authors = authors.Add(name)
				found = true
			}
		}
		if isIllustrator {
			if name, ok := nameBefore(raw, illustratorMarkers); ok {
				illustrators = illustrators.Add(name)
				found = true
			}
		}
		if found {
			return
		}
		// Without a marker only a linked contributor counts, so labels such as
		// author biographies stay out.
		if link := s.Find(contributorLink).First(); link.Length() > 0 {
			authors = authors.Add(query.StrippedText(link, " "))
		}
	})
	return authors, illustrators
}

// nameBefore returns the text preceding the first marker present in raw,
// reduced to its last line with markup removed.
func nameBefore(raw string, markers []string) (string, bool) {
	for _, marker := range markers {
		head, _, ok := strings.Cut(raw, marker)
		if !ok {
			continue
		}
		if i := strings.LastIndex(head, `\r\n`); i >= 0 {
			head = head[i+len(`\r\n`):]
		}
		head = tagPattern.ReplaceAllString(head, "")
		if i := strings.LastIndex(head, "<"); i >= 0 {
			// The marker sits inside an attribute of an unclosed tag.
			head = head[i:]
			j := strings.LastIndex(head, "&#34;")
			if j < 0 {
				continue
			}
			head = head[j+len("&#34;"):]
		}
		name := strings.TrimSpace(html.UnescapeString(head))
		return name, name != ""
	}
	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func trimmedJoin(sel *goquery.Selection, sep string) string {
	return strings.TrimSpace(query.Text(sel, sep))
}
