package book

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/query"
)

var (
	thumbSizeToken = regexp.MustCompile(`\._[A-Z0-9,]+_\.`)
	largeSizeToken = regexp.MustCompile(`\._[^_]+_`)
	whitespaceRun  = regexp.MustCompile(`[\s\p{Z}]+`)
	directionMarks = strings.NewReplacer("\u200e", "", "\u200f", "")
)

func title(doc *query.Document) string {
	return strings.TrimSpace(query.Text(doc.ByID("span", "productTitle"), ""))
}

// images returns the thumbnail and the largest available image. Without a
// landing image there is neither.
func images(doc *query.Document) (thumbnail, large string) {
	landing := doc.ByID("img", "landingImage")
	if landing.Length() == 0 {
		return "", ""
	}
	thumbnail = thumbSizeToken.ReplaceAllString(query.Attr(landing, "src"), ".")
	if url, ok := largestDynamic(query.Attr(landing, "data-a-dynamic-image")); ok {
		return thumbnail, largeSizeToken.ReplaceAllString(url, "")
	}
	fallback := query.Attr(doc.Find("img.fullscreen"), "src")
	return thumbnail, largeSizeToken.ReplaceAllString(fallback, "")
}

// largestDynamic picks the URL with the largest width*height from the
// dynamic image map. Ties go to the lexically smallest URL so the choice
// does not depend on map iteration order.
func largestDynamic(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var sizes map[string][]float64
	if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
		return "", false
	}
	best, bestArea := "", -1.0
	for url, dims := range sizes {
		if len(dims) < 2 {
			continue
		}
		area := dims[0] * dims[1]
		if area > bestArea || (area == bestArea && url < best) {
			best, bestArea = url, area
		}
	}
	return best, best != ""
}

// details reads the label/value bullets. Text is normalized before
// splitting on the first colon; without a colon the first word is the key.
func details(doc *query.Document) catalog.Details {
	var out catalog.Details
	doc.Find("div#detailBullets_feature_div li span.a-list-item").Each(func(_ int, s *goquery.Selection) {
		text := whitespaceRun.ReplaceAllString(query.StrippedText(s, " "), " ")
		text = strings.TrimSpace(directionMarks.Replace(text))
		if key, value, ok := strings.Cut(text, ":"); ok {
			out.Set(strings.TrimSpace(key), strings.TrimSpace(value))
			return
		}
		parts := strings.Fields(text)
		if len(parts) >= 2 {
			out.Set(parts[0], strings.Join(parts[1:], " "))
		}
	})
	return out
}

func byline(doc *query.Document) (authors, illustrators catalog.Names) {
	doc.Find("div#bylineInfo span.author").Each(func(_ int, s *goquery.Selection) {
		nameTag := s.Find("a.a-link-normal")
		roleTag := s.Find("span.contribution")
		if nameTag.Length() == 0 || roleTag.Length() == 0 {
			return
		}
		name := query.StrippedText(nameTag, "")
		role := query.StrippedText(roleTag, "")
		switch {
		case strings.Contains(role, "(著)") || strings.Contains(role, "Author"):
			authors = authors.Add(name)
		case strings.Contains(role, "(イラスト)") || strings.Contains(role, "Illustrator"):
			illustrators = illustrators.Add(name)
		default:
			authors = authors.Add(name)
		}
	})
	return authors, illustrators
}

func preface(doc *query.Document) string {
	var text string
	doc.Find("div#bookDescription_feature_div span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !query.Bare(s) {
			return true
		}
		text = strings.TrimSpace(query.Text(s, "\n"))
		return false
	})
	return text
}
