// Package resolver turns operator input (free text or a storefront URL) into
// the canonical URL of a series page.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/query"
)

const (
	seriesTitleSelector = "span#collection-title"
	seriesLinkSelector  = "a.a-link-normal"
	seriesLinkMarker    = "dbs_"
	resultSelector      = `div[data-component-type="s-search-result"]`
	resultLabelSelector = "img.s-image"
	resultLinkSelector  = "a.a-link-normal.s-underline-text.s-underline-link-text.s-link-style"
)

// Config tunes candidate ranking.
type Config struct {
	BaseURL string
	// MinSimilarity is the exclusive lower bound the top score must clear.
	MinSimilarity float64
	// PreferenceWindow is the strict score distance from the top within which
	// a label carrying PreferredMarker wins.
	PreferenceWindow float64
	PreferredMarker  string
	// Similarity scores query against a label; nil uses Ratio.
	Similarity SimilarityFunc
}

// DefaultConfig returns the stock ranking parameters for base.
func DefaultConfig(base string) Config {
	return Config{
		BaseURL:          base,
		MinSimilarity:    0.3,
		PreferenceWindow: 0.2,
		PreferredMarker:  "文庫",
	}
}

// Candidate is one search result.
type Candidate struct {
	Label string
	URL   string
	Score float64
}

// Resolver maps queries to series URLs.
type Resolver struct {
	source   catalog.PageSource
	identity catalog.IdentityPolicy
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Resolver.
func New(source catalog.PageSource, identity catalog.IdentityPolicy, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Similarity == nil {
		cfg.Similarity = Ratio
	}
	return &Resolver{source: source, identity: identity, cfg: cfg, logger: logger}
}

// Resolve returns the URL of the series page for input. URL input is checked
// for a series marker or a link to its series. Free text goes through search
// and yields the best result's link, which may be a series or a detail page.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("resolve empty query: %w", catalog.ErrNotFound)
	}
	if catalog.IsURL(input) {
		return r.resolveURL(ctx, input)
	}
	return r.search(ctx, input)
}

func (r *Resolver) resolveURL(ctx context.Context, raw string) (string, error) {
	pageURL := catalog.StripLocale(raw)
	doc, err := query.Fetch(ctx, r.source, r.request(pageURL))
	if err != nil {
		return "", fmt.Errorf("fetch product page: %w", err)
	}
	if doc.Has(seriesTitleSelector) {
		r.logger.Debug("input is already a series page", zap.String("url", pageURL))
		return pageURL, nil
	}
	var href string
	doc.Find(seriesLinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if h, ok := s.Attr("href"); ok && strings.Contains(h, seriesLinkMarker) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("find series link on %s: %w", pageURL, catalog.ErrNotFound)
	}
	resolved, err := catalog.Resolve(r.cfg.BaseURL, href)
	if err != nil {
		return "", fmt.Errorf("resolve series link: %w", err)
	}
	r.logger.Debug("followed series link", zap.String("from", pageURL), zap.String("to", resolved))
	return resolved, nil
}

func (r *Resolver) search(ctx context.Context, text string) (string, error) {
	searchURL := strings.TrimRight(r.cfg.BaseURL, "/") +
		"/s?k=" + url.QueryEscape(text) + "&i=digital-text"
	doc, err := query.Fetch(ctx, r.source, r.request(searchURL))
	if err != nil {
		return "", fmt.Errorf("fetch search results: %w", err)
	}
	candidates := r.harvest(doc)
	best, err := r.Select(text, candidates)
	if err != nil {
		return "", err
	}
	r.logger.Info("search resolved",
		zap.String("query", text),
		zap.String("label", best.Label),
		zap.Float64("score", best.Score),
		zap.Int("candidates", len(candidates)),
	)
	return best.URL, nil
}

func (r *Resolver) harvest(doc *query.Document) []Candidate {
	var out []Candidate
	doc.Find(resultSelector).Each(func(_ int, s *goquery.Selection) {
		href := query.Attr(s.Find(resultLinkSelector), "href")
		if href == "" {
			return
		}
		link, err := catalog.Resolve(r.cfg.BaseURL, href)
		if err != nil {
			r.logger.Debug("skip unparsable result link", zap.String("href", href), zap.Error(err))
			return
		}
		out = append(out, Candidate{
			Label: query.Attr(s.Find(resultLabelSelector), "alt"),
			URL:   link,
		})
	})
	return out
}

// Select scores and ranks candidates against text and applies the paperback
// preference. It fails with catalog.ErrNoMatch when there is nothing to pick
// or the top score does not exceed MinSimilarity.
func (r *Resolver) Select(text string, candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, fmt.Errorf("no search results for %q: %w", text, catalog.ErrNoMatch)
	}
	normalized := normalize(text)
	ranked := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Score = r.cfg.Similarity(normalized, normalize(c.Label))
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	top := ranked[0]
	if top.Score <= r.cfg.MinSimilarity {
		return Candidate{}, fmt.Errorf("best score %.2f for %q: %w", top.Score, text, catalog.ErrNoMatch)
	}
	if r.cfg.PreferredMarker == "" {
		return top, nil
	}
	for _, c := range ranked {
		if top.Score-c.Score >= r.cfg.PreferenceWindow {
			break
		}
		if strings.Contains(c.Label, r.cfg.PreferredMarker) {
			return c, nil
		}
	}
	return top, nil
}

func (r *Resolver) request(u string) catalog.FetchRequest {
	req := catalog.FetchRequest{URL: u}
	if r.identity != nil {
		req.Headers = r.identity.Headers()
	}
	return req
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
