// Package series enumerates a series listing: series-level metadata from the
// first page and every book identifier across the paginated listing.
package series

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/progress"
	"github.com/JakeFAU/series-collector/internal/query"
)

var (
	itemIDPattern   = regexp.MustCompile(`itemBookTitle_\d+`)
	productPattern  = regexp.MustCompile(`/gp/product/(\w{10})`)
	firstIntPattern = regexp.MustCompile(`\d+`)
)

// Config controls pagination.
type Config struct {
	// PageSize is how many books one listing page holds.
	PageSize int
	// PageDelay is the pause before each page after the first.
	PageDelay time.Duration
}

// DefaultConfig returns the storefront's listing geometry.
func DefaultConfig() Config {
	return Config{PageSize: 10, PageDelay: time.Second}
}

// Crawler walks series listings.
type Crawler struct {
	source   catalog.PageSource
	identity catalog.IdentityPolicy
	clock    catalog.Clock
	cfg      Config
	events   progress.Emitter
	logger   *zap.Logger
}

// New constructs a Crawler. A nil emitter discards progress events.
func New(
	source catalog.PageSource,
	identity catalog.IdentityPolicy,
	clock catalog.Clock,
	cfg Config,
	events progress.Emitter,
	logger *zap.Logger,
) *Crawler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if events == nil {
		events = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		source:   source,
		identity: identity,
		clock:    clock,
		cfg:      cfg,
		events:   events,
		logger:   logger,
	}
}

// Crawl fetches the first listing page and, when the advertised size spans
// several pages, every further page in order. A failure on the first page
// fails the crawl; a failure on a later page only drops that page's books.
func (c *Crawler) Crawl(ctx context.Context, seriesURL string) (catalog.SeriesInfo, error) {
	seriesURL = catalog.StripLocale(seriesURL)
	c.logger.Info("collecting series page", zap.Int("page", 1), zap.String("url", seriesURL))
	doc, err := query.Fetch(ctx, c.source, c.request(seriesURL))
	if err != nil {
		return catalog.SeriesInfo{}, fmt.Errorf("fetch series page: %w", err)
	}
	c.events.Emit(progress.Event{Stage: progress.StageSeriesPage, Page: 1, URL: seriesURL})

	info := catalog.SeriesInfo{
		ImageURL:    query.Attr(doc.ByID("img", "seriesImageBlock"), "src"),
		Title:       trimmed(doc.ByID("span", "collection-title")),
		Description: trimmedJoin(doc.ByID("span", "collection_description"), "\n"),
	}
	info.Authors, info.Illustrators = contributors(doc)
	ids := bookIDs(doc)

	pages := c.pageCount(doc)
	for page := 2; page <= pages; page++ {
		if err := c.clock.Sleep(ctx, c.cfg.PageDelay); err != nil {
			c.interrupted(page, pages, err)
			break
		}
		pageIDs, err := c.fetchPage(ctx, seriesURL, page)
		if err != nil {
			if ctx.Err() != nil {
				c.interrupted(page, pages, err)
				break
			}
			c.logger.Warn("skipping series page", zap.Int("page", page), zap.Error(err))
			continue
		}
		ids = append(ids, pageIDs...)
	}

	info.BookIDs = dedupe(ids)
	return info, nil
}

// interrupted logs a cancellation during pagination. The pages read so far
// are kept.
func (c *Crawler) interrupted(page, pages int, err error) {
	c.logger.Warn("series crawl canceled, keeping pages already read",
		zap.Int("page", page), zap.Int("pages", pages), zap.Error(err))
}

func (c *Crawler) pageCount(doc *query.Document) int {
	size := doc.ByID("span", "collection-size")
	if size.Length() == 0 {
		c.logger.Info("series size not shown, assuming a single page")
		return 1
	}
	match := firstIntPattern.FindString(size.Text())
	total, err := strconv.Atoi(match)
	if err != nil || total <= c.cfg.PageSize {
		c.logger.Info("only one page of results found", zap.Int("total", total))
		return 1
	}
	pages := (total + c.cfg.PageSize - 1) / c.cfg.PageSize
	c.logger.Info("series spans several pages", zap.Int("total", total), zap.Int("pages", pages))
	return pages
}

func (c *Crawler) fetchPage(ctx context.Context, seriesURL string, page int) ([]string, error) {
	pageURL, err := catalog.WithPage(seriesURL, page)
	if err != nil {
		return nil, err
	}
	c.logger.Info("collecting series page", zap.Int("page", page), zap.String("url", pageURL))
	doc, err := query.Fetch(ctx, c.source, c.request(pageURL))
	if err != nil {
		return nil, err
	}
	c.events.Emit(progress.Event{Stage: progress.StageSeriesPage, Page: page, URL: pageURL})
	return bookIDs(doc), nil
}

func (c *Crawler) request(u string) catalog.FetchRequest {
	req := catalog.FetchRequest{URL: u}
	if c.identity != nil {
		req.Headers = c.identity.Headers()
	}
	return req
}

func bookIDs(doc *query.Document) []string {
	var ids []string
	doc.MatchingID("a", itemIDPattern).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if m := productPattern.FindStringSubmatch(href); m != nil {
			ids = append(ids, m[1])
		}
	})
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimmed(sel *goquery.Selection) string {
	return trimmedJoin(sel, "")
}
