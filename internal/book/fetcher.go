// Package book fetches and parses a single book detail page, trying the
// primary and secondary locale variants in order.
package book

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/query"
)

// Fetcher retrieves BookInfo for identifiers.
type Fetcher struct {
	source  catalog.PageSource
	baseURL string
	logger  *zap.Logger
}

// New constructs a Fetcher for the storefront at baseURL.
func New(source catalog.PageSource, baseURL string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{source: source, baseURL: baseURL, logger: logger}
}

// Fetch tries each candidate URL for id with headers. The first 200 response
// is parsed and ends the loop; non-200 responses, transport errors and parse
// errors move on to the next candidate. Fetch never returns an error: the
// outcome carries the classification.
func (f *Fetcher) Fetch(ctx context.Context, id string, headers http.Header) catalog.FetchOutcome {
	var lastErr error
	for _, candidate := range catalog.BookURLs(f.baseURL, id) {
		resp, err := f.source.Fetch(ctx, catalog.FetchRequest{URL: candidate, Headers: headers})
		if err != nil {
			f.logger.Warn("book request failed", zap.String("asin", id), zap.String("url", candidate), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			f.logger.Info("book page returned non-200",
				zap.String("asin", id),
				zap.String("url", candidate),
				zap.Int("status", resp.StatusCode),
			)
			lastErr = catalog.NewStatusError(candidate, resp.StatusCode)
			continue
		}
		book, err := Parse(id, resp.Body)
		if err != nil {
			f.logger.Warn("book page unparsable", zap.String("asin", id), zap.String("url", candidate), zap.Error(err))
			lastErr = err
			continue
		}
		if book.Usable() {
			return catalog.Complete(book)
		}
		f.logger.Info("book info incomplete", zap.String("asin", id), zap.String("url", candidate))
		return catalog.Incomplete(book)
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate urls")
	}
	f.logger.Warn("failed to retrieve book info", zap.String("asin", id), zap.Error(lastErr))
	return catalog.TransportFailure(fmt.Errorf("fetch book %s: %w", id, lastErr))
}

// Parse extracts BookInfo from a detail page body.
func Parse(id string, body []byte) (*catalog.BookInfo, error) {
	doc, err := query.Parse(body)
	if err != nil {
		return nil, err
	}
	book := &catalog.BookInfo{
		ID:      id,
		Title:   title(doc),
		Details: details(doc),
		Preface: preface(doc),
	}
	book.Thumbnail, book.LargeImage = images(doc)
	book.Authors, book.Illustrators = byline(doc)
	return book, nil
}
