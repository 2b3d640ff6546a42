package query

import (
	"context"
	"errors"
	"net/http"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

// Fetch GETs request.URL through src and parses the body. Any status other
// than 200 and any source failure come back as a *catalog.TransportError.
func Fetch(ctx context.Context, src catalog.PageSource, request catalog.FetchRequest) (*Document, error) {
	resp, err := src.Fetch(ctx, request)
	if err != nil {
		var te *catalog.TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, catalog.NewTransportError(request.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, catalog.NewStatusError(request.URL, resp.StatusCode)
	}
	return Parse(resp.Body)
}
