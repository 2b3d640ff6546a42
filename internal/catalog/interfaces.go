package catalog

import (
	"context"
	"net/http"
	"time"
)

// PageSource fetches a URL and returns the body plus metadata. A non-200
// status is not an error at this layer; callers decide how to treat it.
type PageSource interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Clock returns the current time and performs rate-limit pauses. Sleep must
// return early with ctx.Err() when ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IdentityPolicy picks the client identity headers sent with one request.
type IdentityPolicy interface {
	Headers() http.Header
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
