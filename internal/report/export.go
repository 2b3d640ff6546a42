package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// BlobStore persists a rendered report and returns where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
}

// Notifier announces a finished export.
type Notifier interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Hasher digests the rendered document.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// ExporterOption customizes an Exporter.
type ExporterOption func(*Exporter)

// WithHasher adds a content digest to every export notice.
func WithHasher(h Hasher) ExporterOption {
	return func(e *Exporter) { e.hasher = h }
}

// Notice is the payload published after an export.
type Notice struct {
	RunID      string   `json:"run_id,omitempty"`
	Title      string   `json:"title"`
	Location   string   `json:"location"`
	Format     string   `json:"format"`
	SingleBook bool     `json:"single_book"`
	Books      int      `json:"books"`
	Failed     []string `json:"failed,omitempty"`
	Cancelled  bool     `json:"cancelled,omitempty"`
	SHA256     string   `json:"sha256,omitempty"`
}

// Exporter renders a model and writes it to a BlobStore.
type Exporter struct {
	store    BlobStore
	renderer Renderer
	notifier Notifier
	hasher   Hasher
	logger   *zap.Logger
}

// NewExporter wires an exporter. notifier may be nil.
func NewExporter(store BlobStore, renderer Renderer, notifier Notifier, logger *zap.Logger, opts ...ExporterOption) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Exporter{store: store, renderer: renderer, notifier: notifier, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Export renders m as "<title>.<ext>" and returns the stored location.
// A failed notification is logged; the export itself still succeeds.
func (e *Exporter) Export(ctx context.Context, m Model) (string, error) {
	var buf bytes.Buffer
	if err := e.renderer.Render(&buf, m); err != nil {
		return "", err
	}
	var digest string
	if e.hasher != nil {
		var err error
		if digest, err = e.hasher.Hash(buf.Bytes()); err != nil {
			return "", fmt.Errorf("digest report: %w", err)
		}
	}
	name := SanitizeFilename(m.Title()) + "." + e.renderer.Extension()
	location, err := e.store.PutObject(ctx, name, e.renderer.ContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	e.logger.Info("report exported",
		zap.String("location", location),
		zap.Int("books", len(m.Books)),
		zap.Int("failed", len(m.Failed)),
	)

	if e.notifier != nil {
		notice := Notice{
			RunID:      m.RunID,
			Title:      m.Title(),
			Location:   location,
			Format:     e.renderer.Extension(),
			SingleBook: m.SingleBook,
			Books:      len(m.Books),
			Failed:     m.Failed,
			Cancelled:  m.Cancelled,
			SHA256:     digest,
		}
		id, err := e.notifier.Publish(ctx, notice)
		if err != nil {
			e.logger.Warn("export notification failed", zap.String("location", location), zap.Error(err))
		} else {
			e.logger.Debug("export notification published", zap.String("message_id", id))
		}
	}
	return location, nil
}
