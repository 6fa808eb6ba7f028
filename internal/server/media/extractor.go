// Package media extracts dimensions, blurhash, thumbnails and a
// sensitivity verdict from uploaded files.
package media

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/driveingest/internal/logging"
	"golang.org/x/sync/semaphore"
)

// Source is the file to inspect. Data holds the bytes when they are in
// memory; otherwise extractors that need them read Key from storage.
type Source struct {
	Data []byte
	Key  string
	Type string
}

// Options carry the per-upload detection settings decided at preflight.
type Options struct {
	SensitiveThreshold     float32
	SkipSensitiveDetection bool
}

// Info is what the pipeline learned about a file. Zero values mean unknown.
type Info struct {
	Width          int
	Height         int
	Blurhash       string
	Thumbnail      []byte
	ThumbnailType  string
	MaybeSensitive bool
}

type Extractor interface {
	Extract(ctx context.Context, src Source, opts Options) (*Info, error)
}

// MaxImageFetch caps how much of a stored image is read back for inspection.
const MaxImageFetch = 64 << 20

// Fetcher reads a stored object back into memory.
type Fetcher interface {
	Get(ctx context.Context, key string, limit int64) ([]byte, error)
}

// Pipeline routes a file to the extractor for its type. Types without an
// extractor yield an empty Info.
type Pipeline struct {
	image  Extractor
	video  Extractor
	fetch  Fetcher
	logger logging.Logger
}

// NewPipeline builds a pipeline; video may be nil to disable video metadata.
// Images given only by key are read back through fetch.
func NewPipeline(image, video Extractor, fetch Fetcher, logger logging.Logger) *Pipeline {
	return &Pipeline{image: image, video: video, fetch: fetch, logger: logger.With("module", "media")}
}

func (p *Pipeline) Extract(ctx context.Context, src Source, opts Options) (*Info, error) {
	var ex Extractor
	switch {
	case IsImage(src.Type):
		ex = p.image
		if len(src.Data) == 0 && src.Key != "" && p.fetch != nil {
			data, err := p.fetch.Get(ctx, src.Key, MaxImageFetch)
			if err != nil {
				return nil, fmt.Errorf("read back %s: %w", src.Key, err)
			}
			src.Data = data
		}
	case IsVideo(src.Type):
		ex = p.video
	}
	if ex == nil {
		return &Info{}, nil
	}

	info, err := ex.Extract(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.Type, err)
	}
	p.logger.Debug(ctx, "metadata extracted", "type", src.Type, "width", info.Width, "height", info.Height,
		"thumbnail", len(info.Thumbnail) > 0, "maybe_sensitive", info.MaybeSensitive)
	return info, nil
}

// LimitedExtractor bounds the number of concurrent extractions.
type LimitedExtractor struct {
	active *semaphore.Weighted
	Extractor
}

func NewLimitedExtractor(ex Extractor, limit int) *LimitedExtractor {
	if limit < 1 {
		limit = 1
	}
	return &LimitedExtractor{
		active:    semaphore.NewWeighted(int64(limit)),
		Extractor: ex,
	}
}

func (l *LimitedExtractor) Extract(ctx context.Context, src Source, opts Options) (*Info, error) {
	if err := l.active.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.active.Release(1)

	return l.Extractor.Extract(ctx, src, opts)
}
