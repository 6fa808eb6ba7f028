package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/driveingest/internal/logging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	blurhashProxySize = 64
	blurhashX         = 5
	blurhashY         = 4

	// maxPixels rejects decompression bombs before a full decode.
	maxPixels = 268402689
)

var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// Detector scores how likely an image is to be sensitive, in [0, 1].
type Detector interface {
	Score(ctx context.Context, img image.Image) (float32, error)
}

// ImageOptions configure thumbnail generation.
type ImageOptions struct {
	ThumbnailSize    int
	ThumbnailQuality int
	ThumbnailFilter  string
}

// ImageExtractor decodes raster images in memory.
type ImageExtractor struct {
	size     int
	quality  int
	filter   imaging.ResampleFilter
	detector Detector
	logger   logging.Logger
}

// NewImageExtractor builds an extractor; detector may be nil.
func NewImageExtractor(opts ImageOptions, detector Detector, logger logging.Logger) (*ImageExtractor, error) {
	filter, err := ParseFilter(opts.ThumbnailFilter)
	if err != nil {
		return nil, err
	}
	if opts.ThumbnailQuality < 1 || opts.ThumbnailQuality > 100 {
		return nil, fmt.Errorf("thumbnail quality %d out of range", opts.ThumbnailQuality)
	}
	return &ImageExtractor{
		size:     opts.ThumbnailSize,
		quality:  opts.ThumbnailQuality,
		filter:   filter,
		detector: detector,
		logger:   logger.With("module", "media_image"),
	}, nil
}

// ParseFilter maps a filter name to its resampling filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "", "lanczos":
		return imaging.Lanczos, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	case "mitchell":
		return imaging.MitchellNetravali, nil
	case "linear":
		return imaging.Linear, nil
	case "box":
		return imaging.Box, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	}
	return imaging.ResampleFilter{}, fmt.Errorf("unknown thumbnail filter %q", name)
}

func (e *ImageExtractor) Extract(ctx context.Context, src Source, opts Options) (*Info, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return &Info{}, nil
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, ErrTooManyPixels
	}

	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	b := img.Bounds()
	info := &Info{Width: b.Dx(), Height: b.Dy()}

	proxy := imaging.Fit(img, blurhashProxySize, blurhashProxySize, imaging.Box)
	if hash, err := blurhash.Encode(blurhashX, blurhashY, proxy); err == nil {
		info.Blurhash = hash
	} else {
		e.logger.Warn(ctx, "blurhash failed", "error", err)
	}

	if e.size > 0 && (info.Width > e.size || info.Height > e.size) {
		thumb := imaging.Fit(img, e.size, e.size, e.filter)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
			return nil, fmt.Errorf("encode thumbnail: %w", err)
		}
		info.Thumbnail = buf.Bytes()
		info.ThumbnailType = "image/jpeg"
	}

	if !opts.SkipSensitiveDetection && e.detector != nil {
		score, err := e.detector.Score(ctx, img)
		if err != nil {
			e.logger.Warn(ctx, "sensitivity detection failed", "error", err)
		} else {
			info.MaybeSensitive = score >= opts.SensitiveThreshold
		}
	}

	return info, nil
}
