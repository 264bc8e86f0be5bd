package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

// Pipeline applies transform operations in caller order.
type Pipeline struct {
	engine   domain.ImageEngine
	resolver domain.PathResolver
}

func NewPipeline(engine domain.ImageEngine, resolver domain.PathResolver) (*Pipeline, error) {
	if engine == nil || resolver == nil {
		return nil, fmt.Errorf("%w: pipeline needs an engine and a path resolver", domain.ErrNilDependency)
	}
	return &Pipeline{engine: engine, resolver: resolver}, nil
}

func (p *Pipeline) Apply(ctx context.Context, src domain.ImageHandle, ops []domain.Operation) (domain.ImageHandle, error) {
	img := src
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		op = domain.Concrete(op)
		if op == nil {
			return nil, &domain.ParamError{Op: "operation", Field: "kind", Reason: "nil operation"}
		}
		if err := op.Validate(); err != nil {
			return nil, err
		}

		var err error
		switch o := op.(type) {
		case domain.Resize:
			img = p.resize(img, o)
		case domain.Crop:
			img, err = img.Crop(o.X, o.Y, *o.Width, *o.Height)
		case domain.Thumbnail:
			img = img.Thumbnail(*o.Width, *o.Height, o.Mode.Normalize())
		case domain.Watermark:
			img, err = p.watermark(img, o)
		default:
			err = &domain.ParamError{Op: "operation", Field: "kind", Reason: fmt.Sprintf("unsupported operation %T", op)}
		}
		if err != nil {
			zlog.Logger.Debug().Err(err).Int("index", i).Str("op", string(op.Kind())).Msg("operation failed")
			return nil, err
		}
	}
	return img, nil
}

func (p *Pipeline) resize(img domain.ImageHandle, o domain.Resize) domain.ImageHandle {
	sw, sh := img.Size()
	var w, h int
	switch {
	case o.Width != nil && o.Height != nil:
		w, h = *o.Width, *o.Height
	case o.Width != nil:
		w = *o.Width
		h = scaled(sh, sw, w)
	default:
		h = *o.Height
		w = scaled(sw, sh, h)
	}
	return img.Resize(w, h)
}

// scaled returns other / (side / target), rounded and at least 1.
func scaled(other, side, target int) int {
	v := int(math.Round(float64(other) / (float64(side) / float64(target))))
	if v < 1 {
		return 1
	}
	return v
}

func (p *Pipeline) watermark(img domain.ImageHandle, o domain.Watermark) (domain.ImageHandle, error) {
	path, err := p.resolver.Resolve(o.ImagePath)
	if err != nil {
		return nil, &domain.ParamError{Op: "watermark", Field: "image", Reason: err.Error()}
	}
	if !p.resolver.Exists(path) {
		return nil, &domain.ParamError{Op: "watermark", Field: "image", Reason: fmt.Sprintf("%s does not exist", o.ImagePath)}
	}

	overlay, err := p.engine.Open(path)
	if err != nil {
		return nil, err
	}

	bw, bh := img.Size()
	// The overlay is fitted to the whole base image, not to Width x Height.
	if o.Scaled() {
		overlay = overlay.Thumbnail(bw, bh, o.Mode.Normalize())
	}
	ow, oh := overlay.Size()

	x, y := *o.PosX, *o.PosY
	if x < 0 {
		x = bw - (-x) - ow
	}
	if y < 0 {
		y = bh - (-y) - oh
	}
	if x < 0 || y < 0 || x+ow > bw || y+oh > bh {
		return nil, fmt.Errorf("%w: %dx%d overlay at (%d,%d) on %dx%d image",
			domain.ErrOutOfBounds, ow, oh, x, y, bw, bh)
	}

	return img.Paste(overlay, x, y), nil
}
