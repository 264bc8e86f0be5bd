package dto

import (
	"fmt"

	"github.com/yokitheyo/thumbcache/internal/domain"
)

// OperationSpec is the wire form of one transform step; Op selects which of
// the remaining fields apply.
type OperationSpec struct {
	Op     string `json:"op" binding:"required,oneof=resize crop thumbnail watermark"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	PosX   *int   `json:"posX,omitempty"`
	PosY   *int   `json:"posY,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Image  string `json:"image,omitempty"`
}

func (s OperationSpec) ToOperation() (domain.Operation, error) {
	switch domain.OperationKind(s.Op) {
	case domain.OpResize:
		return domain.Resize{Width: s.Width, Height: s.Height}, nil
	case domain.OpCrop:
		return domain.Crop{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}, nil
	case domain.OpThumbnail:
		return domain.Thumbnail{Width: s.Width, Height: s.Height, Mode: domain.FitMode(s.Mode)}, nil
	case domain.OpWatermark:
		wm := domain.Watermark{PosX: s.PosX, PosY: s.PosY, Mode: domain.FitMode(s.Mode), ImagePath: s.Image}
		if s.Width != nil {
			wm.Width = *s.Width
		}
		if s.Height != nil {
			wm.Height = *s.Height
		}
		return wm, nil
	}
	return nil, &domain.ParamError{Op: "operation", Field: "op", Reason: fmt.Sprintf("unknown operation %q", s.Op)}
}

func FromOperation(op domain.Operation) OperationSpec {
	switch o := domain.Concrete(op).(type) {
	case domain.Resize:
		return OperationSpec{Op: string(domain.OpResize), Width: o.Width, Height: o.Height}
	case domain.Crop:
		return OperationSpec{Op: string(domain.OpCrop), X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
	case domain.Thumbnail:
		return OperationSpec{Op: string(domain.OpThumbnail), Width: o.Width, Height: o.Height, Mode: string(o.Mode)}
	case domain.Watermark:
		s := OperationSpec{Op: string(domain.OpWatermark), PosX: o.PosX, PosY: o.PosY, Mode: string(o.Mode), Image: o.ImagePath}
		if o.Width != 0 {
			s.Width = domain.Int(o.Width)
		}
		if o.Height != 0 {
			s.Height = domain.Int(o.Height)
		}
		return s
	}
	return OperationSpec{}
}

type PlaceholderRequest struct {
	Width           int    `json:"width" binding:"required,gt=0"`
	Height          int    `json:"height" binding:"required,gt=0"`
	Text            string `json:"text,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	TextSize        int    `json:"textSize,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
	Random          *bool  `json:"random,omitempty"`
}

func (r *PlaceholderRequest) ToSpec() domain.PlaceholderSpec {
	return domain.PlaceholderSpec{
		Width:           r.Width,
		Height:          r.Height,
		Text:            r.Text,
		BackgroundColor: r.BackgroundColor,
		TextColor:       r.TextColor,
		TextSize:        r.TextSize,
		Strategy:        domain.PlaceholderStrategy(r.Strategy),
		Random:          r.Random,
	}
}

type ResolveRequest struct {
	Source      string              `json:"source" binding:"required"`
	Quality     int                 `json:"quality,omitempty" binding:"omitempty,min=1,max=100"`
	Compress    bool                `json:"compress,omitempty"`
	Operations  []OperationSpec     `json:"operations" binding:"dive"`
	Placeholder *PlaceholderRequest `json:"placeholder,omitempty"`
}

func (r *ResolveRequest) ToTransformRequest() (domain.TransformRequest, error) {
	ops := make([]domain.Operation, 0, len(r.Operations))
	for i, spec := range r.Operations {
		op, err := spec.ToOperation()
		if err != nil {
			return domain.TransformRequest{}, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return domain.NewTransformRequest(r.Source, r.Quality, r.Compress, ops...), nil
}

func (r *ResolveRequest) PlaceholderSpec() *domain.PlaceholderSpec {
	if r.Placeholder == nil {
		return nil
	}
	spec := r.Placeholder.ToSpec()
	return &spec
}

// WarmTask is the Kafka message asking a worker to pre-generate a derivative.
type WarmTask struct {
	ID      string         `json:"id"`
	Request ResolveRequest `json:"request"`
}
