package domain

type OperationKind string

const (
	OpThumbnail OperationKind = "thumbnail"
	OpResize    OperationKind = "resize"
	OpCrop      OperationKind = "crop"
	OpWatermark OperationKind = "watermark"
)

type FitMode string

const (
	FitOutbound FitMode = "outbound"
	FitInset    FitMode = "inset"
)

// Normalize maps the empty mode to the outbound default.
func (m FitMode) Normalize() FitMode {
	if m == "" {
		return FitOutbound
	}
	return m
}

func (m FitMode) Valid() bool {
	switch m.Normalize() {
	case FitOutbound, FitInset:
		return true
	}
	return false
}

// Operation is one step of a transform request. The set of implementations is
// closed: Resize, Crop, Thumbnail and Watermark.
type Operation interface {
	Kind() OperationKind
	Validate() error
	operation()
}

// Int returns a pointer to n, for optional operation fields.
func Int(n int) *int {
	return &n
}

type Resize struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

func (Resize) Kind() OperationKind { return OpResize }
func (Resize) operation()          {}

func (r Resize) Validate() error {
	if r.Width == nil && r.Height == nil {
		return paramErr("resize", "width", "width or height is required")
	}
	if r.Width != nil && *r.Width <= 0 {
		return paramErr("resize", "width", "must be positive")
	}
	if r.Height != nil && *r.Height <= 0 {
		return paramErr("resize", "height", "must be positive")
	}
	return nil
}

type Crop struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

func (Crop) Kind() OperationKind { return OpCrop }
func (Crop) operation()          {}

func (c Crop) Validate() error {
	if c.Width == nil || *c.Width <= 0 {
		return paramErr("crop", "width", "positive width is required")
	}
	if c.Height == nil || *c.Height <= 0 {
		return paramErr("crop", "height", "positive height is required")
	}
	if c.X < 0 {
		return paramErr("crop", "x", "must not be negative")
	}
	if c.Y < 0 {
		return paramErr("crop", "y", "must not be negative")
	}
	return nil
}

type Thumbnail struct {
	Width  *int    `json:"width"`
	Height *int    `json:"height"`
	Mode   FitMode `json:"mode"`
}

func (Thumbnail) Kind() OperationKind { return OpThumbnail }
func (Thumbnail) operation()          {}

func (t Thumbnail) Validate() error {
	if t.Width == nil || *t.Width <= 0 {
		return paramErr("thumbnail", "width", "positive width is required")
	}
	if t.Height == nil || *t.Height <= 0 {
		return paramErr("thumbnail", "height", "positive height is required")
	}
	if !t.Mode.Valid() {
		return paramErr("thumbnail", "mode", "must be outbound or inset")
	}
	return nil
}

// Watermark pastes the image at ImagePath onto the current image. Negative
// positions are measured from the right and bottom edges.
type Watermark struct {
	PosX      *int    `json:"posX"`
	PosY      *int    `json:"posY"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Mode      FitMode `json:"mode"`
	ImagePath string  `json:"image"`
}

func (Watermark) Kind() OperationKind { return OpWatermark }
func (Watermark) operation()          {}

func (w Watermark) Validate() error {
	if w.PosX == nil || w.PosY == nil {
		return paramErr("watermark", "coordinates", "posX and posY are required")
	}
	if w.Width < 0 {
		return paramErr("watermark", "width", "must not be negative")
	}
	if w.Height < 0 {
		return paramErr("watermark", "height", "must not be negative")
	}
	if !w.Mode.Valid() {
		return paramErr("watermark", "mode", "must be outbound or inset")
	}
	if w.ImagePath == "" {
		return paramErr("watermark", "image", "image path is required")
	}
	return nil
}

// Scaled reports whether the overlay is resized before pasting.
func (w Watermark) Scaled() bool {
	return w.Width > 0 && w.Height > 0
}

// Concrete dereferences pointer variants so callers can switch on value types
// only. A nil pointer yields nil.
func Concrete(op Operation) Operation {
	switch o := op.(type) {
	case *Resize:
		if o == nil {
			return nil
		}
		return *o
	case *Crop:
		if o == nil {
			return nil
		}
		return *o
	case *Thumbnail:
		if o == nil {
			return nil
		}
		return *o
	case *Watermark:
		if o == nil {
			return nil
		}
		return *o
	}
	return op
}

// ValidateOperations checks every operation in order and returns the first failure.
func ValidateOperations(ops []Operation) error {
	for _, op := range ops {
		op = Concrete(op)
		if op == nil {
			return paramErr("operation", "kind", "nil operation")
		}
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return nil
}
