package processor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// ImagingEngine implements domain.ImageEngine on top of imaging. Text is
// rendered with an OpenType font, the bundled Go Regular one by default.
type ImagingEngine struct {
	font *opentype.Font
}

func NewImagingEngine(fontPath string) (*ImagingEngine, error) {
	data := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read font %s: %v", domain.ErrInvalidConfig, fontPath, err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse font: %v", domain.ErrInvalidConfig, err)
	}

	zlog.Logger.Info().
		Str("font_path", fontPath).
		Bool("bundled_font", fontPath == "").
		Msg("ImagingEngine initialized")

	return &ImagingEngine{font: f}, nil
}

func (e *ImagingEngine) Open(path string) (domain.ImageHandle, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
		}
		zlog.Logger.Error().Err(err).Str("path", path).Msg("failed to decode image")
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrEngineFailure, path, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		zlog.Logger.Error().Str("path", path).Msg("decoded image is empty")
		return nil, fmt.Errorf("%w: decoded image %s is empty", domain.ErrEngineFailure, path)
	}

	zlog.Logger.Debug().
		Str("path", path).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Image decoded successfully")

	return &handle{img: imaging.Clone(img)}, nil
}

func (e *ImagingEngine) Canvas(width, height int, bg color.Color) domain.ImageHandle {
	return &handle{img: imaging.New(width, height, bg)}
}

func (e *ImagingEngine) DrawText(h domain.ImageHandle, text string, size int, fg color.Color) (domain.ImageHandle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: text size must be positive", domain.ErrInvalidParameters)
	}

	face, err := opentype.NewFace(e.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create font face: %v", domain.ErrEngineFailure, err)
	}
	defer face.Close()

	dst := imaging.Clone(imageOf(h))
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	advance := drawer.MeasureString(text)
	x := (fixed.I(width) - advance) / 2
	y := fixed.I((height + size) / 2)
	drawer.Dot = fixed.Point26_6{X: x, Y: y}
	drawer.DrawString(text)

	return &handle{img: dst}, nil
}

// handle wraps an NRGBA image. Transformations never modify the receiver.
type handle struct {
	img *image.NRGBA
}

func (h *handle) Image() image.Image {
	return h.img
}

func (h *handle) Size() (int, int) {
	b := h.img.Bounds()
	return b.Dx(), b.Dy()
}

func (h *handle) Crop(x, y, width, height int) (domain.ImageHandle, error) {
	w, ht := h.Size()
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > w || y+height > ht {
		return nil, fmt.Errorf("%w: crop %dx%d at (%d,%d) exceeds %dx%d image",
			domain.ErrEngineFailure, width, height, x, y, w, ht)
	}
	origin := h.img.Bounds().Min
	rect := image.Rect(origin.X+x, origin.Y+y, origin.X+x+width, origin.Y+y+height)
	return &handle{img: imaging.Crop(h.img, rect)}, nil
}

func (h *handle) Resize(width, height int) domain.ImageHandle {
	return &handle{img: imaging.Resize(h.img, width, height, imaging.Lanczos)}
}

func (h *handle) Thumbnail(width, height int, mode domain.FitMode) domain.ImageHandle {
	if mode.Normalize() == domain.FitInset {
		return &handle{img: imaging.Fit(h.img, width, height, imaging.Lanczos)}
	}
	return &handle{img: imaging.Fill(h.img, width, height, imaging.Center, imaging.Lanczos)}
}

func (h *handle) Paste(overlay domain.ImageHandle, x, y int) domain.ImageHandle {
	return &handle{img: imaging.Overlay(h.img, imageOf(overlay), image.Pt(x, y), 1.0)}
}

func (h *handle) Encode(w io.Writer, ext string, quality int) error {
	format, err := imaging.FormatFromExtension(strings.TrimPrefix(ext, "."))
	if err != nil {
		return fmt.Errorf("%w: output format %q: %v", domain.ErrEngineFailure, ext, err)
	}
	if quality < domain.MinQuality {
		quality = domain.MinQuality
	}
	if quality > domain.MaxQuality {
		quality = domain.MaxQuality
	}
	if err := imaging.Encode(w, h.img, format, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrEngineFailure, format, err)
	}
	return nil
}

// CanEncode reports whether ext names a format the engine can write.
func CanEncode(ext string) bool {
	_, err := imaging.FormatFromExtension(strings.TrimPrefix(ext, "."))
	return err == nil
}

func imageOf(h domain.ImageHandle) image.Image {
	if v, ok := h.(interface{ Image() image.Image }); ok {
		return v.Image()
	}
	w, ht := h.Size()
	return image.NewNRGBA(image.Rect(0, 0, w, ht))
}
