package domain

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

type PlaceholderStrategy string

const (
	PlaceholderRemoteURL   PlaceholderStrategy = "url"
	PlaceholderClientJS    PlaceholderStrategy = "js"
	PlaceholderLocalRender PlaceholderStrategy = "local"
)

func (s PlaceholderStrategy) Valid() bool {
	switch s {
	case PlaceholderRemoteURL, PlaceholderClientJS, PlaceholderLocalRender:
		return true
	}
	return false
}

// PlaceholderSpec is a caller's placeholder request. Zero-valued optional fields
// are filled from PlaceholderDefaults by Normalize.
type PlaceholderSpec struct {
	Width           int                 `json:"width"`
	Height          int                 `json:"height"`
	Text            string              `json:"text,omitempty"`
	BackgroundColor string              `json:"backgroundColor,omitempty"`
	TextColor       string              `json:"textColor,omitempty"`
	TextSize        int                 `json:"textSize,omitempty"`
	Strategy        PlaceholderStrategy `json:"strategy,omitempty"`
	Random          *bool               `json:"random,omitempty"`
}

type PlaceholderDefaults struct {
	Strategy        PlaceholderStrategy
	BackgroundColor string
	TextColor       string
	Text            string
	TextSize        int
	Random          bool
}

func (d PlaceholderDefaults) Validate() error {
	if !d.Strategy.Valid() {
		return fmt.Errorf("%w: placeholder strategy %q", ErrInvalidConfig, d.Strategy)
	}
	if !ValidHexColor(d.BackgroundColor) {
		return fmt.Errorf("%w: placeholder background color %q", ErrInvalidConfig, d.BackgroundColor)
	}
	if !ValidHexColor(d.TextColor) {
		return fmt.Errorf("%w: placeholder text color %q", ErrInvalidConfig, d.TextColor)
	}
	if d.TextSize <= 0 {
		return fmt.Errorf("%w: placeholder text size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Normalize validates required fields and fills everything else from d.
// Invalid colors fall back to the defaults instead of failing.
func (s PlaceholderSpec) Normalize(d PlaceholderDefaults) (PlaceholderSpec, error) {
	if s.Width <= 0 {
		return s, paramErr("placeholder", "width", "positive width is required")
	}
	if s.Height <= 0 {
		return s, paramErr("placeholder", "height", "positive height is required")
	}
	if s.Strategy == "" {
		s.Strategy = d.Strategy
	}
	if !s.Strategy.Valid() {
		return s, paramErr("placeholder", "strategy", "must be url, js or local")
	}
	if s.Text == "" {
		s.Text = d.Text
	}
	if s.TextSize <= 0 {
		s.TextSize = d.TextSize
	}
	s.BackgroundColor = colorOr(s.BackgroundColor, d.BackgroundColor)
	s.TextColor = colorOr(s.TextColor, d.TextColor)
	if s.Random == nil {
		random := d.Random
		s.Random = &random
	}
	return s, nil
}

func (s PlaceholderSpec) IsRandom() bool {
	return s.Random != nil && *s.Random
}

var hexColorRe = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func ValidHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// colorOr returns c in canonical "#rrggbb" form, or fallback when c is invalid.
func colorOr(c, fallback string) string {
	if ValidHexColor(c) {
		return CanonicalHex(c)
	}
	return CanonicalHex(fallback)
}

// CanonicalHex expands "#abc" to "#aabbcc" and lowercases. Invalid input is
// returned unchanged.
func CanonicalHex(c string) string {
	if !ValidHexColor(c) {
		return c
	}
	h := strings.ToLower(strings.TrimPrefix(c, "#"))
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	return "#" + h
}

// ParseHexColor converts a valid hex color into an opaque RGBA value.
func ParseHexColor(c string) (color.RGBA, error) {
	if !ValidHexColor(c) {
		return color.RGBA{}, paramErr("color", "value", fmt.Sprintf("%q is not a hex color", c))
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(CanonicalHex(c), "#"), 16, 32)
	if err != nil {
		return color.RGBA{}, paramErr("color", "value", err.Error())
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
