package domain

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FingerprintLen is the length of a cache fingerprint in hex characters.
const FingerprintLen = 32

type canonicalResize struct {
	Op     OperationKind `json:"op"`
	Width  *int          `json:"width"`
	Height *int          `json:"height"`
}

type canonicalCrop struct {
	Op     OperationKind `json:"op"`
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Width  *int          `json:"width"`
	Height *int          `json:"height"`
}

type canonicalThumbnail struct {
	Op     OperationKind `json:"op"`
	Width  *int          `json:"width"`
	Height *int          `json:"height"`
	Mode   FitMode       `json:"mode"`
}

type canonicalWatermark struct {
	Op     OperationKind `json:"op"`
	PosX   *int          `json:"posX"`
	PosY   *int          `json:"posY"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Mode   FitMode       `json:"mode"`
	Image  string        `json:"image"`
}

type canonicalParams struct {
	Ops      []any `json:"ops"`
	Compress bool  `json:"compress"`
}

// CanonicalParams serializes ops in caller order with a fixed field order per
// operation, so logically equal requests produce equal strings.
func CanonicalParams(ops []Operation, compress bool) string {
	cp := canonicalParams{Ops: make([]any, 0, len(ops)), Compress: compress}
	for _, op := range ops {
		switch o := Concrete(op).(type) {
		case Resize:
			cp.Ops = append(cp.Ops, canonicalResize{OpResize, o.Width, o.Height})
		case Crop:
			cp.Ops = append(cp.Ops, canonicalCrop{OpCrop, o.X, o.Y, o.Width, o.Height})
		case Thumbnail:
			cp.Ops = append(cp.Ops, canonicalThumbnail{OpThumbnail, o.Width, o.Height, o.Mode.Normalize()})
		case Watermark:
			cp.Ops = append(cp.Ops, canonicalWatermark{OpWatermark, o.PosX, o.PosY, o.Width, o.Height, o.Mode.Normalize(), o.ImagePath})
		}
	}
	// Only plain structs, ints, strings and bools: Marshal cannot fail here.
	b, _ := json.Marshal(cp)
	return string(b)
}

// ImageFingerprint derives the cache key of a transformed source image. The
// source modification time is part of the input, so editing the source moves
// every derivative to a new key. overlays carries one stamp per watermark
// file (see OverlayStamp) so that editing an overlay does the same.
func ImageFingerprint(resolvedPath, canonical string, quality int, modTime time.Time, overlays ...string) string {
	parts := []string{
		resolvedPath,
		canonical,
		strconv.Itoa(quality),
		strconv.FormatInt(modTime.UnixNano(), 10),
	}
	return digest(append(parts, overlays...)...)
}

// OverlayStamp identifies one version of a watermark file.
func OverlayStamp(resolvedPath string, modTime time.Time) string {
	return resolvedPath + "@" + strconv.FormatInt(modTime.UnixNano(), 10)
}

// PlaceholderFingerprint derives the cache key of a placeholder from the fields
// that determine its rendered content.
func PlaceholderFingerprint(strategy PlaceholderStrategy, width, height int, text, bg, fg string, textSize int) string {
	return digest(
		string(strategy),
		strconv.Itoa(width),
		strconv.Itoa(height),
		text,
		bg,
		fg,
		strconv.Itoa(textSize),
	)
}

func digest(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// ValidFingerprint reports whether s looks like a cache fingerprint.
func ValidFingerprint(s string) bool {
	if len(s) != FingerprintLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
