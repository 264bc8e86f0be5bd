package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalParams_NormalizesDefaults(t *testing.T) {
	implicit := CanonicalParams([]Operation{Thumbnail{Width: Int(10), Height: Int(20)}}, false)
	explicit := CanonicalParams([]Operation{&Thumbnail{Width: Int(10), Height: Int(20), Mode: FitOutbound}}, false)

	assert.Equal(t, implicit, explicit)
	assert.Equal(t, `{"ops":[{"op":"thumbnail","width":10,"height":20,"mode":"outbound"}],"compress":false}`, implicit)
}

func TestCanonicalParams_KeepsOrderAndAbsence(t *testing.T) {
	a := CanonicalParams([]Operation{Resize{Width: Int(5)}, Crop{Width: Int(1), Height: Int(1)}}, false)
	b := CanonicalParams([]Operation{Crop{Width: Int(1), Height: Int(1)}, Resize{Width: Int(5)}}, false)
	assert.NotEqual(t, a, b)

	withHeight := CanonicalParams([]Operation{Resize{Width: Int(5), Height: Int(5)}}, false)
	assert.Contains(t, CanonicalParams([]Operation{Resize{Width: Int(5)}}, false), `"height":null`)
	assert.NotEqual(t, CanonicalParams([]Operation{Resize{Width: Int(5)}}, false), withHeight)
}

func TestImageFingerprint(t *testing.T) {
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	canonical := CanonicalParams([]Operation{Resize{Width: Int(100)}}, false)
	base := ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime)

	assert.Len(t, base, FingerprintLen)
	assert.True(t, ValidFingerprint(base))
	assert.Equal(t, base, ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime), "deterministic")

	mutations := map[string]string{
		"path":     ImageFingerprint("/srv/img/b.jpg", canonical, 92, mtime),
		"params":   ImageFingerprint("/srv/img/a.jpg", CanonicalParams([]Operation{Resize{Width: Int(101)}}, false), 92, mtime),
		"compress": ImageFingerprint("/srv/img/a.jpg", CanonicalParams([]Operation{Resize{Width: Int(100)}}, true), 92, mtime),
		"quality":  ImageFingerprint("/srv/img/a.jpg", canonical, 91, mtime),
		"mtime":    ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime.Add(time.Second)),
	}
	for name, fp := range mutations {
		assert.NotEqual(t, base, fp, "changing %s must change the fingerprint", name)
	}
}

func TestImageFingerprint_Overlays(t *testing.T) {
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	canonical := CanonicalParams([]Operation{Watermark{PosX: Int(0), PosY: Int(0), ImagePath: "mark.png"}}, false)

	plain := ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime)
	v1 := ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime, OverlayStamp("/srv/img/mark.png", mtime))
	v2 := ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime, OverlayStamp("/srv/img/mark.png", mtime.Add(time.Second)))

	assert.NotEqual(t, plain, v1)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, v1, ImageFingerprint("/srv/img/a.jpg", canonical, 92, mtime, OverlayStamp("/srv/img/mark.png", mtime)))
}

func TestPlaceholderFingerprint(t *testing.T) {
	base := PlaceholderFingerprint(PlaceholderLocalRender, 100, 50, "No image", "#f5f5f5", "#cdcdcd", 20)

	assert.Equal(t, base, PlaceholderFingerprint(PlaceholderLocalRender, 100, 50, "No image", "#f5f5f5", "#cdcdcd", 20))
	assert.NotEqual(t, base, PlaceholderFingerprint(PlaceholderRemoteURL, 100, 50, "No image", "#f5f5f5", "#cdcdcd", 20))
	assert.NotEqual(t, base, PlaceholderFingerprint(PlaceholderLocalRender, 101, 50, "No image", "#f5f5f5", "#cdcdcd", 20))
	assert.NotEqual(t, base, PlaceholderFingerprint(PlaceholderLocalRender, 100, 50, "No image!", "#f5f5f5", "#cdcdcd", 20))
	assert.NotEqual(t, base, PlaceholderFingerprint(PlaceholderLocalRender, 100, 50, "No image", "#f5f5f6", "#cdcdcd", 20))
	assert.NotEqual(t, base, PlaceholderFingerprint(PlaceholderLocalRender, 100, 50, "No image", "#f5f5f5", "#cdcdcd", 21))
}

func TestValidFingerprint(t *testing.T) {
	assert.True(t, ValidFingerprint("0123456789abcdef0123456789abcdef"))
	assert.False(t, ValidFingerprint("0123456789ABCDEF0123456789abcdef"))
	assert.False(t, ValidFingerprint("abc"))
	assert.False(t, ValidFingerprint("../3456789abcdef0123456789abcdef"))
}
