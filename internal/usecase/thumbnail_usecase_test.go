package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

func thumbRequest(source string, ops ...domain.Operation) domain.TransformRequest {
	if len(ops) == 0 {
		ops = []domain.Operation{domain.Thumbnail{Width: domain.Int(50), Height: domain.Int(50)}}
	}
	return domain.NewTransformRequest(source, 0, false, ops...)
}

func TestResolveImage_GeneratesOnceAndReuses(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.jpg", 200, 100, red)
	svc := f.service(t, nil, nil)
	ctx := context.Background()

	first, err := svc.ResolveImage(ctx, thumbRequest("photo.jpg"), nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.RefCached, first.Kind)
	assert.Len(t, first.Fingerprint, domain.FingerprintLen)
	assert.Equal(t, "/thumbnails/"+first.Fingerprint[:2]+"/"+first.Fingerprint+".jpg", first.URL)

	second, err := svc.ResolveImage(ctx, thumbRequest("photo.jpg"), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.engine.opens.Load())

	img, err := imaging.Open(first.Path)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestResolveImage_ConcurrentSameFingerprint(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 300, 300, blue)
	svc := f.service(t, nil, nil)

	const n = 12
	refs := make([]*domain.Reference, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = svc.ResolveImage(context.Background(), thumbRequest("photo.png"), nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, refs[0].Path, refs[i].Path)
	}
	assert.EqualValues(t, 1, f.engine.opens.Load())

	img, err := imaging.Open(refs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())

	entries, err := os.ReadDir(filepath.Dir(refs[0].Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the committed file remains")
}

func TestResolveImage_SourceChangeMovesKey(t *testing.T) {
	f := newFixture(t)
	src := f.image(t, "photo.png", 100, 100, red)
	svc := f.service(t, nil, nil)
	ctx := context.Background()

	before, err := svc.ResolveImage(ctx, thumbRequest("photo.png"), nil)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, later, later))

	after, err := svc.ResolveImage(ctx, thumbRequest("photo.png"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.EqualValues(t, 2, f.engine.opens.Load())
}

func TestResolveImage_OverlayChangeMovesKey(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 100, 100, red)
	mark := f.image(t, "mark.png", 10, 10, blue)
	svc := f.service(t, nil, nil)
	ctx := context.Background()
	req := thumbRequest("photo.png", domain.Watermark{PosX: domain.Int(5), PosY: domain.Int(5), ImagePath: "mark.png"})

	before, err := svc.ResolveImage(ctx, req, nil)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(mark, later, later))

	after, err := svc.ResolveImage(ctx, req, nil)
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.FileExists(t, after.Path)
}

func TestResolveImage_DefaultQuality(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.jpg", 100, 100, red)
	svc := f.service(t, nil, nil)
	ops := []domain.Operation{domain.Resize{Width: domain.Int(10)}}

	implicit, err := svc.ResolveImage(context.Background(), domain.NewTransformRequest("photo.jpg", 0, false, ops...), nil)
	require.NoError(t, err)
	explicit, err := svc.ResolveImage(context.Background(), domain.NewTransformRequest("photo.jpg", 92, false, ops...), nil)
	require.NoError(t, err)

	assert.Equal(t, implicit.Fingerprint, explicit.Fingerprint)
}

func TestResolveImage_MissingSource(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, nil, nil)
	ctx := context.Background()

	ref, err := svc.ResolveImage(ctx, thumbRequest("missing.jpg"), nil)
	require.NoError(t, err)
	assert.Nil(t, ref)

	ref, err = svc.ResolveImage(ctx, thumbRequest("missing.jpg"), &domain.PlaceholderSpec{
		Width: 120, Height: 80, Strategy: domain.PlaceholderClientJS,
	})
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, domain.RefDescriptor, ref.Kind)
	assert.Zero(t, f.engine.opens.Load())
}

func TestResolveImage_InvalidParametersBeforeIO(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 40, 40, red)
	svc := f.service(t, nil, nil)

	_, err := svc.ResolveImage(context.Background(),
		thumbRequest("photo.png", domain.Crop{Width: domain.Int(10)}), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = svc.ResolveImage(context.Background(), domain.NewTransformRequest("photo.png", 101, false), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = svc.ResolveImage(context.Background(), domain.NewTransformRequest("", 0, false), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	assert.Zero(t, f.engine.opens.Load())
}

func TestResolveImage_MissingSourceSkipsOperationValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, nil, nil)
	req := domain.NewTransformRequest("nope.jpg", 0, false, domain.Resize{})

	ref, err := svc.ResolveImage(context.Background(), req, &domain.PlaceholderSpec{Width: 10, Height: 10})
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, domain.RefCached, ref.Kind)
	assert.FileExists(t, ref.Path)

	ref, err = svc.ResolveImage(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestResolveImage_SourceOutsideBasePath(t *testing.T) {
	f := newFixture(t)
	outside := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(80, 80, red), filepath.Join(outside, "secret.png")))
	svc := f.service(t, nil, nil)

	ref, err := svc.ResolveImage(context.Background(), thumbRequest(filepath.Join(outside, "secret.png")), nil)
	require.NoError(t, err)
	assert.Nil(t, ref)

	rel, err := filepath.Rel(f.srcDir, filepath.Join(outside, "secret.png"))
	require.NoError(t, err)
	_, err = svc.ResolveImage(context.Background(), thumbRequest(filepath.ToSlash(rel)), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	assert.Zero(t, f.engine.opens.Load())
}

func TestResolveImage_EngineFailureLeavesNoEntry(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 40, 40, red)
	svc := f.service(t, nil, nil)

	_, err := svc.ResolveImage(context.Background(),
		thumbRequest("photo.png", domain.Crop{X: 30, Y: 30, Width: domain.Int(20), Height: domain.Int(20)}), nil)

	assert.ErrorIs(t, err, domain.ErrEngineFailure)
	entries, _ := os.ReadDir(f.store.Root())
	for _, e := range entries {
		shard, err := os.ReadDir(filepath.Join(f.store.Root(), e.Name()))
		require.NoError(t, err)
		assert.Empty(t, shard)
	}
}

func TestResolveImage_Compression(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 80, 80, red)
	req := domain.NewTransformRequest("photo.png", 0, true, domain.Resize{Width: domain.Int(40)})

	svc := f.service(t, &fakeCompressor{out: []byte("tiny")}, nil)
	ref, err := svc.ResolveImage(context.Background(), req, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", string(data))
}

func TestResolveImage_CompressionFailureKeepsReference(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 80, 80, red)
	req := domain.NewTransformRequest("photo.png", 0, true, domain.Resize{Width: domain.Int(40)})

	svc := f.service(t, &fakeCompressor{err: errors.New("quota exceeded")}, nil)
	ref, err := svc.ResolveImage(context.Background(), req, nil)

	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
	require.NotNil(t, ref)
	img, openErr := imaging.Open(ref.Path)
	require.NoError(t, openErr)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestResolveImage_CompressionErrorKeepsCause(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 80, 80, red)
	req := domain.NewTransformRequest("photo.png", 0, true, domain.Resize{Width: domain.Int(40)})

	svc := f.service(t, &fakeCompressor{err: context.DeadlineExceeded}, nil)
	ref, err := svc.ResolveImage(context.Background(), req, nil)

	require.NotNil(t, ref)
	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveImage_CompressFlagChangesKey(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 80, 80, red)
	svc := f.service(t, nil, nil)
	op := domain.Resize{Width: domain.Int(40)}

	plain, err := svc.ResolveImage(context.Background(), domain.NewTransformRequest("photo.png", 0, false, op), nil)
	require.NoError(t, err)
	compressed, err := svc.ResolveImage(context.Background(), domain.NewTransformRequest("photo.png", 0, true, op), nil)
	require.NoError(t, err)

	assert.NotEqual(t, plain.Fingerprint, compressed.Fingerprint)
}

func TestResolveImage_Mirror(t *testing.T) {
	f := newFixture(t)
	f.image(t, "photo.png", 80, 80, red)
	mirror := &fakeMirror{}
	svc := f.service(t, nil, mirror)

	ref, err := svc.ResolveImage(context.Background(), thumbRequest("photo.png"), nil)
	require.NoError(t, err)
	_, err = svc.ResolveImage(context.Background(), thumbRequest("photo.png"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{ref.Fingerprint[:2] + "/" + ref.Fingerprint + ".png"}, mirror.keys)
}

func TestResolveImage_WebpSourceFallsBackToPNG(t *testing.T) {
	assert.Equal(t, ".png", outputExt("/a/b.webp"))
	assert.Equal(t, ".png", outputExt("/a/noext"))
	assert.Equal(t, ".jpeg", outputExt("/a/B.JPEG"))
}

func TestNewThumbnailUsecase_NilDependencies(t *testing.T) {
	_, err := NewThumbnailUsecase(Options{}, nil, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNilDependency)
}
