package storage_test

import (
	"strings"
	"testing"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/storage"
)

func openImages(t *testing.T) *storage.Images {
	as := assert.New(t)
	images, err := storage.Open(t.Context(), "file://"+t.TempDir())
	as.NoError(err)
	t.Cleanup(func() { _ = images.Close() })
	return images
}

func TestUploadAndGet(t *testing.T) {
	as := assert.New(t)
	images := openImages(t)

	payload := "\xff\xd8\xff\xdbjacket-front"
	key, err := images.Upload(
		as.Context(), "Front Photo.JPG", strings.NewReader(payload),
	)
	as.NoError(err)
	as.True(strings.HasPrefix(key, "items/"))
	as.True(strings.HasSuffix(key, ".jpg"))

	data, contentType, err := images.Get(as.Context(), key)
	as.NoError(err)
	as.Equal(payload, string(data))
	as.Equal("image/jpeg", contentType)
}

func TestUploadKeysAreUnique(t *testing.T) {
	as := assert.New(t)
	images := openImages(t)

	first, err := images.Upload(
		as.Context(), "a.png", strings.NewReader("one"),
	)
	as.NoError(err)
	second, err := images.Upload(
		as.Context(), "a.png", strings.NewReader("two"),
	)
	as.NoError(err)
	as.NotEqual(first, second)
}

func TestGetMissing(t *testing.T) {
	as := assert.New(t)
	images := openImages(t)

	_, _, err := images.Get(as.Context(), "items/nope.jpg")
	as.Error(err)
}

func TestResolveFallsBackToKey(t *testing.T) {
	as := assert.New(t)
	images := openImages(t)

	key, err := images.Upload(
		as.Context(), "b.png", strings.NewReader("pixels"),
	)
	as.NoError(err)

	// a local bucket cannot sign URLs without a base URL configured, so
	// the bare key comes back
	as.Equal(key, images.Resolve(key))
}
