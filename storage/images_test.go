package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCDN = "https://cdn.example.com"

type memObject struct {
	body        []byte
	contentType string
}

// memStore is an in-memory ObjectStore for tests.
type memStore struct {
	objects  map[string]memObject
	presigns []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}}
}

func (m *memStore) PresignPut(key, contentType string, expires time.Duration) (string, error) {
	m.presigns = append(m.presigns, key)
	return fmt.Sprintf("https://bucket.s3.amazonaws.com/%s?X-Amz-Expires=%d", key, int(expires.Seconds())), nil
}

func (m *memStore) Get(key string) ([]byte, string, error) {
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNoSuchKey, key)
	}
	return obj.body, obj.contentType, nil
}

func (m *memStore) Put(key string, body []byte, contentType string) error {
	m.objects[key] = memObject{body: body, contentType: contentType}
	return nil
}

func (m *memStore) Copy(srcKey, dstKey string) error {
	obj, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchKey, srcKey)
	}
	m.objects[dstKey] = obj
	return nil
}

func (m *memStore) Delete(key string) error {
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchKey, key)
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) has(key string) bool {
	_, ok := m.objects[key]
	return ok
}

func imgTag(key string) string {
	return fmt.Sprintf(`<p>text</p><img src="%s/%s">`, testCDN, key)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestExtractImageKeys(t *testing.T) {
	m := NewImageManager(newMemStore(), testCDN)

	content := imgTag("resized/a.png") +
		imgTag("resized/b.png") +
		imgTag("resized/a.png") + // duplicate
		`<img src="https://elsewhere.example.com/resized/c.png">` +
		`<img>` // no src

	keys := m.ExtractImageKeys(content)
	assert.Equal(t, map[string]bool{
		"resized/a.png": true,
		"resized/b.png": true,
	}, keys)

	// Idempotent and order-independent: same set again, and reversed input
	assert.Equal(t, keys, m.ExtractImageKeys(content))
	reversed := imgTag("resized/b.png") + imgTag("resized/a.png")
	assert.Equal(t, keys, m.ExtractImageKeys(reversed))
}

func TestExtractImageKeysEmptyAndInvalid(t *testing.T) {
	m := NewImageManager(newMemStore(), testCDN)

	assert.Empty(t, m.ExtractImageKeys(""))
	assert.Empty(t, m.ExtractImageKeys("plain text, no markup"))
	// html.Parse is lenient; broken markup should still not panic
	assert.Empty(t, m.ExtractImageKeys("<div><img src="))
}

func TestPresignUpload(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	url, key, err := m.PresignUpload("photo.jpg", "image/jpeg", 600*time.Second)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, TempPrefix), "key %q should be under temp/", key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), "key %q should keep the extension", key)
	assert.Contains(t, url, "X-Amz-Expires=600")
	assert.Equal(t, []string{key}, store.presigns)

	// Distinct grants must never collide on the object key
	_, key2, err := m.PresignUpload("photo.jpg", "image/jpeg", 600*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestResizeBoundsAndFormat(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("temp/big.png", pngBytes(t, 1600, 1200), "image/png"))

	url, err := m.Resize("temp/big.png")
	require.NoError(t, err)
	assert.Equal(t, testCDN+"/resized/big.png", url)

	body, contentType, err := store.Get("resized/big.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	img, format, err := image.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.LessOrEqual(t, img.Bounds().Dx(), 800)
	assert.LessOrEqual(t, img.Bounds().Dy(), 600)
	// 4:3 input should keep its aspect ratio
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestResizeSmallImageKeepsSize(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("temp/small.png", pngBytes(t, 400, 300), "image/png"))

	_, err := m.Resize("temp/small.png")
	require.NoError(t, err)

	body, _, err := store.Get("resized/small.png")
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestResizeFailures(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	// missing object
	_, err := m.Resize("temp/missing.png")
	assert.Error(t, err)

	// bytes that are not an image
	require.NoError(t, store.Put("temp/garbage.png", []byte("not an image"), "image/png"))
	_, err = m.Resize("temp/garbage.png")
	assert.Error(t, err)
	assert.False(t, store.has("resized/garbage.png"))
}

func TestPromoteTempImages(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("temp/abc.png", pngBytes(t, 10, 10), "image/png"))

	content := imgTag("resized/abc.png")
	m.PromoteTempImages(content)

	assert.True(t, store.has("content/abc.png"), "original should be promoted to content/")
	assert.False(t, store.has("temp/abc.png"), "temporary copy should be removed")

	// Second run: temp object is gone, treated as already migrated
	m.PromoteTempImages(content)
	assert.True(t, store.has("content/abc.png"))
}

func TestPromoteIgnoresNonResizedKeys(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("temp/abc.png", pngBytes(t, 10, 10), "image/png"))

	m.PromoteTempImages(imgTag("content/abc.png"))
	assert.True(t, store.has("temp/abc.png"), "non-resized reference must not trigger promotion")
	assert.False(t, store.has("content/abc.png"))
}

func TestDeleteUnusedImages(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	for _, key := range []string{"resized/a.png", "content/a.png", "resized/b.png", "content/b.png"} {
		require.NoError(t, store.Put(key, pngBytes(t, 10, 10), "image/png"))
	}

	oldContent := imgTag("resized/a.png") + imgTag("resized/b.png")
	newContent := imgTag("resized/b.png")

	m.DeleteUnusedImages(oldContent, newContent)

	assert.False(t, store.has("resized/a.png"))
	assert.False(t, store.has("content/a.png"))
	assert.True(t, store.has("resized/b.png"), "keys still referenced must never be deleted")
	assert.True(t, store.has("content/b.png"))
}

func TestDeleteUnusedImagesAllRemoved(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("resized/abc.png", pngBytes(t, 10, 10), "image/png"))
	require.NoError(t, store.Put("content/abc.png", pngBytes(t, 10, 10), "image/png"))

	// Post updated to contain no image references at all
	m.DeleteUnusedImages(imgTag("resized/abc.png"), "no images here")

	assert.False(t, store.has("resized/abc.png"))
	assert.False(t, store.has("content/abc.png"))
}

func TestDeleteUnusedImagesMissingKeysSwallowed(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	// Nothing in the store at all; must not panic or error out
	m.DeleteUnusedImages(imgTag("resized/gone.png"), "")
}

func TestDeleteUnusedImagesNoChanges(t *testing.T) {
	store := newMemStore()
	m := NewImageManager(store, testCDN)

	require.NoError(t, store.Put("resized/a.png", pngBytes(t, 10, 10), "image/png"))

	content := imgTag("resized/a.png")
	m.DeleteUnusedImages(content, content)

	assert.True(t, store.has("resized/a.png"))
}
