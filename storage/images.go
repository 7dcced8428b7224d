package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/net/html"

	"github.com/devlog/devblog/utils"
)

// Object key prefixes. An image object moves temp -> resized and, once its
// referencing content is saved, the original is promoted under content/.
// No object ever transitions backward.
const (
	TempPrefix    = "temp/"
	ResizedPrefix = "resized/"
	ContentPrefix = "content/"
)

const (
	maxThumbWidth  = 800
	maxThumbHeight = 600
	jpegQuality    = 80
)

// ImageManager drives the storage lifecycle of content images: upload grants,
// server-side resize, promotion of referenced uploads, and orphan deletion.
// Promotion and deletion are not serialized against concurrent edits of the
// same post; racing edits can wrongly delete or retain an object.
type ImageManager struct {
	store     ObjectStore
	cdnDomain string
}

// NewImageManager wires an ObjectStore and the CDN domain that serves it.
func NewImageManager(store ObjectStore, cdnDomain string) *ImageManager {
	return &ImageManager{store: store, cdnDomain: strings.TrimSuffix(cdnDomain, "/")}
}

// PresignUpload issues a time-limited grant for uploading one image to the
// temporary prefix. The returned key is temp/<uuid><original extension>.
// Nothing validates the uploaded bytes; the signed URL's constraints are the
// only trust boundary at this stage.
func (m *ImageManager) PresignUpload(fileName, fileType string, expires time.Duration) (presignedURL, key string, err error) {
	ext := path.Ext(fileName)
	key = TempPrefix + uuid.NewString() + ext

	presignedURL, err = m.store.PresignPut(key, fileType, expires)
	if err != nil {
		return "", "", err
	}
	return presignedURL, key, nil
}

// Resize downloads a temporary object, produces a thumbnail bounded by
// 800x600 preserving aspect ratio, re-encodes it in the original format, and
// uploads it under resized/ keeping the filename. Returns the public CDN URL.
// Any decode or storage failure returns an error and no URL.
func (m *ImageManager) Resize(key string) (string, error) {
	body, contentType, err := m.store.Get(key)
	if err != nil {
		return "", fmt.Errorf("download original: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	img = thumbnail(img, maxThumbWidth, maxThumbHeight)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return "", fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", format, err)
	}

	resizedKey := ResizedPrefix + path.Base(key)
	if err := m.store.Put(resizedKey, buf.Bytes(), contentType); err != nil {
		return "", fmt.Errorf("upload resized image: %w", err)
	}

	return m.cdnDomain + "/" + resizedKey, nil
}

// ExtractImageKeys parses content as HTML and collects every <img> source
// under the CDN domain, stripped down to its object key. The result is a
// deduplicated set; order carries no meaning.
func (m *ImageManager) ExtractImageKeys(content string) map[string]bool {
	keys := make(map[string]bool)
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return keys
	}

	prefix := m.cdnDomain + "/"

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, attr := range n.Attr {
				if attr.Key == "src" && strings.HasPrefix(attr.Val, prefix) {
					keys[strings.TrimPrefix(attr.Val, prefix)] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return keys
}

// PromoteTempImages copies the temporary original of every resized/ key the
// content references to the permanent content/ prefix, then removes the
// temporary copy. A missing temporary object means the image was already
// migrated by an earlier save and is silently skipped.
func (m *ImageManager) PromoteTempImages(content string) {
	for key := range m.ExtractImageKeys(content) {
		if !strings.HasPrefix(key, ResizedPrefix) {
			continue
		}
		filename := path.Base(key)
		tempKey := TempPrefix + filename
		finalKey := ContentPrefix + filename

		if err := m.store.Copy(tempKey, finalKey); err != nil {
			if errors.Is(err, ErrNoSuchKey) {
				utils.Sugar.Debugf("temp image already migrated: %s", tempKey)
			} else {
				utils.Sugar.Errorf("promote image %s: %v", tempKey, err)
			}
			continue
		}
		if err := m.store.Delete(tempKey); err != nil {
			utils.Sugar.Warnf("delete temp image %s: %v", tempKey, err)
		}
	}
}

// DeleteUnusedImages removes every image referenced by oldContent but absent
// from newContent: the resized object and, when its prefix-swapped content/
// counterpart differs, the promoted original too. Failures are logged and
// swallowed; cleanup is best-effort and never fails the save that triggered
// it. A key present in newContent's reference set is never deleted.
func (m *ImageManager) DeleteUnusedImages(oldContent, newContent string) {
	oldKeys := m.ExtractImageKeys(oldContent)
	newKeys := m.ExtractImageKeys(newContent)

	toDelete := utils.StringSetDiff(oldKeys, newKeys)
	if len(toDelete) == 0 {
		return
	}

	for _, key := range toDelete {
		resizedKey := key
		originalKey := strings.Replace(key, ResizedPrefix, ContentPrefix, 1)

		targets := []string{resizedKey}
		if originalKey != resizedKey {
			targets = append(targets, originalKey)
		}

		for _, target := range targets {
			if err := m.store.Delete(target); err != nil {
				if errors.Is(err, ErrNoSuchKey) {
					utils.Sugar.Infof("image already gone: %s", target)
				} else {
					utils.Sugar.Errorf("delete image %s: %v", target, err)
				}
				continue
			}
			utils.Sugar.Infof("deleted unreferenced image: %s", target)
		}
	}
}

// thumbnail scales img down to fit within maxW x maxH preserving aspect
// ratio. Images already inside the bounds are returned unchanged.
func thumbnail(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
