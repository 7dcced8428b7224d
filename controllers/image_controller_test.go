package controllers

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignUpload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/images/presign", "", map[string]interface{}{
		"file_name": "photo.jpg",
		"file_type": "image/jpeg",
		"file_size": 1024,
	})
	requireStatus(t, w, http.StatusOK)

	var data struct {
		PresignedURL string `json:"presigned_url"`
		S3Key        string `json:"s3_key"`
	}
	decodeData(t, w, &data)
	assert.True(t, strings.HasPrefix(data.S3Key, "temp/"), "key %q", data.S3Key)
	assert.True(t, strings.HasSuffix(data.S3Key, ".jpg"), "key %q", data.S3Key)
	assert.Contains(t, data.PresignedURL, "X-Amz-Expires=600")
}

func TestPresignUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/images/presign", "", map[string]interface{}{
		"file_name": "huge.jpg",
		"file_type": "image/jpeg",
		"file_size": 11 * 1024 * 1024,
	})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, 40042, decode(t, w).Code)
}

func TestPresignUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/images/presign", "", map[string]interface{}{
		"file_name": "run.sh",
		"file_type": "application/x-sh",
		"file_size": 128,
	})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, 40043, decode(t, w).Code)
}

func TestPresignUploadRequiresMetadata(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/images/presign", "", map[string]interface{}{
		"file_name": "photo.jpg",
	})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, 40041, decode(t, w).Code)
}

func TestResizeImage(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1024, 768))))
	env.store.objects["temp/pic.png"] = buf.Bytes()

	w := env.do(t, "POST", "/api/v1/images/resize", "", map[string]interface{}{
		"s3_key": "temp/pic.png",
	})
	requireStatus(t, w, http.StatusOK)

	var data struct {
		ImageURL string `json:"image_url"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, testCDN+"/resized/pic.png", data.ImageURL)
	assert.True(t, env.store.has("resized/pic.png"))
}

func TestResizeMissingObject(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/images/resize", "", map[string]interface{}{
		"s3_key": "temp/nope.png",
	})
	requireStatus(t, w, http.StatusInternalServerError)

	env2 := newTestEnv(t)
	w = env2.do(t, "POST", "/api/v1/images/resize", "", map[string]interface{}{"s3_key": " "})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, 40044, decode(t, w).Code)
}
