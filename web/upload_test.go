package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	h, _ := newTestHandler(t)

	body, contentType := multipartUpload(t, "cat.png", "image/png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	h.Upload(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	resp := decodeBody(t, res)
	assert.Equal(t, "cat.png", resp["filename"])
	assert.Equal(t, "image", resp["type"])
	assert.Equal(t, float64(len("png bytes")), resp["size"])

	url, _ := resp["url"].(string)
	require.True(t, strings.HasPrefix(url, "/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), "the original extension is kept")

	// the stored file carries the uploaded bytes under the served name
	stored, err := os.ReadFile(filepath.Join(h.Cfg.UploadsConfig.Dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), stored)
}

func TestUploadKindByContentType(t *testing.T) {
	h, _ := newTestHandler(t)

	body, contentType := multipartUpload(t, "clip.mp4", "video/mp4", []byte("mp4 bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	h.Upload(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "video", decodeBody(t, res)["type"])
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	h, _ := newTestHandler(t)

	body, contentType := multipartUpload(t, "run.exe", "application/octet-stream", []byte("nope"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	h.Upload(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "File type not allowed", decodeBody(t, res)["error"])

	// nothing may land on disk for a rejected upload
	entries, err := os.ReadDir(h.Cfg.UploadsConfig.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRequiresFile(t *testing.T) {
	h, _ := newTestHandler(t)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	h.Upload(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "No file uploaded", decodeBody(t, res)["error"])
}
