package web

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/types"
)

// Upload handles POST /api/upload. The file lands in the uploads directory
// under a unique name; the response carries the public URL to reference from
// a subsequent send-message. Size and MIME type limits are enforced here, the
// coordinator never sees a rejected upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.Cfg.UploadsConfig.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !h.allowedType(contentType) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}

	if err := os.MkdirAll(h.Cfg.UploadsConfig.Dir, 0o755); err != nil {
		globals.AppLogger.Error("could not create upload dir", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	name := fmt.Sprintf("file-%d-%d%s", time.Now().UnixNano()/int64(time.Millisecond), rand.Intn(1_000_000_000), filepath.Ext(header.Filename))
	dst, err := os.Create(filepath.Join(h.Cfg.UploadsConfig.Dir, name))
	if err != nil {
		globals.AppLogger.Error("could not create upload file", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer dst.Close()
	size, err := io.Copy(dst, file)
	if err != nil {
		globals.AppLogger.Error("could not store upload", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	globals.AppLogger.Info("file uploaded", "name", header.Filename, "type", contentType, "size", size)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": header.Filename,
		"url":      "/uploads/" + name,
		"type":     kindForContentType(contentType),
		"size":     size,
	})
}

func (h *Handler) allowedType(contentType string) bool {
	for _, t := range h.Cfg.UploadsConfig.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

func kindForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return types.KindImage
	case strings.HasPrefix(contentType, "video/"):
		return types.KindVideo
	default:
		return types.KindFile
	}
}
