package httpserver

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatflow/internal/config"
	"chatflow/internal/domain"
)

type uploadResponse struct {
	FileURL     string             `json:"fileUrl"`
	FileName    string             `json:"fileName"`
	MessageType domain.MessageType `json:"messageType"`
	MimeType    string             `json:"mimeType"`
	Size        int64              `json:"size"`
}

// UploadRoutes returns a sub-router mounted at /api/uploads.
//   - POST /          stores a multipart "file" and classifies it as image or file
//   - GET /{filename} serves a stored file
func UploadRoutes(cfg *config.Config) chi.Router {
	r := chi.NewRouter()
	maxBytes := cfg.MaxUploadMB << 20

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse multipart form"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
			return
		}
		defer file.Close()
		if header.Size > maxBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}

		mtype, err := mimetype.DetectReader(file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			writeError(w, r, err)
			return
		}

		kind := domain.MessageFile
		if inlineImage(mtype.String()) {
			kind = domain.MessageImage
		}
		// The stored extension follows the sniffed type, never the client's name.
		ext := mtype.Extension()
		if ext == "" {
			ext = ".bin"
		}
		filename := uuid.NewString() + ext

		out, err := os.Create(filepath.Join(cfg.UploadDir, filename))
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer out.Close()

		n, err := io.Copy(out, file)
		if err != nil {
			writeError(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).Debug().Str("file", filename).Str("mime", mtype.String()).Msg("upload stored")
		writeJSON(w, http.StatusCreated, uploadResponse{
			FileURL:     "/api/uploads/" + filename,
			FileName:    filepath.Base(header.Filename),
			MessageType: kind,
			MimeType:    mtype.String(),
			Size:        n,
		})
	})

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" || filepath.Base(filename) != filename {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid filename"})
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if !inlineImage(mime.TypeByExtension(filepath.Ext(filename))) {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", "attachment")
		}
		http.ServeFile(w, r, filepath.Join(cfg.UploadDir, filename))
	})

	return r
}

// inlineImage reports whether a type may be rendered in place. SVG can carry
// script, so it is served as a download like any other file.
func inlineImage(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(strings.ToLower(base))
	return strings.HasPrefix(base, "image/") && base != "image/svg+xml"
}
