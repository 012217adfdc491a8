package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/storage"
)

const maxUpload = 8 << 20

// POST /assets  multipart file=<image>
//
// Stores question media under a fresh key and returns the URL to put in a
// question's image or justification_image field.
func UploadAssetHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		name := path.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
		if name == "." || name == "/" {
			name = "upload.bin"
		}
		key, err := bs.Put(r.Context(), "questions/"+uuid.NewString()+"/"+name, f)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"key": key, "url": bs.URL(key)})
	}
}

// GET /assets/*
func GetAssetHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		rc, err := bs.Get(r.Context(), key)
		if err != nil {
			respondError(w, err)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	}
}
