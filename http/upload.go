package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/mwrks/plume"
)

// MaxImageSize is the upload ceiling for a single image. The limit applies
// to the file bytes, not the surrounding multipart framing, so an image of
// exactly this size is accepted.
const MaxImageSize = 5 << 20

// multipartOverhead covers boundaries and part headers when capping the
// request body as a whole.
const multipartOverhead = 16 << 10

const imageFormField = "image"

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// readImageUpload pulls the image out of a multipart form. The whole file
// is buffered in memory; a body cap stops the buffer growing much past the
// limit and the file bytes are then checked against MaxImageSize exactly.
// The content type is sniffed from the bytes, not trusted from the client
// headers.
func readImageUpload(w http.ResponseWriter, r *http.Request) (plume.ImageUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+multipartOverhead)

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "File size too large. Maximum size is 5MB")
		}
		return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "No image file provided")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "File size too large. Maximum size is 5MB")
		}
		return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "No image file provided")
	}
	if len(data) == 0 {
		return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "No image file provided")
	}
	if int64(len(data)) > MaxImageSize {
		return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "File size too large. Maximum size is 5MB")
	}

	contentType := http.DetectContentType(data)
	if _, ok := allowedImageTypes[contentType]; !ok {
		return plume.ImageUpload{}, plume.E(plume.ErrInvalidInput, "Only JPEG, PNG, GIF, and WebP images are allowed")
	}

	return plume.ImageUpload{
		Data:        data,
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}
