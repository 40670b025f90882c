package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/kizuna/internal/middleware"
	"github.com/hitoshi/kizuna/internal/model"
)

// DefaultMaxUploadBytes はアップロードサイズ上限の既定値（10MiB）。
const DefaultMaxUploadBytes int64 = 10 << 20

// readUpload はmultipartフォームからfieldのファイルを読み出す。
// 失敗時は400または413を書き込みfalseを返す。呼び出し側はfileをCloseすること。
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w, maxBytes)
			return nil, nil, false
		}
		writeValidationError(w, "Invalid multipart form")
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeValidationError(w, fmt.Sprintf("%s is required", field))
		return nil, nil, false
	}
	return file, header, true
}

func writeTooLarge(w http.ResponseWriter, maxBytes int64) {
	middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, &model.APIError{
		Code:     "PAYLOAD_TOO_LARGE",
		Message:  fmt.Sprintf("Media file exceeds %d bytes", maxBytes),
		Category: model.CategoryValidation,
	})
}
