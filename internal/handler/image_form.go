package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/snaplist/internal/model"
	"github.com/hitoshi/snaplist/internal/storage"
)

// imageFieldName はmultipartフォームの画像フィールド名。
const imageFieldName = "image"

// multipartOverhead はmultipartの境界やヘッダー分として画像上限に上乗せするバイト数。
const multipartOverhead = 1 << 20

// uploadedImage はmultipartフォームから取り出した画像。
type uploadedImage struct {
	Data     []byte
	MIMEType string
	Filename string
}

// readImageForm はリクエストのmultipartフォームから画像を読み出す。
// 本文が上限を超える場合、画像が無い場合はInvalidInputを返す。
// MIMEタイプとサイズの検証は呼び出し側でstorage.ValidateImageを使う。
func readImageForm(w http.ResponseWriter, r *http.Request) (*uploadedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+multipartOverhead)

	if err := r.ParseMultipartForm(storage.MaxImageSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, model.NewInvalidInputError("Image must be 5MB or smaller")
		}
		return nil, model.NewInvalidInputError("No image provided")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(imageFieldName)
	if err != nil {
		return nil, model.NewInvalidInputError("No image provided")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageSize+1))
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to read image: %w", err))
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	return &uploadedImage{
		Data:     data,
		MIMEType: mimeType,
		Filename: header.Filename,
	}, nil
}
