package controllers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
)

const uploadFieldName = "arquivo"

func openUploadedFile(r *http.Request, maxUploadMB int) (multipart.File, *multipart.FileHeader, error) {
	if maxUploadMB <= 0 {
		maxUploadMB = 5
	}
	limit := int64(maxUploadMB) << 20

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart payload")
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("file field %q is required", uploadFieldName))
	}
	if header.Size > limit {
		file.Close()
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("file exceeds the %dMB upload limit", maxUploadMB))
	}
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		file.Close()
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "only image uploads are accepted")
	}
	return file, header, nil
}
