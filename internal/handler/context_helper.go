package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/middleware"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

const uploadField = "file"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) authz.Actor {
	return middleware.Actor(c)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindPayload decodes a JSON or multipart body into dest.
func bindPayload(c *gin.Context, dest interface{}) error {
	var err error
	if isMultipart(c) {
		err = c.ShouldBind(dest)
	} else {
		err = c.ShouldBindJSON(dest)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
	}
	return nil
}

// uploadFromRequest returns the optional attachment of a multipart request.
// The caller must invoke the returned close function once the upload is consumed.
func uploadFromRequest(c *gin.Context) (*models.FileUpload, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*models.FileUpload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file upload")
	}
	upload := &models.FileUpload{Filename: header.Filename, Size: header.Size, Content: file}
	return upload, func() { _ = file.Close() }, nil
}
