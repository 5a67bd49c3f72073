package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

// Attachment prefixes used as the first segment of blob references.
const (
	AttachmentAssignments = "assignments"
	AttachmentSubmissions = "submissions"
)

type blobStore interface {
	SaveStream(ref string, r io.Reader) (string, error)
	Open(ref string) (*os.File, error)
	Delete(ref string) error
}

type urlSigner interface {
	Sign(ref string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// FileService stores attachments behind opaque references and issues signed
// download links for them.
type FileService struct {
	store        blobStore
	signer       urlSigner
	maxSize      int64
	downloadBase string
	logger       *zap.Logger
}

// NewFileService constructs a FileService. downloadBase is the URL prefix
// that signed tokens are appended to.
func NewFileService(store blobStore, signer urlSigner, maxSize int64, downloadBase string, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		store:        store,
		signer:       signer,
		maxSize:      maxSize,
		downloadBase: strings.TrimRight(downloadBase, "/"),
		logger:       logger,
	}
}

// Store saves the upload under prefix and returns its reference.
func (s *FileService) Store(ctx context.Context, prefix string, upload *models.FileUpload) (string, error) {
	if upload == nil || upload.Content == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if s.maxSize > 0 && upload.Size > s.maxSize {
		return "", appErrors.ErrPayloadTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "upload cancelled")
	}

	ref := path.Join(prefix, uuid.NewString(), sanitizeFilename(upload.Filename))
	reader := upload.Content
	if s.maxSize > 0 {
		reader = io.LimitReader(upload.Content, s.maxSize)
	}
	stored, err := s.store.SaveStream(ref, reader)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	return stored, nil
}

// Remove deletes a stored blob, logging failures.
func (s *FileService) Remove(ref string) {
	if ref == "" {
		return
	}
	if err := s.store.Delete(ref); err != nil {
		s.logger.Warn("failed to remove orphaned upload", zap.String("ref", ref), zap.Error(err))
	}
}

// URL returns a signed download link for ref, or "" when ref is empty or
// cannot be signed.
func (s *FileService) URL(ref *string) string {
	if ref == nil || *ref == "" {
		return ""
	}
	token, _, err := s.signer.Sign(*ref)
	if err != nil {
		s.logger.Warn("failed to sign download url", zap.String("ref", *ref), zap.Error(err))
		return ""
	}
	return s.downloadBase + "/" + token
}

// Open resolves a signed token to a readable blob and its display name.
func (s *FileService) Open(token string) (*os.File, string, error) {
	ref, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.store.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidRef) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return file, path.Base(ref), nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}
