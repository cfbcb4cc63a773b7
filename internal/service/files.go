package service

import (
	"errors"
	"os"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/upload"
)

// FileStore persists uploads and generated documents and maps them to public URLs.
type FileStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Exists(relPath string) bool
	Delete(relPath string) error
	PublicURL(relPath string) string
	RelativeFromURL(url string) (string, bool)
}

// removeStoredFiles deletes files referenced by public URLs. External URLs are ignored.
func removeStoredFiles(store FileStore, logger *zap.Logger, urls ...string) {
	if store == nil {
		return
	}
	for _, url := range urls {
		rel, ok := store.RelativeFromURL(url)
		if !ok {
			continue
		}
		if err := store.Delete(rel); err != nil {
			logger.Warn("failed to remove stored file", zap.String("path", rel), zap.Error(err))
		}
	}
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, upload.ErrEmpty):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "uploaded file is empty")
	case errors.Is(err, upload.ErrTooLarge):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "uploaded file is too large")
	case errors.Is(err, upload.ErrUnsupported):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "uploaded file type is not allowed")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process upload")
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Validation(err, message)
}
