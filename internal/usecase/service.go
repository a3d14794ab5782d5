package usecase

import (
	"fmt"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
)

// wrapRepoError classifies a repository failure the same way across services:
// infrastructure trouble becomes retryable, everything else is returned as-is
// so callers can still match the sentinel.
func wrapRepoError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if apperrors.IsTransient(err) {
		return apperrors.NewRetryable(err, message, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}
