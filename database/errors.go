package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/chunkscribe/errors"
)

// IsRetryableError reports whether a database error may clear on retry:
// lost connections and SQLite lock contention.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"driver: bad connection",
		"connection reset",
		"i/o timeout",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id).WithCause(err)
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("A %s with these details already exists.", resource)).WithCause(err)
	}

	appErr := apperrors.DatabaseError(err)
	appErr.Retryable = IsRetryableError(err)
	return appErr
}
