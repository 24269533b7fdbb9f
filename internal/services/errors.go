package services

import "errors"

var (
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrVerificationExpired  = errors.New("verification code expired")
	ErrVerificationMismatch = errors.New("verification code mismatch")
	ErrStorageUnavailable   = errors.New("storage service is not configured")
	ErrCacheUnavailable     = errors.New("cache is not configured")
	ErrDownloadTooLarge     = errors.New("download exceeds size limit")
)
