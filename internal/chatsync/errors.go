package chatsync

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUploadFailure       = errors.New("upload failed")
	ErrWriteFailure        = errors.New("feed write failed")
	ErrDeviceCapability    = errors.New("device capability unavailable")
	ErrSubscriptionFailure = errors.New("subscription failed")
	ErrSessionClosed       = errors.New("session closed")
	ErrNoConversation      = errors.New("no conversation open")
	ErrMessageNotFound     = errors.New("message not found")
)

// Retryable reports whether the user can re-press send for err.
func Retryable(err error) bool {
	return errors.Is(err, ErrWriteFailure) || errors.Is(err, ErrUploadFailure)
}
