package chat

import "errors"

// Kind categorizes a domain error so the transport can map it without
// inspecting codes: transient failures are retryable, the rest are not.
type Kind int

const (
	// KindTransient covers backend unavailability; the caller may retry.
	KindTransient Kind = iota
	// KindPermission covers policy rejections ("you can't").
	KindPermission
	// KindValidation covers inputs rejected before any write.
	KindValidation
	// KindNotFound covers operations on ids that no longer exist ("it's gone").
	KindNotFound
)

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeMessageNotFound  = "message_not_found"
	ErrCodeNotMember        = "not_member"
	ErrCodeNotSender        = "not_sender"
	ErrCodeCreatorOnly      = "creator_only"
	ErrCodeCreatorImmovable = "creator_immovable"
	ErrCodeCreatorLeave     = "creator_cannot_leave"
	ErrCodeEmptyPayload     = "empty_payload"
	ErrCodeBadUser          = "bad_user"
	ErrCodeUnsupportedMedia = "unsupported_media"
	ErrCodeBlobTooLarge     = "blob_too_large"
	ErrCodeTransient        = "transient"
)

// Error wraps a kind, code and human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func notFoundError(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func permissionError(code, msg string) *Error {
	return &Error{Kind: KindPermission, Code: code, Message: msg}
}

func validationError(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func transientError(msg string, cause error) *Error {
	return &Error{Kind: KindTransient, Code: ErrCodeTransient, Message: msg, cause: cause}
}

// KindOf extracts the Kind from err, defaulting to transient for errors that
// did not originate in the chat core (driver failures, timeouts).
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// CodeOf extracts the domain error code, or "transient" for foreign errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeTransient
}
