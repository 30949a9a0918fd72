package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether err carries the same code
func (e *Error) Is(err error) bool {
	other, ok := err.(*Error)
	return ok && other.Code == e.Code
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrInternalServer = New(1002, "internal server error")
	ErrUnauthorized   = New(1003, "unauthorized")
	ErrForbidden      = New(1004, "forbidden")
	ErrNotFound       = New(1005, "not found")

	// Conversation errors (2xxx)
	ErrConvNotFound     = New(2001, "conversation not found")
	ErrNotAParticipant  = New(2002, "not a participant of this conversation")
	ErrAlreadyMember    = New(2003, "already a member of this conversation")
	ErrNotMember        = New(2004, "not a member of this conversation")
	ErrDirectMembership = New(2005, "membership of a direct conversation is fixed")

	// Message errors (3xxx)
	ErrMessageNotFound = New(3001, "message not found")
	ErrMessageGone     = New(3002, "message has been deleted")
	ErrSeqAllocFailed  = New(3003, "seq allocation failed")
	ErrSendFailed      = New(3004, "message send failed")

	// Notification errors (4xxx)
	ErrNotificationNotFound = New(4001, "notification not found")
	ErrPayloadInvalid       = New(4002, "notification payload invalid")
)
