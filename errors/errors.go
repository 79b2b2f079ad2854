package errors

import "fmt"

var (
	ErrValidation       = fmt.Errorf("validation failed")
	ErrNotFound         = fmt.Errorf("record not found")
	ErrForbidden        = fmt.Errorf("operation forbidden")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyMessage     = fmt.Errorf("message needs a body or an attachment")
	ErrMissingReceiver  = fmt.Errorf("message needs a receiver")
	ErrUnknownUser      = fmt.Errorf("user not found in directory")
	ErrConnectionClosed = fmt.Errorf("connection is closed")
)
