package basket

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBasket is returned by CheckMargin and Deploy before any network call.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrBusy is returned while a margin check or deploy is in flight.
	ErrBusy = errors.New("basket operation already in flight")
	// ErrGroupNotFound is returned by RemoveGroup for an unknown group id.
	ErrGroupNotFound = errors.New("leg group not found")
)

// ValidationError rejects a malformed order before it reaches the basket.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order %s: %s", e.Field, e.Reason)
}

type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for basket of %d orders", e.Index, e.Len)
}

// RemoteError wraps a failed margin, deploy or status call. Message is the
// backend's own error text when it supplied one.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// httpStatuser is implemented by gateway errors that carry an HTTP status.
type httpStatuser interface {
	HTTPStatus() int
}

func asRemoteError(op string, err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	re = &RemoteError{Op: op, Message: err.Error(), Err: err}
	var hs httpStatuser
	if errors.As(err, &hs) {
		re.StatusCode = hs.HTTPStatus()
	}
	return re
}
