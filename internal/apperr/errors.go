// Package apperr holds the sentinel errors controllers return for rejected actions.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrBlankInput   = errors.New("blank input")
	ErrBusy         = errors.New("action already in flight")
	ErrNoReviewItem = errors.New("no item under review")
)
