package domain

import "errors"

var (
	ErrEmptyBook   = errors.New("order book side is empty")
	ErrNotFound    = errors.New("not found")
	ErrUnknownBook = errors.New("unknown order book")
	ErrBadRecord   = errors.New("malformed book record")
)
