package api

import "errors"

var (
	ErrNotFound    = errors.New("message not found")
	ErrBadResponse = errors.New("malformed response from message store")
)
