package service

import "errors"

var (
	// ErrValidation marks a request that can never succeed, so it must not be retried.
	ErrValidation      = errors.New("invalid publish request")
	ErrAccountNotFound = errors.New("account not found")
)
