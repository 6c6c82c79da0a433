package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrProvider          = errors.New("provider error")
	ErrLockHeld          = errors.New("lock already held")
)
