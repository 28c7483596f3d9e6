package domain

import "errors"

var (
	ErrBlocked            = errors.New("identity is blocked")
	ErrInvalidConfigRange = errors.New("config value out of range")
)

func IsBlockedError(err error) bool {
	return errors.Is(err, ErrBlocked)
}

func IsInvalidConfigRange(err error) bool {
	return errors.Is(err, ErrInvalidConfigRange)
}
