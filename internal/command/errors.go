package command

import "errors"

var (
	// ErrUserNotFound is returned when a command names an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidArgument is returned for missing command inputs.
	ErrInvalidArgument = errors.New("invalid argument")
)
