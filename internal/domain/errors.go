package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPasswordRequired   = errors.New("room password required")
	ErrInvalidPassword    = errors.New("invalid room password")
	ErrNotHost            = errors.New("only the host can do this")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
