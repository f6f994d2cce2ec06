package settingsgateway

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDuplicatePath     = errors.New("duplicate schema path")
	ErrUnknownPath       = errors.New("unknown schema path")
	ErrNoProvider        = errors.New("no provider configured")
	ErrUnsupportedScheme = errors.New("unsupported provider scheme")
	ErrNotImplemented    = errors.New("not implemented")
)
