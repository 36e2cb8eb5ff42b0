package medium

import "errors"

var (
	ErrNotFound          = errors.New("medium: object not found")
	ErrExists            = errors.New("medium: object already exists")
	ErrFieldsUnsupported = errors.New("medium: fields unsupported")
	ErrInvalidField      = errors.New("medium: invalid field name")
	ErrInvalidID         = errors.New("medium: invalid object id")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
