package models

import "errors"

// Storage-level sentinels. Services translate them into apperrors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)
