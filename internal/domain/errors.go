package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrConstraint         = errors.New("constraint violation")
	ErrStorage            = errors.New("storage failure")
	ErrEmptyLabel         = errors.New("empty label")
	ErrInvalidKind        = errors.New("invalid entity kind")
	ErrInvalidWeight      = errors.New("weight must be between 0 and 5")
	ErrThresholdUndefined = errors.New("no client weights assigned")
)
