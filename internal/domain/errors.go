package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownMode         = errors.New("unknown extraction mode")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrStrategyUnavailable = errors.New("strategy unavailable")
	ErrStrategyTimeout     = errors.New("strategy timed out")
	ErrInvalidOutput       = errors.New("unparsable search output")
	ErrBudgetExceeded      = errors.New("token budget exceeded")
	ErrAllStrategiesFailed = errors.New("all strategies failed")
)
