package refdata

import "errors"

var (
	ErrNotFound           = errors.New("entity not found")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrDuplicateTicker    = errors.New("duplicate ticker")
	ErrProtectedEntity    = errors.New("entity is protected")
	ErrInvalidDayOfMonth  = errors.New("invalid day of month")
	ErrInvalidParent      = errors.New("invalid parent")
	ErrCategoryMismatch   = errors.New("fundamental category mismatch")
	ErrNotAssociated      = errors.New("fundamental is not associated")
	ErrInvalidProvider    = errors.New("invalid data provider name")
	ErrInvalidTimeZone    = errors.New("invalid time zone")
	ErrInvalidCountryCode = errors.New("invalid country code")
)
