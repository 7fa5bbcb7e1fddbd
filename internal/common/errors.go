// Package common defines shared sentinel errors and small byte helpers used
// across PraxisDoku packages. Callers should use errors.Is to match the
// error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
)
