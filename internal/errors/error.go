// Package errors provides custom error types for cart-related operations.
package errors

import "errors"

var ErrInvalidInput = errors.New("invalid input")
var ErrInvalidID = errors.New("invalid product id")

var ErrFetchFailed = errors.New("failed to fetch product")
var ErrCircuitOpen = errors.New("catalog temporarily unavailable")

var ErrItemNotFound = errors.New("cart item not found")

var ErrPersistenceFailed = errors.New("failed to persist cart")
var ErrKeyNotFound = errors.New("key not found")
