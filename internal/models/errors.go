package models

import "errors"

var (
	// ErrEmptySelection is returned when an order is placed without any items.
	ErrEmptySelection = errors.New("empty selection")

	// ErrInvalidStatus is returned when a status value is outside the four-element enum.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrAlreadyTerminal is returned when advancing an order that is already delivered.
	ErrAlreadyTerminal = errors.New("order already delivered")

	// ErrConflict is returned when a conditional status update loses a race:
	// the stored status no longer matches the expected prior status.
	ErrConflict = errors.New("order status changed concurrently")

	ErrNotFound    = errors.New("order not found")
	ErrPersistence = errors.New("persistence failure")
	ErrDispatch    = errors.New("notification dispatch failure")
)
