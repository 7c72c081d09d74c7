package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) so
// registry services can translate them into coded domain errors:
// - ErrNotFound: no row/entry for the key
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrAlreadyUsed: a one-way flag was already set
// - ErrInsufficient: a debit would take a balance below zero
// - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInsufficient = errors.New("insufficient")
	ErrUnavailable  = errors.New("unavailable")
)
