// Package domainerrors carries the ledger's error taxonomy.
//
// Every failure a caller can observe from a registry operation is an *Error with
// a stable Code. Transports map codes to status values; services and tests match
// on codes with Is/HasCode or, for the exported sentinels, with errors.Is.
package domainerrors

import "errors"

// Code identifies a class of failure independent of its message.
type Code string

const (
	// Ledger rejections.
	CodeUnauthorized        Code = "unauthorized"
	CodeDuplicateIssuance   Code = "duplicate_issuance"
	CodeTransferDisabled    Code = "transfer_disabled"
	CodeAlreadyInitialized  Code = "already_initialized"
	CodeLengthMismatch      Code = "length_mismatch"
	CodeInvalidAssetID      Code = "invalid_asset_id"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeUnknownCredential   Code = "unknown_credential"
	CodeInvalidRecipient    Code = "invalid_recipient"
	CodeMissingApproval     Code = "missing_approval"

	// Boundary and infrastructure failures.
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeInternal     Code = "internal_error"
)

// Sentinels usable with errors.Is. They match any *Error with the same code.
var (
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrDuplicateIssuance   = &Error{Code: CodeDuplicateIssuance}
	ErrTransferDisabled    = &Error{Code: CodeTransferDisabled}
	ErrAlreadyInitialized  = &Error{Code: CodeAlreadyInitialized}
	ErrLengthMismatch      = &Error{Code: CodeLengthMismatch}
	ErrInvalidAssetID      = &Error{Code: CodeInvalidAssetID}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance}
	ErrUnknownCredential   = &Error{Code: CodeUnknownCredential}
	ErrInvalidRecipient    = &Error{Code: CodeInvalidRecipient}
	ErrMissingApproval     = &Error{Code: CodeMissingApproval}
)

// Error is a coded domain failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches code-only sentinels, so errors.Is(err, ErrUnauthorized) holds for
// every unauthorized failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Code == e.Code
}

// CodeOf returns the code of the outermost *Error in the chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HasCode is an alias of Is kept for call sites that read better with it.
func HasCode(err error, code Code) bool {
	return Is(err, code)
}

// IsDomain reports whether err is a coded domain failure, i.e. not an
// unexpected infrastructure error.
func IsDomain(err error) bool {
	var de *Error
	return errors.As(err, &de)
}
