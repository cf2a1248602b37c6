package intake

import (
	"errors"
	"fmt"
)

// Kind classifies intake failures for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

var (
	ErrMissingFields            = errors.New("missing required fields")
	ErrInvalidSender            = errors.New("invalid sender email")
	ErrBodyTooShort             = errors.New("email body too short")
	ErrMissingSignature         = errors.New("missing signature headers")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrVendorNotRegistered      = errors.New("vendor not registered")
	ErrVendorNotFound           = errors.New("vendor not found")
	ErrVendorNotFoundForAddress = errors.New("specified vendor not found for this address")
	ErrRFPNotFound              = errors.New("RFP not found")
	ErrRFPUnresolved            = errors.New("could not identify RFP")
	ErrNothingRecorded          = errors.New("failed to record proposal for any vendor")
)

// HintRFPMarker tells senders how to address a reply explicitly.
const HintRFPMarker = "Start email with: RFP_ID: <id>"

// Error is a classified intake failure. Err is one of the package sentinels
// or a wrapped store error.
type Error struct {
	Kind    Kind
	Err     error
	Details string
	Hint    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Details)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func validationError(err error, details string) *Error {
	return &Error{Kind: KindValidation, Err: err, Details: details}
}

func notFoundError(err error, hint string) *Error {
	return &Error{Kind: KindNotFound, Err: err, Hint: hint}
}

func persistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Kind
	}
	return KindInternal
}
