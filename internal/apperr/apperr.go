// Package apperr holds the closed set of error kinds surfaced at the command boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies an error variant. Callers switch on Kind, never on the concrete value.
type Kind string

const (
	MatchNotFound          Kind = "MATCH_NOT_FOUND"
	PlayerNotFound         Kind = "PLAYER_NOT_FOUND"
	NotYourTurn            Kind = "NOT_YOUR_TURN"
	CardNotFound           Kind = "CARD_NOT_FOUND"
	InsufficientCoins      Kind = "INSUFFICIENT_COINS"
	AlreadyPassed          Kind = "ALREADY_PASSED"
	CatalogUnavailable     Kind = "CATALOG_UNAVAILABLE"
	IdentityUnavailable    Kind = "IDENTITY_UNAVAILABLE"
	PersistenceUnavailable Kind = "PERSISTENCE_UNAVAILABLE"

	// Matchmaking state.
	AlreadyPaired   Kind = "ALREADY_PAIRED"
	PairingNotFound Kind = "PAIRING_NOT_FOUND"

	// Transport boundary only.
	InvalidPayload Kind = "INVALID_PAYLOAD"
	Unauthorized   Kind = "UNAUTHORIZED"
	Internal       Kind = "INTERNAL"
)

// Error carries a kind plus a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err, apperr.New(kind, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New returns an *Error of kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap is New with err kept as the cause.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the text safe to send back to a client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
