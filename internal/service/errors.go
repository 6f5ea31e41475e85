package service

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates every failure the services report to their callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUserNotFound
	KindInvalidAmount
	KindInsufficientFunds
	KindInvalidCredentials
	KindConcurrentModification
	KindInvalidMovement
	KindMovementNotFound
	KindUserAlreadyExists
	KindInvalidInput
)

var kindText = map[ErrorKind]string{
	KindUnknown:                "internal error",
	KindUserNotFound:           "user not found",
	KindInvalidAmount:          "invalid amount",
	KindInsufficientFunds:      "insufficient funds",
	KindInvalidCredentials:     "incorrect email or password",
	KindConcurrentModification: "concurrent modification, retry later",
	KindInvalidMovement:        "invalid movement",
	KindMovementNotFound:       "statement not found",
	KindUserAlreadyExists:      "user already exists",
	KindInvalidInput:           "invalid input",
}

func (k ErrorKind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a failure of a given kind raised by operation Op.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrInvalidCredentials     = &Error{Kind: KindInvalidCredentials}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrInvalidMovement        = &Error{Kind: KindInvalidMovement}
	ErrMovementNotFound       = &Error{Kind: KindMovementNotFound}
	ErrUserAlreadyExists      = &Error{Kind: KindUserAlreadyExists}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
)

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
