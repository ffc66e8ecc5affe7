package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. The pending flow is kept.
	ErrValidation = errors.New("invalid input")
	// ErrNothingToDelete is returned when deleting a value that was never set.
	ErrNothingToDelete = errors.New("nothing to delete")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrBanned          = errors.New("user is banned")

	errDeliveryFailed = errors.New("delivery failed")
)

// userError pairs a sentinel with the reply shown to the user.
type userError struct {
	kind  error
	reply string
}

func (e *userError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.reply)
}

func (e *userError) Unwrap() error {
	return e.kind
}

func validation(reply string) error {
	return &userError{kind: ErrValidation, reply: reply}
}

func nothingToDelete(what string) error {
	return &userError{kind: ErrNothingToDelete, reply: fmt.Sprintf("❌ You don't have a %s to delete!", what)}
}
