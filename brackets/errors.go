package brackets

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedExpression      = errors.New("malformed placement expression")
	ErrDuplicateReference       = errors.New("placement referenced more than once")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrNoWinner                 = errors.New("fixture has no winner")
	ErrUnknownFixture           = errors.New("propagation target does not exist")
)

// MalformedExpressionError carries the literal that failed to parse.
type MalformedExpressionError struct {
	Literal string
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMalformedExpression, e.Literal)
}

func (e *MalformedExpressionError) Unwrap() error { return ErrMalformedExpression }

type DuplicateReferenceError struct {
	StageID  string
	Position int
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("%s: %s.placements[%d]", ErrDuplicateReference, e.StageID, e.Position)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }

// InsufficientParticipantsError is raised when a placement position does not exist at runtime.
// StageID is empty when the error comes from grouping rather than from a reference.
type InsufficientParticipantsError struct {
	StageID  string
	Position int
}

func (e *InsufficientParticipantsError) Error() string {
	if e.StageID == "" {
		return ErrInsufficientParticipants.Error()
	}
	return fmt.Sprintf("%s: %s.placements[%d] is not available", ErrInsufficientParticipants, e.StageID, e.Position)
}

func (e *InsufficientParticipantsError) Unwrap() error { return ErrInsufficientParticipants }
