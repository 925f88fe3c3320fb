package services

import (
	"errors"
	"strings"

	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/stages"
)

// Errors shared by the services and mapped onto HTTP statuses by the handlers.
var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrInvalidDefinition     = errors.New("invalid tournament definition")
	ErrTournamentNameNeeded  = errors.New("tournament name is required")
	ErrNotEnoughParticipants = errors.New("not enough participants to start the tournament")
	ErrInvalidScore          = models.ErrInvalidScore
	ErrDrawsNotAllowed       = stages.ErrDrawsNotAllowed

	// the operation does not fit the current lifecycle state
	ErrInvalidTournamentState  = errors.New("operation not allowed in the current tournament state")
	ErrFixtureNotCurrent       = errors.New("fixture is not part of the current level")
	ErrFixtureNotReady         = errors.New("fixture players are not known yet")
	ErrFixtureAlreadyConfirmed = models.ErrFixtureAlreadyConfirmed

	ErrParticipantNameConflict = errors.New("participant name is already in use")

	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrNotAParticipant    = errors.New("only participants of the tournament can report results")

	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrFixtureNotFound     = errors.New("fixture not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

// DefinitionError lists every problem found while validating a definition.
type DefinitionError struct {
	Errors []error
}

func (e *DefinitionError) Error() string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Error()
	}
	return ErrInvalidDefinition.Error() + ": " + strings.Join(messages, "; ")
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidDefinition }

// Messages returns the problems as plain strings.
func (e *DefinitionError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Error()
	}
	return messages
}
