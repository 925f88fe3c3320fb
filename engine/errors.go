package engine

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournaments/stages"
)

var (
	ErrLoad               = errors.New("invalid tournament definition")
	ErrUnknownStageMode   = stages.ErrUnknownStageMode
	ErrUnknownStageID     = errors.New("unknown stage identifier")
	ErrDuplicateStageID   = errors.New("duplicate stage identifier")
	ErrCyclicReference    = errors.New("stage may only reference earlier stages")
	ErrAmbiguousPlacement = errors.New("placement is shared by several participants")
	ErrNotFinished        = errors.New("tournament is not finished")
	ErrMissingPlayer      = errors.New("fixture is missing a player")
	ErrDryRunDiverged     = errors.New("dry run did not finish")
)

// ValidationError attaches the step that failed, e.g. "validating stage knockout".
type ValidationError struct {
	Context string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func wrap(context string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Context: context, Err: err}
}
