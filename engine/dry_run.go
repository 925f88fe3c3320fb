package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/tournaments/models"
)

const maxDryRunRounds = 10000

// Test plays a definition through with n placeholder participants, the higher
// id always winning. Nothing is persisted: the run works on a throwaway aggregate.
// Any failure, including a panic in stage logic, is reported as a ValidationError.
func Test(ctx context.Context, def *models.Definition, n int, logger *slog.Logger) (errs []error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Dry run panicked", slog.Any("panic", r))
			errs = []error{&ValidationError{Context: "testing", Err: fmt.Errorf("unexpected failure: %v", r)}}
		}
	}()

	tournament, err := Load(def, "dry run", nil)
	if err != nil {
		return []error{wrap("loading", err)}
	}
	if errs := Validate(tournament); len(errs) > 0 {
		return errs
	}

	for i := 0; i < n; i++ {
		id := i + 1
		tournament.Participations = append(tournament.Participations, &models.Participation{
			ParticipantID: id,
			SlotID:        i,
			Participant:   &models.Participant{ID: id, Name: fmt.Sprintf("Participant %d", id)},
		})
	}

	// the engine logs progression; a dry run has nothing worth reporting
	e := New(tournament, slog.New(slog.NewTextHandler(io.Discard, nil)))
	required := tournament.RequiredConfirmations()

	for round := 0; round < maxDryRunRounds; round++ {
		if err := e.UpdateState(ctx); err != nil {
			logger.Warn("Dry run failed", slog.Any("error", err))
			return []error{err}
		}
		current, _, err := e.CurrentStage()
		if err != nil {
			return []error{wrap("testing", err)}
		}
		if current == nil {
			return nil
		}

		model := current.Model()
		step := "validating stage " + model.Identifier
		for _, f := range current.CurrentFixtures() {
			if !f.HasPlayers() {
				return []error{wrap(step, fmt.Errorf("%w: fixture %d at level %d", ErrMissingPlayer, f.Index, f.Level))}
			}
			score1, score2 := 0, 1
			winner := *f.Player2ID
			if *f.Player1ID > *f.Player2ID {
				score1, score2 = 1, 0
				winner = *f.Player1ID
			}
			if err := f.SetScore(score1, score2, required); err != nil {
				return []error{wrap(step, err)}
			}
			if err := current.CheckFixture(f); err != nil {
				return []error{wrap(step, err)}
			}
			f.Confirm(winner)
		}
	}
	return []error{wrap("testing", ErrDryRunDiverged)}
}
