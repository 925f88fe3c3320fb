package engine

import (
	"fmt"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/stages"
)

// Load builds a tournament aggregate from a parsed definition. References are
// not checked here, see Validate.
func Load(def *models.Definition, name string, creatorID *int) (*models.Tournament, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: empty definition", ErrLoad)
	}
	if len(def.Podium) == 0 {
		return nil, fmt.Errorf("%w: podium must not be empty", ErrLoad)
	}
	if len(def.Stages) == 0 {
		return nil, fmt.Errorf("%w: at least one stage is required", ErrLoad)
	}

	tournament := &models.Tournament{
		Name:      name,
		Podium:    append([]string(nil), def.Podium...),
		CreatorID: creatorID,
	}

	for i, sd := range def.Stages {
		if sd.ID == "" {
			return nil, fmt.Errorf("%w: stage %d has no id", ErrLoad, i+1)
		}
		stage := &models.Stage{
			Position:   i,
			Identifier: sd.ID,
			Name:       sd.Name,
			Mode:       sd.Mode,
			PlayedBy:   append([]string(nil), sd.PlayedBy...),
		}

		switch sd.Mode {
		case models.StageModeGroups:
			if sd.MinGroupSize == nil || sd.MaxGroupSize == nil {
				return nil, fmt.Errorf("%w: stage %q requires min-group-size and max-group-size", ErrLoad, sd.ID)
			}
			if *sd.MinGroupSize < 1 || *sd.MaxGroupSize < *sd.MinGroupSize {
				return nil, fmt.Errorf("%w: stage %q has invalid group sizes %d..%d", ErrLoad, sd.ID, *sd.MinGroupSize, *sd.MaxGroupSize)
			}
			stage.Groups = &models.GroupsSettings{
				MinGroupSize: *sd.MinGroupSize,
				MaxGroupSize: *sd.MaxGroupSize,
				WithReturns:  sd.WithReturns,
			}
		case models.StageModeDivision:
			stage.Groups = stages.DivisionSettings(sd.WithReturns)
		case models.StageModeKnockout:
			stage.Knockout = &models.KnockoutSettings{DoubleElimination: sd.DoubleElimination}
		default:
			return nil, fmt.Errorf("stage %q: %w: %q", sd.ID, ErrUnknownStageMode, sd.Mode)
		}

		tournament.Stages = append(tournament.Stages, stage)
	}
	return tournament, nil
}

// Validate checks the stage graph: unique identifiers, well formed and
// disjoint references, and references only to earlier stages.
func Validate(t *models.Tournament) []error {
	var errs []error

	seen := make(map[string]bool)
	for _, s := range t.Stages {
		if seen[s.Identifier] {
			errs = append(errs, wrap("validating stage "+s.Identifier, fmt.Errorf("%w: %q", ErrDuplicateStageID, s.Identifier)))
		}
		seen[s.Identifier] = true
	}

	for i, s := range t.Stages {
		for _, err := range checkReferences(t, s.PlayedBy, i) {
			errs = append(errs, wrap("validating stage "+s.Identifier, err))
		}
	}
	for _, err := range checkReferences(t, t.Podium, len(t.Stages)) {
		errs = append(errs, wrap("validating podium", err))
	}
	return errs
}

// checkReferences validates expressions used by the stage at position before
// (or by the podium when before is the number of stages).
func checkReferences(t *models.Tournament, expressions []string, before int) []error {
	refs, err := brackets.ResolveReferences(expressions)
	if err != nil {
		return []error{err}
	}

	var errs []error
	reported := make(map[string]bool)
	for _, ref := range refs {
		if reported[ref.StageID] {
			continue
		}
		_, position := t.StageByIdentifier(ref.StageID)
		switch {
		case position < 0:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStageID, ref.StageID))
			reported[ref.StageID] = true
		case position >= before:
			errs = append(errs, fmt.Errorf("%w: %q", ErrCyclicReference, ref.StageID))
			reported[ref.StageID] = true
		}
	}
	return errs
}
