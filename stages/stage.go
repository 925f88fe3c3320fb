package stages

import (
	"context"
	"fmt"
	"math"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/models"
)

// Stage is the behaviour shared by every stage mode.
type Stage interface {
	Model() *models.Stage

	// CreateFixtures builds the fixtures for the given participants, best ranked first.
	CreateFixtures(ctx context.Context, participants []int) error
	// UpdateFixtures moves results along the stage and reports whether anything changed.
	UpdateFixtures() (bool, error)
	// Placements is the ranking of the stage; false until fixtures exist.
	Placements() ([][]int, bool)
	// CheckFixture validates a scored fixture before it is stored.
	CheckFixture(f *models.Fixture) error
	LevelName(level int) string

	Levels() int
	CurrentLevel() int
	CurrentFixtures() []*models.Fixture
	IsFinished() bool
}

// New wraps a stage model with the behaviour of its mode. required is the
// number of confirmations a fixture needs.
func New(model *models.Stage, required int) (Stage, error) {
	b := base{model: model, required: required}
	switch model.Mode {
	case models.StageModeGroups:
		if model.Groups == nil {
			return nil, fmt.Errorf("stage %q: missing group settings", model.Identifier)
		}
		return &GroupsStage{base: b}, nil
	case models.StageModeDivision:
		withReturns := model.Groups != nil && model.Groups.WithReturns
		model.Groups = DivisionSettings(withReturns)
		return &GroupsStage{base: b}, nil
	case models.StageModeKnockout:
		if model.Knockout == nil {
			model.Knockout = &models.KnockoutSettings{}
		}
		return &KnockoutStage{base: b}, nil
	}
	return nil, fmt.Errorf("stage %q: %w: %q", model.Identifier, ErrUnknownStageMode, model.Mode)
}

// DivisionSettings puts everyone into a single group.
func DivisionSettings(withReturns bool) *models.GroupsSettings {
	return &models.GroupsSettings{MinGroupSize: 2, MaxGroupSize: math.MaxInt, WithReturns: withReturns}
}

type base struct {
	model    *models.Stage
	required int
}

func (b *base) Model() *models.Stage { return b.model }

func (b *base) Levels() int { return b.model.Levels() }

func (b *base) CurrentLevel() int { return b.model.CurrentLevel(b.required) }

func (b *base) CurrentFixtures() []*models.Fixture {
	return b.model.FixturesAt(b.CurrentLevel())
}

// IsFinished is false for a stage without fixtures: it has not started yet.
func (b *base) IsFinished() bool {
	return len(b.model.Fixtures) > 0 && b.CurrentLevel() >= b.Levels()
}

func (b *base) generate(ctx context.Context, participants []int) (*brackets.Bracket, error) {
	if len(b.model.Fixtures) > 0 {
		return nil, ErrFixturesExist
	}
	generator, ok := brackets.NewGenerator(b.model.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageMode, b.model.Mode)
	}
	bracket, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Stage:        b.model,
		Participants: participants,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", generator.GetName(), err)
	}
	if len(bracket.Fixtures) == 0 {
		return nil, ErrNoFixturesGenerated
	}
	for _, f := range bracket.Fixtures {
		f.StageID = b.model.ID
	}
	return bracket, nil
}
