package brackets

import (
	"context"

	"github.com/Dosada05/tournaments/models"
)

type GenerateBracketParams struct {
	Stage        *models.Stage
	Participants []int
}

// Bracket is the output of a generator. Groups is set by round-robin generators only.
type Bracket struct {
	Fixtures []*models.Fixture
	Groups   [][]int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error)

	GetName() string
}

// NewGenerator picks the generator for a stage mode.
func NewGenerator(mode models.StageMode) (BracketGenerator, bool) {
	switch mode {
	case models.StageModeGroups, models.StageModeDivision:
		return NewRoundRobinGenerator(), true
	case models.StageModeKnockout:
		return NewKnockoutGenerator(), true
	}
	return nil, false
}
