package stages

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/models"
)

// KnockoutStage is a single or double elimination bracket.
type KnockoutStage struct {
	base
}

func (s *KnockoutStage) CreateFixtures(ctx context.Context, participants []int) error {
	bracket, err := s.generate(ctx, participants)
	if err != nil {
		return err
	}
	s.model.Fixtures = bracket.Fixtures
	return nil
}

// UpdateFixtures propagates every confirmed fixture.
func (s *KnockoutStage) UpdateFixtures() (bool, error) {
	changed := false
	for _, f := range s.model.Fixtures {
		if !f.IsConfirmed(s.required) {
			continue
		}
		moved, err := brackets.Propagate(s.model.Fixtures, f)
		if err != nil {
			return changed, err
		}
		changed = changed || moved
	}
	return changed, nil
}

func (s *KnockoutStage) CheckFixture(f *models.Fixture) error {
	if f.IsDraw() {
		return ErrDrawsNotAllowed
	}
	return nil
}

func (s *KnockoutStage) Placements() ([][]int, bool) {
	if len(s.model.Fixtures) == 0 {
		return nil, false
	}
	return brackets.KnockoutPlacements(s.model.Fixtures), true
}

// IsDoubleElimination reports whether the bracket has a losers' bracket.
func (s *KnockoutStage) IsDoubleElimination() bool {
	return brackets.GrandFinal(s.model.Fixtures) != nil
}

func (s *KnockoutStage) LevelName(level int) string {
	levels := s.Levels()
	if level < 0 || level >= levels {
		return fmt.Sprintf("Round %d", level+1)
	}
	if s.IsDoubleElimination() {
		if level == levels-1 {
			return "Grand Final"
		}
		return fmt.Sprintf("Round %d", level+1)
	}

	full := 1 << (levels - 1 - level)
	if level == 0 && len(s.model.FixturesAt(0)) < full {
		return "Playoffs"
	}
	switch full {
	case 1:
		return "Final"
	case 2:
		return "Semifinals"
	case 4:
		return "Quarterfinals"
	}
	return fmt.Sprintf("Round of %d", 2*full)
}
