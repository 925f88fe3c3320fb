package brackets

import (
	"fmt"

	"github.com/Dosada05/tournaments/models"
)

// Propagate writes the winner (and, when routed, the loser) of a decided fixture
// into the downstream slots. Occupied slots are left alone, so propagating the
// same fixture again reports no change.
func Propagate(fixtures []*models.Fixture, f *models.Fixture) (bool, error) {
	winner, loser := f.Winner(), f.Loser()
	if winner == nil {
		return false, fmt.Errorf("fixture %d: %w", f.Index, ErrNoWinner)
	}

	changed := false
	for _, route := range []struct {
		edge        *models.Edge
		participant *int
	}{
		{f.WinnerTo, winner},
		{f.LoserTo, loser},
	} {
		if route.edge == nil || route.participant == nil {
			continue
		}
		target := fixtureByIndex(fixtures, route.edge.Index)
		if target == nil {
			return changed, fmt.Errorf("fixture %d -> %d: %w", f.Index, route.edge.Index, ErrUnknownFixture)
		}
		if target.Player(route.edge.Slot) != nil {
			continue
		}
		target.SetPlayer(route.edge.Slot, *route.participant)
		changed = true
	}
	return changed, nil
}

func fixtureByIndex(fixtures []*models.Fixture, index int) *models.Fixture {
	if index >= 0 && index < len(fixtures) && fixtures[index].Index == index {
		return fixtures[index]
	}
	for _, f := range fixtures {
		if f.Index == index {
			return f
		}
	}
	return nil
}
