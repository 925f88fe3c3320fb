package brackets

import "github.com/Dosada05/tournaments/models"

// AddDoubleElimination extends a single elimination tree of n (>= 4) participants
// with a losers' bracket and a grand final.
//
// The first complete main level e (0 for a full tree, 1 when preliminary
// fixtures exist) feeds its losers into the losers' bracket; preliminary losers
// are out after one defeat. Main level L > e moves to level e+2(L-e)-1. For every
// later main level L = e+j the losers' bracket plays two rounds:
//
//   - consolidation at level e+2j-1 pairs the survivors among themselves,
//   - merge at level e+2j matches each consolidation winner against a loser
//     dropping from main level L, taken in reverse order to avoid rematches.
//
// The grand final sits above both trees at level e+2k-1 where k = levels-e,
// with the main champion in slot 1 and the losers' bracket champion in slot 2.
func AddDoubleElimination(fixtures []*models.Fixture, n int) []*models.Fixture {
	levels := KnockoutLevels(n)
	e := 0
	if !IsPowerOfTwo(n) {
		e = 1
	}
	k := levels - e

	mainTree := mainTreeByPosition(fixtures)
	byLevel := make(map[int][]*models.Fixture)
	for _, f := range mainTree {
		byLevel[f.Level] = append(byLevel[f.Level], f)
	}
	for _, f := range mainTree {
		if f.Level > e {
			f.Level = e + 2*(f.Level-e) - 1
		}
	}

	next := len(fixtures)
	treePosition := 0
	add := func(level int) *models.Fixture {
		treePosition++
		f := &models.Fixture{
			Index:        next,
			Level:        level,
			Tree:         models.TreeLosers,
			TreePosition: treePosition,
		}
		next++
		fixtures = append(fixtures, f)
		return f
	}

	feeders := byLevel[e]
	feedLosers := true
	for j := 1; j < k; j++ {
		consolidation := make([]*models.Fixture, len(feeders)/2)
		for i := range consolidation {
			c := add(e + 2*j - 1)
			for slot := 1; slot <= 2; slot++ {
				edge := &models.Edge{Index: c.Index, Slot: slot}
				if feedLosers {
					feeders[2*i+slot-1].LoserTo = edge
				} else {
					feeders[2*i+slot-1].WinnerTo = edge
				}
			}
			consolidation[i] = c
		}

		dropping := byLevel[e+j]
		merges := make([]*models.Fixture, len(consolidation))
		for i, c := range consolidation {
			m := add(e + 2*j)
			c.WinnerTo = &models.Edge{Index: m.Index, Slot: 1}
			dropping[len(dropping)-1-i].LoserTo = &models.Edge{Index: m.Index, Slot: 2}
			merges[i] = m
		}
		feeders = merges
		feedLosers = false
	}

	grandFinal := &models.Fixture{
		Index: next,
		Level: e + 2*k - 1,
		Tree:  models.TreeMain,
	}
	mainTree[0].WinnerTo = &models.Edge{Index: grandFinal.Index, Slot: 1}
	feeders[0].WinnerTo = &models.Edge{Index: grandFinal.Index, Slot: 2}
	return append(fixtures, grandFinal)
}

// GrandFinal returns the fixture deciding a double elimination bracket, or nil.
func GrandFinal(fixtures []*models.Fixture) *models.Fixture {
	for _, f := range fixtures {
		if f.Tree == models.TreeMain && f.TreePosition == 0 {
			return f
		}
	}
	return nil
}

// DoubleEliminationPlacements ranks the grand final winner and loser first,
// then the main tree losers (final first) not already listed.
func DoubleEliminationPlacements(fixtures []*models.Fixture) [][]int {
	grandFinal := GrandFinal(fixtures)
	if grandFinal == nil {
		return nil
	}
	listed := make(map[int]bool)
	placements := make([][]int, 0)
	for _, id := range []*int{grandFinal.Winner(), grandFinal.Loser()} {
		placements = append(placements, entry(id))
		if id != nil {
			listed[*id] = true
		}
	}
	for _, f := range mainTreeByPosition(fixtures) {
		loser := f.Loser()
		if loser != nil && listed[*loser] {
			continue
		}
		placements = append(placements, entry(loser))
		if loser != nil {
			listed[*loser] = true
		}
	}
	return placements
}

// KnockoutPlacements dispatches on the presence of a grand final.
func KnockoutPlacements(fixtures []*models.Fixture) [][]int {
	if GrandFinal(fixtures) != nil {
		return DoubleEliminationPlacements(fixtures)
	}
	return SingleEliminationPlacements(fixtures)
}
