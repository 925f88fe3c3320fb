package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/Dosada05/tournaments/models"
)

// KnockoutLevels is the number of levels of a single elimination tree for n participants.
func KnockoutLevels(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// IsPowerOfTwo reports whether n participants fill every leaf of the tree.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// BuildSingleElimination lays out n-1 fixtures as a binary tree addressed by
// position (root = 1, children of p are 2p and 2p+1). Seeded participants are
// popped from the end of the list into the leaf slots; inner slots stay empty
// until propagation fills them. Fixture index is position-1.
func BuildSingleElimination(seeded []int) ([]*models.Fixture, error) {
	n := len(seeded)
	if n < 2 {
		return nil, &InsufficientParticipantsError{}
	}
	levels := KnockoutLevels(n)

	remaining := append([]int(nil), seeded...)
	pop := func() *int {
		v := remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		return &v
	}

	fixtures := make([]*models.Fixture, 0, n-1)
	for p := 1; p <= n-1; p++ {
		f := &models.Fixture{
			Index:        p - 1,
			Level:        levels - (bits.Len(uint(p)) - 1) - 1,
			Tree:         models.TreeMain,
			TreePosition: p,
		}
		if 2*p > n-1 {
			f.Player1ID = pop()
		}
		if 2*p >= n-1 {
			f.Player2ID = pop()
		}
		if p > 1 {
			slot := 2
			if p%2 == 0 {
				slot = 1
			}
			f.WinnerTo = &models.Edge{Index: p/2 - 1, Slot: slot}
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

// SingleEliminationPlacements ranks the champion first and then every loser,
// final first, so earlier exits rank lower. Undecided entries are empty.
func SingleEliminationPlacements(fixtures []*models.Fixture) [][]int {
	mainTree := mainTreeByPosition(fixtures)
	if len(mainTree) == 0 {
		return nil
	}
	placements := make([][]int, 0, len(mainTree)+1)
	placements = append(placements, entry(mainTree[0].Winner()))
	for _, f := range mainTree {
		placements = append(placements, entry(f.Loser()))
	}
	return placements
}

// mainTreeByPosition returns the main tree fixtures ordered by tree position, root first.
func mainTreeByPosition(fixtures []*models.Fixture) []*models.Fixture {
	byPosition := make(map[int]*models.Fixture)
	for _, f := range fixtures {
		if f.Tree == models.TreeMain && f.TreePosition > 0 {
			byPosition[f.TreePosition] = f
		}
	}
	result := make([]*models.Fixture, 0, len(byPosition))
	for p := 1; ; p++ {
		f, ok := byPosition[p]
		if !ok {
			break
		}
		result = append(result, f)
	}
	return result
}

func entry(participantID *int) []int {
	if participantID == nil {
		return []int{}
	}
	return []int{*participantID}
}

type KnockoutGenerator struct{}

func NewKnockoutGenerator() BracketGenerator {
	return &KnockoutGenerator{}
}

func (g *KnockoutGenerator) GetName() string {
	return "Knockout"
}

// GenerateBracket seeds the participants (best first) and builds the tree, adding
// the losers' bracket when double elimination is requested and the field has at least 4.
func (g *KnockoutGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(params.Participants) < 2 {
		return nil, fmt.Errorf("KnockoutGenerator: not enough participants (found %d, min 2 required): %w",
			len(params.Participants), ErrInsufficientParticipants)
	}

	seeded := Reorder(params.Participants, true)
	fixtures, err := BuildSingleElimination(seeded)
	if err != nil {
		return nil, err
	}

	double := params.Stage.Knockout != nil && params.Stage.Knockout.DoubleElimination
	if double && len(seeded) >= 4 {
		fixtures = AddDoubleElimination(fixtures, len(seeded))
	}
	return &Bracket{Fixtures: fixtures}, nil
}
