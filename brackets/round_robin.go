package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournaments/models"
)

// Pairing is one fixture of a schedule: home side first.
type Pairing[T any] struct {
	Home T
	Away T
}

// Schedule builds a round-robin schedule with the circle method. Rounds are
// returned in play order; with returns every round is repeated with sides swapped.
func Schedule[T any](participants []T, withReturns bool) [][]Pairing[T] {
	indices := scheduleIndices(len(participants), withReturns)
	rounds := make([][]Pairing[T], len(indices))
	for r, round := range indices {
		rounds[r] = make([]Pairing[T], len(round))
		for i, p := range round {
			rounds[r][i] = Pairing[T]{Home: participants[p.Home], Away: participants[p.Away]}
		}
	}
	return rounds
}

func scheduleIndices(n int, withReturns bool) [][]Pairing[int] {
	if n < 2 {
		return nil
	}
	size := n
	if size%2 == 1 {
		size++
	}

	var rounds [][]Pairing[int]
	for r := 0; r < size-1; r++ {
		var round []Pairing[int]
		add := func(home, away int) {
			// the padding index is the bye
			if home >= n || away >= n {
				return
			}
			round = append(round, Pairing[int]{Home: home, Away: away})
		}

		anchor := size - 1
		if r%2 == 0 {
			add(r, anchor)
		} else {
			add(anchor, r)
		}
		for s := 0; s < size/2-1; s++ {
			a := (r + 1 + s) % (size - 1)
			b := ((r-1-s)%(size-1) + (size - 1)) % (size - 1)
			if s%2 == 0 {
				add(b, a)
			} else {
				add(a, b)
			}
		}
		rounds = append(rounds, round)
	}

	if withReturns {
		count := len(rounds)
		for r := 0; r < count; r++ {
			returns := make([]Pairing[int], len(rounds[r]))
			for i, p := range rounds[r] {
				returns[i] = Pairing[int]{Home: p.Away, Away: p.Home}
			}
			rounds = append(rounds, returns)
		}
	}
	return rounds
}

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket splits the participants into groups and schedules every group.
// All groups share the schedule of the largest group, so level n holds matchday n
// of every group; pairings referencing a slot beyond a smaller group are skipped.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	settings := params.Stage.Groups
	if settings == nil {
		return nil, fmt.Errorf("RoundRobinGenerator: stage %q has no group settings", params.Stage.Identifier)
	}

	groups, err := SplitIntoGroups(params.Participants, settings.MinGroupSize, settings.MaxGroupSize)
	if err != nil {
		return nil, err
	}

	largest := 0
	for _, group := range groups {
		if len(group) > largest {
			largest = len(group)
		}
	}

	fixtures := make([]*models.Fixture, 0)
	for level, round := range scheduleIndices(largest, settings.WithReturns) {
		for _, group := range groups {
			for _, p := range round {
				if p.Home >= len(group) || p.Away >= len(group) {
					continue
				}
				home, away := group[p.Home], group[p.Away]
				fixtures = append(fixtures, &models.Fixture{
					Index:     len(fixtures),
					Level:     level,
					Player1ID: &home,
					Player2ID: &away,
				})
			}
		}
	}

	return &Bracket{Fixtures: fixtures, Groups: groups}, nil
}
