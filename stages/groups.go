package stages

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/tournaments/models"
)

// GroupsStage plays a round robin inside every group. Divisions are groups
// stages with a single group.
type GroupsStage struct {
	base
}

func (s *GroupsStage) CreateFixtures(ctx context.Context, participants []int) error {
	bracket, err := s.generate(ctx, participants)
	if err != nil {
		return err
	}
	s.model.GroupsInfo = bracket.Groups
	s.model.Fixtures = bracket.Fixtures
	return nil
}

// UpdateFixtures has nothing to move: standings are computed on demand.
func (s *GroupsStage) UpdateFixtures() (bool, error) {
	return false, nil
}

func (s *GroupsStage) CheckFixture(*models.Fixture) error {
	return nil
}

func (s *GroupsStage) LevelName(level int) string {
	return fmt.Sprintf("Matchday %d", level+1)
}

// Standings ranks every group by points, score difference, games played and id.
// Only confirmed fixtures count.
func (s *GroupsStage) Standings() [][]*models.Standing {
	if s.model.GroupsInfo == nil {
		return nil
	}

	records := make(map[int]*models.Standing)
	for _, group := range s.model.GroupsInfo {
		for _, id := range group {
			records[id] = &models.Standing{ParticipantID: id}
		}
	}

	for _, f := range s.model.Fixtures {
		if !f.IsConfirmed(s.required) || !f.HasPlayers() {
			continue
		}
		home, away := records[*f.Player1ID], records[*f.Player2ID]
		if home == nil || away == nil {
			continue
		}
		applyResult(home, *f.Score1, *f.Score2)
		applyResult(away, *f.Score2, *f.Score1)
	}

	standings := make([][]*models.Standing, len(s.model.GroupsInfo))
	for i, group := range s.model.GroupsInfo {
		table := make([]*models.Standing, 0, len(group))
		for _, id := range group {
			table = append(table, records[id])
		}
		sort.SliceStable(table, func(a, b int) bool {
			x, y := table[a], table[b]
			if x.Points != y.Points {
				return x.Points > y.Points
			}
			if x.ScoreDifference != y.ScoreDifference {
				return x.ScoreDifference > y.ScoreDifference
			}
			if x.GamesPlayed != y.GamesPlayed {
				return x.GamesPlayed > y.GamesPlayed
			}
			return x.ParticipantID > y.ParticipantID
		})
		for rank, st := range table {
			st.Rank = rank + 1
		}
		standings[i] = table
	}
	return standings
}

func applyResult(st *models.Standing, scored, conceded int) {
	st.GamesPlayed++
	st.ScoreFor += scored
	st.ScoreAgainst += conceded
	st.ScoreDifference = st.ScoreFor - st.ScoreAgainst
	switch {
	case scored > conceded:
		st.Wins++
	case scored < conceded:
		st.Losses++
	default:
		st.Draws++
	}
	st.Points = 3*st.Wins + st.Draws
}

// Placements lists, for every rank, the participants holding it across groups.
func (s *GroupsStage) Placements() ([][]int, bool) {
	if s.model.GroupsInfo == nil || len(s.model.Fixtures) == 0 {
		return nil, false
	}
	standings := s.Standings()
	largest := 0
	for _, table := range standings {
		largest = max(largest, len(table))
	}
	placements := make([][]int, largest)
	for rank := range placements {
		for _, table := range standings {
			if rank < len(table) {
				placements[rank] = append(placements[rank], table[rank].ParticipantID)
			}
		}
	}
	return placements, true
}
