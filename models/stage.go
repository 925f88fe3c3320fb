package models

// StageMode is the closed set of stage variants a definition may declare.
type StageMode string

const (
	StageModeGroups   StageMode = "groups"
	StageModeKnockout StageMode = "knockout"
	StageModeDivision StageMode = "division"
)

// Valid reports whether the mode is one of the known variants.
func (m StageMode) Valid() bool {
	switch m {
	case StageModeGroups, StageModeKnockout, StageModeDivision:
		return true
	}
	return false
}

// GroupsSettings configures groups and division stages.
type GroupsSettings struct {
	MinGroupSize int  `json:"min_group_size"`
	MaxGroupSize int  `json:"max_group_size"`
	WithReturns  bool `json:"with_returns"`
}

// KnockoutSettings configures knockout stages.
type KnockoutSettings struct {
	DoubleElimination bool `json:"double_elimination"`
}

type Stage struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Position     int       `json:"position" db:"position"`
	Identifier   string    `json:"identifier" db:"identifier"`
	Name         string    `json:"name" db:"name"`
	Mode         StageMode `json:"mode" db:"mode"`
	PlayedBy     []string  `json:"played_by" db:"played_by"`

	Groups   *GroupsSettings   `json:"groups,omitempty" db:"-"`
	Knockout *KnockoutSettings `json:"knockout,omitempty" db:"-"`

	// GroupsInfo is frozen when the fixtures of a groups stage are created.
	GroupsInfo [][]int `json:"groups_info,omitempty" db:"groups_info"`

	Fixtures []*Fixture `json:"fixtures,omitempty" db:"-"`
}

// DisplayName falls back to the identifier when no name was given.
func (s *Stage) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Identifier
}

// Levels is one more than the highest fixture level, or zero without fixtures.
func (s *Stage) Levels() int {
	levels := 0
	for _, f := range s.Fixtures {
		if f.Level+1 > levels {
			levels = f.Level + 1
		}
	}
	return levels
}

// CurrentLevel is the lowest level holding an unconfirmed fixture, or Levels when all are confirmed.
func (s *Stage) CurrentLevel(required int) int {
	current := s.Levels()
	for _, f := range s.Fixtures {
		if f.Level < current && !f.IsConfirmed(required) {
			current = f.Level
		}
	}
	return current
}

// FixturesAt returns the fixtures of one level in index order.
func (s *Stage) FixturesAt(level int) []*Fixture {
	var result []*Fixture
	for _, f := range s.Fixtures {
		if f.Level == level {
			result = append(result, f)
		}
	}
	return result
}

// FixtureByIndex finds a fixture by its index within the stage.
func (s *Stage) FixtureByIndex(index int) *Fixture {
	for _, f := range s.Fixtures {
		if f.Index == index {
			return f
		}
	}
	return nil
}
